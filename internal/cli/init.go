package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/triage/internal/config"
	"github.com/example/triage/internal/wire"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	var driver, dsn string
	var noSeed bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the triage project and database",
		Long: `Write .triage/config.json, create the database schema and store the
built-in classification rules. An existing config file is kept.

Examples:
  triage init
  triage init --driver mysql --dsn 'triage:secret@tcp(db:3306)/triage'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := projectDir(cmd)
			out := cmd.OutOrStdout()
			path := filepath.Join(dir, ".triage", "config.json")

			_, err := config.LoadConfig(dir)
			switch {
			case err == nil:
				fmt.Fprintf(out, "Using existing config at %s\n", path)
			case errors.Is(err, fs.ErrNotExist):
				cfg := config.Default()
				cfg.Database.Driver = driver
				cfg.Database.DSN = dsn
				if err := cfg.Validate(); err != nil {
					return err
				}
				if err := config.SaveConfig(dir, cfg); err != nil {
					return err
				}
				fmt.Fprintf(out, "✓ Config written to %s\n", path)
			default:
				return err
			}

			if err := initServices(cmd); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Database ready (%s)\n", wire.Config().Database.Driver)

			if !noSeed {
				if _, err := wire.RuleAdapterWithOutput(out).Seed(cmd.Context()); err != nil {
					return err
				}
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Next steps:")
			fmt.Fprintln(out, "  triage classify failures.json")
			fmt.Fprintln(out, "  triage groups list")

			return nil
		},
	}

	cmd.Flags().StringVar(&driver, "driver", config.DefaultDriver, "Database driver (sqlite3 or mysql)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Database DSN; for sqlite3 a file path (default ~/.triage/triage.db)")
	cmd.Flags().BoolVar(&noSeed, "no-seed", false, "Do not store the built-in rules")

	return cmd
}
