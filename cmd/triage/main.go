package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/triage/internal/cli"
	"github.com/example/triage/internal/version"
	"github.com/example/triage/internal/wire"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "triage",
		Short:   "Triage - failure signature and classification engine",
		Version: version.String(),
		Long: `Triage classifies automated test failures with a rule engine, groups them
into defect groups by error signature, and files one tracker issue per group.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("dir", ".", "Project directory holding .triage/config.json and .env")

	// Classification
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.ClassifyCmd())
	rootCmd.AddCommand(cli.ShowCmd())
	rootCmd.AddCommand(cli.ReclassifyCmd())
	rootCmd.AddCommand(cli.AuditCmd())

	// Groups and rules
	rootCmd.AddCommand(cli.GroupsCmd())
	rootCmd.AddCommand(cli.RulesCmd())

	// Issue tracker
	rootCmd.AddCommand(cli.PushCmd())
	rootCmd.AddCommand(cli.PushesCmd())

	// Developer tools
	rootCmd.AddCommand(cli.SignatureCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	wire.Close()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
