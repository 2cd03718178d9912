package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/triage/internal/ports/primary"
	"github.com/example/triage/internal/wire"
)

// RulesCmd returns the rules command
func RulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rules",
		Aliases: []string{"rule"},
		Short:   "Manage classification rules",
		Long: `Rules are evaluated in priority order (lowest first); the first rule whose
conditions all match decides the class of a failure.`,
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesShowCmd())
	cmd.AddCommand(rulesImportCmd())
	cmd.AddCommand(rulesSeedCmd())
	cmd.AddCommand(rulesSetActiveCmd("activate", true))
	cmd.AddCommand(rulesSetActiveCmd("deactivate", false))

	return cmd
}

func rulesListCmd() *cobra.Command {
	var filters primary.RuleFilters

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initServices(cmd); err != nil {
				return err
			}
			_, err := wire.RuleAdapterWithOutput(cmd.OutOrStdout()).List(cmd.Context(), filters)
			return err
		},
	}

	cmd.Flags().BoolVar(&filters.ActiveOnly, "active", false, "Only active rules")
	cmd.Flags().StringVar(&filters.PrimaryClass, "class", "", "Filter by primary class")

	return cmd
}

func rulesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show RULE_ID",
		Short: "Show a rule and its conditions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initServices(cmd); err != nil {
				return err
			}
			_, err := wire.RuleAdapterWithOutput(cmd.OutOrStdout()).Show(cmd.Context(), args[0])
			return err
		},
	}
}

func rulesImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import rules from a YAML file",
		Long: `Import rules from a YAML file (or - for stdin). Rules with an ID replace the
stored rule; rules without one are created with the next free ID.

  rules:
    - name: Payment gateway declined
      primary_class: Environment Issue
      sub_class: Payments
      priority: 15
      conditions:
        - field: message
          operator: contains
          pattern: card declined`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			if err := initServices(cmd); err != nil {
				return err
			}
			_, err = wire.RuleAdapterWithOutput(cmd.OutOrStdout()).Import(cmd.Context(), in)
			return err
		},
	}
}

func rulesSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Store the built-in rules that are missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initServices(cmd); err != nil {
				return err
			}
			_, err := wire.RuleAdapterWithOutput(cmd.OutOrStdout()).Seed(cmd.Context())
			return err
		},
	}
}

func rulesSetActiveCmd(use string, active bool) *cobra.Command {
	short := "Deactivate a rule"
	if active {
		short = "Activate a rule"
	}

	return &cobra.Command{
		Use:   use + " RULE_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initServices(cmd); err != nil {
				return err
			}
			return wire.RuleAdapterWithOutput(cmd.OutOrStdout()).SetActive(cmd.Context(), args[0], active)
		},
	}
}
