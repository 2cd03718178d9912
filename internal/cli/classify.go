package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/triage/internal/ports/primary"
	"github.com/example/triage/internal/wire"
)

// ClassifyCmd returns the classify command
func ClassifyCmd() *cobra.Command {
	var dryRun bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "classify FILE",
		Short: "Classify test failures and group them by signature",
		Long: `Classify failures read from a JSON file (or - for stdin).

The file holds an array of failures, or a single failure object:

  [{"id": "F-1", "project": "shop", "test_name": "checkout",
    "error_message": "TimeoutError: ...", "stack_trace": "at ..."}]

Failures that were classified before are reported as already classified and
are not counted again.

Examples:
  triage classify failures.json
  triage classify --dry-run failures.json
  cat failures.json | triage classify --json -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			failures, err := readFailures(in)
			if err != nil {
				return err
			}

			if err := initServices(cmd); err != nil {
				return err
			}

			adapter := wire.ClassificationAdapterWithOutput(cmd.OutOrStdout())
			adapter.JSON = jsonOut
			if dryRun {
				_, err = adapter.Preview(cmd.Context(), failures)
				return err
			}
			_, err = adapter.Classify(cmd.Context(), failures)
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Classify and group without storing anything")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print results as JSON")

	return cmd
}

// ShowCmd returns the show command
func ShowCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show FAILURE_ID",
		Short: "Show the classification of a failure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initServices(cmd); err != nil {
				return err
			}
			adapter := wire.ClassificationAdapterWithOutput(cmd.OutOrStdout())
			adapter.JSON = jsonOut
			_, err := adapter.Show(cmd.Context(), args[0])
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the classification as JSON")

	return cmd
}

// ReclassifyCmd returns the reclassify command
func ReclassifyCmd() *cobra.Command {
	var class, subClass, note, actor string

	cmd := &cobra.Command{
		Use:   "reclassify CLASSIFICATION_ID",
		Short: "Override a classification manually",
		Long: `Override the class of a classification. The change is recorded in the
audit log and the defect group takes the manual class.

Classes: "Application Defect", "Test Data Issue", "Automation Script Error",
"Environment Issue", "Unknown".

Examples:
  triage reclassify C-1234 --class "Application Defect" --sub "Slow Login" --actor alice`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initServices(cmd); err != nil {
				return err
			}
			_, err := wire.ClassificationAdapterWithOutput(cmd.OutOrStdout()).Reclassify(cmd.Context(), primary.ReclassifyRequest{
				ClassificationID: args[0],
				PrimaryClass:     class,
				SubClass:         subClass,
				Actor:            actor,
				Note:             note,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&class, "class", "", "New primary class (required)")
	cmd.Flags().StringVar(&subClass, "sub", "", "New sub class")
	cmd.Flags().StringVar(&note, "note", "", "Reason recorded in the audit log")
	cmd.Flags().StringVar(&actor, "actor", "", "Who made the change")
	cmd.MarkFlagRequired("class")

	return cmd
}

// AuditCmd returns the audit command
func AuditCmd() *cobra.Command {
	var classificationID, groupID, action string
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the classification audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initServices(cmd); err != nil {
				return err
			}
			_, err := wire.ClassificationAdapterWithOutput(cmd.OutOrStdout()).Audit(cmd.Context(), primary.AuditFilters{
				ClassificationID: classificationID,
				GroupID:          groupID,
				Action:           action,
				Limit:            limit,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&classificationID, "classification", "", "Filter by classification ID")
	cmd.Flags().StringVar(&groupID, "group", "", "Filter by group ID")
	cmd.Flags().StringVar(&action, "action", "", "Filter by action (created, reclassified, resolved, reopened)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries to show")

	return cmd
}
