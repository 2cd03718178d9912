package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/triage/internal/ports/primary"
	"github.com/example/triage/internal/wire"
)

// PushCmd returns the push command
func PushCmd() *cobra.Command {
	var actor string
	var force bool

	cmd := &cobra.Command{
		Use:   "push GROUP_ID",
		Short: "File a tracker issue for a defect group",
		Long: `File a tracker issue for a defect group unless one was already filed for
its signature. A failed push is recorded and may be retried; a push still in
progress suppresses others until it goes stale.

The tracker is configured with TRIAGE_TRACKER_URL and TRIAGE_TRACKER_TOKEN.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initServices(cmd); err != nil {
				return err
			}
			_, err := wire.PushAdapterWithOutput(cmd.OutOrStdout()).Push(cmd.Context(), primary.PushGroupRequest{
				GroupID: args[0],
				Actor:   actor,
				Force:   force,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "Who pushed the group")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Push even if an issue was already filed")

	return cmd
}

// PushesCmd returns the pushes command
func PushesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pushes PROJECT SIGNATURE",
		Short: "Show the push history of a signature",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initServices(cmd); err != nil {
				return err
			}
			_, err := wire.PushAdapterWithOutput(cmd.OutOrStdout()).History(cmd.Context(), args[0], args[1])
			return err
		},
	}
}
