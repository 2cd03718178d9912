package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/triage/internal/ports/primary"
	"github.com/example/triage/internal/wire"
)

// GroupsCmd returns the groups command
func GroupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "groups",
		Aliases: []string{"group"},
		Short:   "Inspect and resolve defect groups",
		Long:    `A defect group collects every failure of a project that shares a signature.`,
	}

	cmd.AddCommand(groupsListCmd())
	cmd.AddCommand(groupsShowCmd())
	cmd.AddCommand(groupsResolveCmd())
	cmd.AddCommand(groupsReopenCmd())

	return cmd
}

func groupsListCmd() *cobra.Command {
	var filters primary.GroupFilters
	var open, resolved bool
	var since string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List defect groups",
		Long: `List defect groups, busiest first.

Examples:
  triage groups list --project shop --open
  triage groups list --class "Environment Issue" --since 24h
  triage groups list --sort last_seen --limit 20 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if open && resolved {
				return fmt.Errorf("--open and --resolved are mutually exclusive")
			}
			if open || resolved {
				filters.Resolved = &resolved
			}

			seen, err := parseSince(since, time.Now())
			if err != nil {
				return err
			}
			filters.SeenSince = seen

			if err := initServices(cmd); err != nil {
				return err
			}
			adapter := wire.GroupAdapterWithOutput(cmd.OutOrStdout())
			adapter.JSON = jsonOut
			_, err = adapter.List(cmd.Context(), filters)
			return err
		},
	}

	cmd.Flags().StringVarP(&filters.Project, "project", "p", "", "Filter by project")
	cmd.Flags().StringVar(&filters.PrimaryClass, "class", "", "Filter by primary class")
	cmd.Flags().StringVar(&filters.SubClass, "sub", "", "Filter by sub class")
	cmd.Flags().BoolVar(&open, "open", false, "Only open groups")
	cmd.Flags().BoolVar(&resolved, "resolved", false, "Only resolved groups")
	cmd.Flags().StringVar(&since, "since", "", "Only groups seen since a date or duration (e.g. 24h)")
	cmd.Flags().StringVarP(&filters.Search, "search", "s", "", "Search representative errors and sub classes")
	cmd.Flags().StringVar(&filters.SortBy, "sort", primary.GroupSortOccurrences, "Sort by occurrences, last_seen or first_seen")
	cmd.Flags().IntVarP(&filters.Limit, "limit", "n", 0, "Maximum groups to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the listing as JSON")

	return cmd
}

func groupsShowCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show GROUP_ID",
		Short: "Show a defect group and its failures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initServices(cmd); err != nil {
				return err
			}
			adapter := wire.GroupAdapterWithOutput(cmd.OutOrStdout())
			adapter.JSON = jsonOut
			_, err := adapter.Show(cmd.Context(), args[0])
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the group as JSON")

	return cmd
}

func groupsResolveCmd() *cobra.Command {
	var actor, note string

	cmd := &cobra.Command{
		Use:   "resolve GROUP_ID",
		Short: "Mark a defect group resolved",
		Long: `Mark a defect group resolved. New occurrences keep counting toward a
resolved group; reopen it explicitly when the defect comes back.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initServices(cmd); err != nil {
				return err
			}
			_, err := wire.GroupAdapterWithOutput(cmd.OutOrStdout()).Resolve(cmd.Context(), primary.GroupStateRequest{
				GroupID: args[0],
				Actor:   actor,
				Note:    note,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "Who resolved the group")
	cmd.Flags().StringVar(&note, "note", "", "Reason recorded in the audit log")

	return cmd
}

func groupsReopenCmd() *cobra.Command {
	var actor, note string

	cmd := &cobra.Command{
		Use:   "reopen GROUP_ID",
		Short: "Reopen a resolved defect group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initServices(cmd); err != nil {
				return err
			}
			_, err := wire.GroupAdapterWithOutput(cmd.OutOrStdout()).Reopen(cmd.Context(), primary.GroupStateRequest{
				GroupID: args[0],
				Actor:   actor,
				Note:    note,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "Who reopened the group")
	cmd.Flags().StringVar(&note, "note", "", "Reason recorded in the audit log")

	return cmd
}
