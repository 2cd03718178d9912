package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/example/triage/internal/ports/primary"
)

// GroupAdapter is a thin adapter that translates CLI operations to GroupService
// and ReclassificationService calls.
type GroupAdapter struct {
	groups  primary.GroupService
	reclass primary.ReclassificationService
	out     io.Writer

	// JSON switches listings to the outbound JSON shape.
	JSON bool
}

// NewGroupAdapter creates a new GroupAdapter with the given services.
func NewGroupAdapter(groups primary.GroupService, reclass primary.ReclassificationService, out io.Writer) *GroupAdapter {
	return &GroupAdapter{
		groups:  groups,
		reclass: reclass,
		out:     out,
	}
}

// List lists defect groups with a summary line.
func (a *GroupAdapter) List(ctx context.Context, filters primary.GroupFilters) (*primary.GroupListing, error) {
	listing, err := a.groups.ListGroups(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	if a.JSON {
		return listing, writeJSON(a.out, listing)
	}

	if len(listing.Groups) == 0 {
		fmt.Fprintln(a.out, "No defect groups found.")
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "Classify failures first:")
		fmt.Fprintln(a.out, "  triage classify failures.json")
		return listing, nil
	}

	t := newTable(a.out)
	t.AppendHeader(table.Row{"ID", "SIGNATURE", "CLASS", "COUNT", "LAST SEEN", "STATUS", "REPRESENTATIVE ERROR"})
	for _, g := range listing.Groups {
		t.AppendRow(table.Row{
			g.ID,
			g.Signature,
			classLabel(classPair(g.PrimaryClass, g.SubClass)),
			g.OccurrenceCount,
			formatTime(g.LastSeen),
			statusLabel(g.Resolved),
			truncate(g.RepresentativeError, 60),
		})
	}
	t.Render()

	s := listing.Summary
	fmt.Fprintf(a.out, "\n%d groups, %d occurrences", s.TotalGroups, s.TotalOccurrences)
	if len(listing.Groups) < s.TotalGroups {
		fmt.Fprintf(a.out, " (showing %d)", len(listing.Groups))
	}
	fmt.Fprintln(a.out)
	for _, class := range classOrder {
		if n := s.ByClass[class]; n > 0 {
			fmt.Fprintf(a.out, "  %-24s %d\n", class, n)
		}
	}

	return listing, nil
}

var classOrder = []string{
	"Application Defect",
	"Test Data Issue",
	"Automation Script Error",
	"Environment Issue",
	"Unknown",
}

// Show displays a group and its members.
func (a *GroupAdapter) Show(ctx context.Context, groupID string) (*primary.DefectGroup, error) {
	group, err := a.groups.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	members, err := a.groups.ListMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}

	if a.JSON {
		return group, writeJSON(a.out, group)
	}

	fmt.Fprintf(a.out, "\nGroup: %s\n", group.ID)
	fmt.Fprintf(a.out, "Project:     %s\n", group.Project)
	fmt.Fprintf(a.out, "Signature:   %s\n", group.Signature)
	fmt.Fprintf(a.out, "Error type:  %s\n", group.ErrorType)
	class := classLabel(classPair(group.PrimaryClass, group.SubClass))
	if group.ManualClass {
		class += " (manual)"
	}
	fmt.Fprintf(a.out, "Class:       %s\n", class)
	fmt.Fprintf(a.out, "Occurrences: %d\n", group.OccurrenceCount)
	fmt.Fprintf(a.out, "First seen:  %s\n", formatTime(group.FirstSeen))
	fmt.Fprintf(a.out, "Last seen:   %s\n", formatTime(group.LastSeen))
	fmt.Fprintf(a.out, "Status:      %s", statusLabel(group.Resolved))
	if group.Resolved {
		fmt.Fprintf(a.out, " by %s at %s", group.ResolvedBy, formatTime(group.ResolvedAt))
	}
	fmt.Fprintln(a.out)
	fmt.Fprintf(a.out, "\n%s\n", group.RepresentativeError)

	if len(members) > 0 {
		fmt.Fprintln(a.out)
		t := newTable(a.out)
		t.AppendHeader(table.Row{"FAILURE", "CLASSIFICATION", "OCCURRED"})
		for _, m := range members {
			t.AppendRow(table.Row{m.FailureID, m.ClassificationID, formatTime(m.OccurredAt)})
		}
		t.Render()
	}
	fmt.Fprintln(a.out)

	return group, nil
}

// Resolve marks a group resolved.
func (a *GroupAdapter) Resolve(ctx context.Context, req primary.GroupStateRequest) (*primary.DefectGroup, error) {
	group, err := a.reclass.ResolveGroup(ctx, req)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(a.out, "✓ Group %s resolved\n", group.ID)
	return group, nil
}

// Reopen clears the resolved flag of a group.
func (a *GroupAdapter) Reopen(ctx context.Context, req primary.GroupStateRequest) (*primary.DefectGroup, error) {
	group, err := a.reclass.ReopenGroup(ctx, req)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(a.out, "✓ Group %s reopened\n", group.ID)
	return group, nil
}
