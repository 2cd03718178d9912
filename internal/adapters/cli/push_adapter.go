package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/example/triage/internal/ports/primary"
)

// PushAdapter is a thin adapter that translates CLI operations to IssuePushService calls.
type PushAdapter struct {
	service primary.IssuePushService
	out     io.Writer
}

// NewPushAdapter creates a new PushAdapter with the given service.
func NewPushAdapter(service primary.IssuePushService, out io.Writer) *PushAdapter {
	return &PushAdapter{
		service: service,
		out:     out,
	}
}

// Push files the tracker issue of a group unless dedup suppresses it.
func (a *PushAdapter) Push(ctx context.Context, req primary.PushGroupRequest) (*primary.PushGroupResponse, error) {
	resp, err := a.service.PushGroup(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to push group: %w", err)
	}

	switch {
	case resp.Pushed:
		fmt.Fprintf(a.out, "✓ Group %s pushed as %s\n", req.GroupID, resp.Record.IssueKey)
		if resp.Record.IssueURL != "" {
			fmt.Fprintf(a.out, "  %s\n", resp.Record.IssueURL)
		}
	case resp.Record != nil:
		fmt.Fprintf(a.out, "%s push of group %s: %s\n", pushStatusLabel(resp.Record.Status), req.GroupID, resp.Reason)
	default:
		fmt.Fprintf(a.out, "Skipped group %s: %s\n", req.GroupID, resp.Reason)
	}

	return resp, nil
}

// History prints the push ledger of a signature, newest first.
func (a *PushAdapter) History(ctx context.Context, project, signature string) ([]*primary.PushRecord, error) {
	records, err := a.service.ListPushes(ctx, project, signature)
	if err != nil {
		return nil, fmt.Errorf("failed to list pushes: %w", err)
	}

	decision, err := a.service.ShouldPush(ctx, project, signature)
	if err != nil {
		return nil, fmt.Errorf("failed to check push state: %w", err)
	}

	if len(records) == 0 {
		fmt.Fprintf(a.out, "Signature %s was never pushed.\n", signature)
		return records, nil
	}

	t := newTable(a.out)
	t.AppendHeader(table.Row{"TIME", "STATUS", "ISSUE", "ACTOR", "ERROR"})
	for _, r := range records {
		t.AppendRow(table.Row{formatTime(r.CreatedAt), pushStatusLabel(r.Status), r.IssueKey, r.Actor, truncate(r.ErrorMessage, 50)})
	}
	t.Render()

	next := "suppressed"
	if decision.Push {
		next = "allowed"
	}
	fmt.Fprintf(a.out, "\nNext push: %s (%s)\n", next, decision.Reason)

	return records, nil
}
