package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/example/triage/internal/ports/primary"
)

// ClassificationAdapter is a thin adapter that translates CLI operations to
// ClassificationService and ReclassificationService calls.
type ClassificationAdapter struct {
	service primary.ClassificationService
	reclass primary.ReclassificationService
	out     io.Writer

	// JSON switches output to the outbound JSON shape.
	JSON bool
}

// NewClassificationAdapter creates a new ClassificationAdapter with the given services.
func NewClassificationAdapter(service primary.ClassificationService, reclass primary.ReclassificationService, out io.Writer) *ClassificationAdapter {
	return &ClassificationAdapter{
		service: service,
		reclass: reclass,
		out:     out,
	}
}

// Classify classifies a batch and prints one row per failure.
func (a *ClassificationAdapter) Classify(ctx context.Context, failures []primary.FailureInstance) (*primary.BatchResult, error) {
	batch, err := a.service.ClassifyBatch(ctx, failures)
	if batch == nil {
		return nil, fmt.Errorf("failed to classify failures: %w", err)
	}

	if a.JSON {
		results := make([]*primary.ClassificationResult, 0, len(batch.Items))
		for _, item := range batch.Items {
			if item.Result != nil {
				results = append(results, item.Result)
			}
		}
		if encErr := writeJSON(a.out, results); encErr != nil {
			return batch, encErr
		}
	} else {
		t := newTable(a.out)
		t.AppendHeader(table.Row{"FAILURE", "CLASS", "CONFIDENCE", "SIGNATURE", "GROUP", "RULE"})
		for _, item := range batch.Items {
			switch {
			case item.Err != nil:
				t.AppendRow(table.Row{item.FailureID, "error: " + item.Err.Error(), "", "", "", ""})
			case item.Result == nil:
				t.AppendRow(table.Row{item.FailureID, "skipped", "", "", "", ""})
			default:
				r := item.Result
				t.AppendRow(table.Row{
					r.FailureID,
					classLabel(classPair(r.PrimaryClass, r.SubClass)),
					fmt.Sprintf("%.3f", r.Confidence),
					r.Signature,
					r.GroupID,
					r.RuleID,
				})
			}
		}
		t.Render()
		fmt.Fprintf(a.out, "\n✓ %d classified, %d already classified, %d failed, %d skipped\n",
			batch.Classified, batch.Existing, batch.Failed, batch.Skipped)
	}

	if err != nil {
		return batch, fmt.Errorf("classification interrupted: %w", err)
	}
	return batch, nil
}

// Preview classifies and groups a batch without storing it.
func (a *ClassificationAdapter) Preview(ctx context.Context, failures []primary.FailureInstance) (*primary.BatchPreview, error) {
	preview, err := a.service.PreviewBatch(ctx, failures)
	if err != nil {
		return nil, fmt.Errorf("failed to preview failures: %w", err)
	}

	if a.JSON {
		return preview, writeJSON(a.out, preview.Results)
	}

	fmt.Fprintf(a.out, "Dry run: %d failures in %d groups (nothing stored)\n\n", len(preview.Results), len(preview.Groups))
	t := newTable(a.out)
	t.AppendHeader(table.Row{"SIGNATURE", "PROJECT", "CLASS", "COUNT", "REPRESENTATIVE ERROR"})
	for _, g := range preview.Groups {
		t.AppendRow(table.Row{
			g.Signature,
			g.Project,
			classLabel(classPair(g.PrimaryClass, g.SubClass)),
			g.OccurrenceCount,
			truncate(g.RepresentativeError, 60),
		})
	}
	t.Render()

	return preview, nil
}

// Show displays the classification of a failure.
func (a *ClassificationAdapter) Show(ctx context.Context, failureID string) (*primary.Classification, error) {
	c, err := a.service.GetByFailure(ctx, failureID)
	if err != nil {
		return nil, fmt.Errorf("failed to get classification: %w", err)
	}

	if a.JSON {
		return c, writeJSON(a.out, classificationToResult(c))
	}

	fmt.Fprintf(a.out, "\nClassification: %s\n", c.ID)
	fmt.Fprintf(a.out, "Failure:    %s\n", c.FailureID)
	if c.TestName != "" {
		fmt.Fprintf(a.out, "Test:       %s\n", c.TestName)
	}
	fmt.Fprintf(a.out, "Class:      %s\n", classLabel(classPair(c.PrimaryClass, c.SubClass)))
	fmt.Fprintf(a.out, "Confidence: %.3f\n", c.Confidence)
	fmt.Fprintf(a.out, "Signature:  %s\n", c.Signature)
	fmt.Fprintf(a.out, "Group:      %s\n", c.GroupID)
	if c.IsManual {
		fmt.Fprintf(a.out, "Manual:     yes (by %s)\n", c.ClassifiedBy)
	} else if c.RuleID != "" {
		fmt.Fprintf(a.out, "Rule:       %s\n", c.RuleID)
	}
	if len(c.SuggestedFixes) > 0 {
		fmt.Fprintln(a.out, "\nSuggested fixes:")
		for _, fix := range c.SuggestedFixes {
			fmt.Fprintf(a.out, "  - %s\n", fix)
		}
	}
	fmt.Fprintln(a.out)

	return c, nil
}

// Reclassify overrides a classification.
func (a *ClassificationAdapter) Reclassify(ctx context.Context, req primary.ReclassifyRequest) (*primary.ReclassifyResponse, error) {
	resp, err := a.reclass.Reclassify(ctx, req)
	if err != nil {
		return nil, err
	}

	c := resp.Classification
	if !resp.Changed {
		fmt.Fprintf(a.out, "Classification %s already is %s, nothing changed\n", c.ID, classPair(c.PrimaryClass, c.SubClass))
		return resp, nil
	}
	fmt.Fprintf(a.out, "✓ Classification %s reclassified\n", c.ID)
	fmt.Fprintf(a.out, "  → %s\n", classLabel(classPair(c.PrimaryClass, c.SubClass)))
	return resp, nil
}

// Audit prints audit entries, newest first.
func (a *ClassificationAdapter) Audit(ctx context.Context, filters primary.AuditFilters) ([]*primary.AuditEntry, error) {
	entries, err := a.reclass.ListAudit(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}

	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No audit entries found.")
		return entries, nil
	}

	t := newTable(a.out)
	t.AppendHeader(table.Row{"TIME", "ACTION", "SUBJECT", "FROM", "TO", "ACTOR", "NOTE"})
	for _, e := range entries {
		subject := e.ClassificationID
		if subject == "" {
			subject = e.GroupID
		}
		t.AppendRow(table.Row{
			formatTime(e.CreatedAt),
			e.Action,
			subject,
			classPair(e.OldPrimaryClass, e.OldSubClass),
			classPair(e.NewPrimaryClass, e.NewSubClass),
			e.Actor,
			truncate(e.Note, 40),
		})
	}
	t.Render()

	return entries, nil
}

func classificationToResult(c *primary.Classification) *primary.ClassificationResult {
	return &primary.ClassificationResult{
		ClassificationID: c.ID,
		FailureID:        c.FailureID,
		PrimaryClass:     c.PrimaryClass,
		SubClass:         c.SubClass,
		Confidence:       c.Confidence,
		Signature:        c.Signature,
		GroupID:          c.GroupID,
		IsManual:         c.IsManual,
		RuleID:           c.RuleID,
		SuggestedFixes:   c.SuggestedFixes,
	}
}
