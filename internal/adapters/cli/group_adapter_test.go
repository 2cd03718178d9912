package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/example/triage/internal/ports/primary"
)

func TestGroupAdapter_List_Empty(t *testing.T) {
	var out bytes.Buffer
	adapter := NewGroupAdapter(&mockGroupService{}, &mockReclassificationService{}, &out)

	if _, err := adapter.List(context.Background(), primary.GroupFilters{}); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if !strings.Contains(out.String(), "No defect groups found.") {
		t.Errorf("expected empty message, got %q", out.String())
	}
}

func TestGroupAdapter_List(t *testing.T) {
	var out bytes.Buffer
	service := &mockGroupService{
		listGroupsFn: func(ctx context.Context, filters primary.GroupFilters) (*primary.GroupListing, error) {
			return &primary.GroupListing{
				Groups: []*primary.DefectGroup{testGroup("G-1")},
				Summary: primary.GroupSummary{
					TotalGroups:      3,
					TotalOccurrences: 7,
					ByClass:          map[string]int{"Automation Script Error": 2, "Environment Issue": 1},
				},
			}, nil
		},
	}
	adapter := NewGroupAdapter(service, &mockReclassificationService{}, &out)

	_, err := adapter.List(context.Background(), primary.GroupFilters{Limit: 1, Project: "shop"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	output := out.String()
	for _, want := range []string{"G-1", "a1b2c3d4e5f6", "Automation Script Error / Wait Strategy", "3 groups, 7 occurrences", "(showing 1)", "Environment Issue"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}
	if service.lastFilters.Project != "shop" {
		t.Errorf("expected filters to be passed through, got %+v", service.lastFilters)
	}
}

func TestGroupAdapter_List_JSON(t *testing.T) {
	var out bytes.Buffer
	service := &mockGroupService{
		listGroupsFn: func(ctx context.Context, filters primary.GroupFilters) (*primary.GroupListing, error) {
			return &primary.GroupListing{
				Groups:  []*primary.DefectGroup{testGroup("G-1")},
				Summary: primary.GroupSummary{TotalGroups: 1, TotalOccurrences: 2, ByClass: map[string]int{}},
			}, nil
		},
	}
	adapter := NewGroupAdapter(service, &mockReclassificationService{}, &out)
	adapter.JSON = true

	if _, err := adapter.List(context.Background(), primary.GroupFilters{}); err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		Groups []map[string]any `json:"groups"`
		Summary struct {
			TotalOccurrences int `json:"totalOccurrences"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded.Summary.TotalOccurrences != 2 || decoded.Groups[0]["occurrenceCount"] != float64(2) {
		t.Errorf("unexpected JSON %s", out.String())
	}
	if _, ok := decoded.Groups[0]["resolvedAt"]; ok {
		t.Error("expected resolvedAt to be omitted for open groups")
	}
}

func TestGroupAdapter_Show(t *testing.T) {
	var out bytes.Buffer
	adapter := NewGroupAdapter(&mockGroupService{}, &mockReclassificationService{}, &out)

	if _, err := adapter.Show(context.Background(), "G-7"); err != nil {
		t.Fatalf("Show failed: %v", err)
	}

	output := out.String()
	for _, want := range []string{"Group: G-7", "Signature:   a1b2c3d4e5f6", "Occurrences: 2", "F-1", "waiting for locator"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}
}

func TestGroupAdapter_Show_NotFound(t *testing.T) {
	var out bytes.Buffer
	service := &mockGroupService{
		getGroupFn: func(ctx context.Context, groupID string) (*primary.DefectGroup, error) {
			return nil, primary.ErrNotFound
		},
	}
	adapter := NewGroupAdapter(service, &mockReclassificationService{}, &out)

	_, err := adapter.Show(context.Background(), "missing")
	if !errors.Is(err, primary.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGroupAdapter_ResolveAndReopen(t *testing.T) {
	var out bytes.Buffer
	reclass := &mockReclassificationService{}
	adapter := NewGroupAdapter(&mockGroupService{}, reclass, &out)
	ctx := context.Background()

	if _, err := adapter.Resolve(ctx, primary.GroupStateRequest{GroupID: "G-1", Actor: "alice", Note: "fixed"}); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if reclass.lastStateReq.Actor != "alice" || reclass.lastStateReq.Note != "fixed" {
		t.Errorf("expected request to be passed through, got %+v", reclass.lastStateReq)
	}
	if _, err := adapter.Reopen(ctx, primary.GroupStateRequest{GroupID: "G-1"}); err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}

	output := out.String()
	if !strings.Contains(output, "✓ Group G-1 resolved") || !strings.Contains(output, "✓ Group G-1 reopened") {
		t.Errorf("unexpected output %q", output)
	}
}
