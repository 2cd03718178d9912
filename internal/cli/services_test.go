package cli

import (
	"strings"
	"testing"
	"time"
)

func TestReadFailures(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantIDs []string
		wantErr bool
	}{
		{
			name:    "array",
			input:   `[{"id": "F-1", "project": "shop"}, {"id": "F-2", "error_message": "boom"}]`,
			wantIDs: []string{"F-1", "F-2"},
		},
		{
			name:    "single object",
			input:   `  {"id": "F-9", "stack_trace": "at a.js:1"}`,
			wantIDs: []string{"F-9"},
		},
		{name: "empty", input: "  \n", wantErr: true},
		{name: "malformed", input: `[{"id": }]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures, err := readFailures(strings.NewReader(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("readFailures failed: %v", err)
			}
			if len(failures) != len(tt.wantIDs) {
				t.Fatalf("expected %d failures, got %d", len(tt.wantIDs), len(failures))
			}
			for i, id := range tt.wantIDs {
				if failures[i].ID != id {
					t.Errorf("failure %d: expected %s, got %s", i, id, failures[i].ID)
				}
			}
		})
	}
}

func TestReadFailures_DecodesFields(t *testing.T) {
	failures, err := readFailures(strings.NewReader(`[{
		"id": "F-1",
		"test_run_id": "RUN-7",
		"project": "shop",
		"test_name": "checkout",
		"error_message": "TimeoutError: waiting",
		"duration_ms": 30001,
		"timestamp": "2024-05-01T12:00:00Z"
	}]`))
	if err != nil {
		t.Fatal(err)
	}

	f := failures[0]
	if f.TestRunID != "RUN-7" || f.TestName != "checkout" || f.DurationMs != 30001 {
		t.Errorf("unexpected failure %+v", f)
	}
	if !f.Timestamp.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected timestamp %s", f.Timestamp)
	}
}

func TestParseSince(t *testing.T) {
	now := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		value   string
		want    time.Time
		wantErr bool
	}{
		{value: "", want: time.Time{}},
		{value: "24h", want: now.Add(-24 * time.Hour)},
		{value: "2024-05-01", want: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{value: "2024-05-01T08:30:00Z", want: time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)},
		{value: "-1h", wantErr: true},
		{value: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := parseSince(tt.value, now)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.value)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
