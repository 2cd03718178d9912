package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/example/triage/internal/ports/primary"
)

func TestPushAdapter_Push(t *testing.T) {
	tests := []struct {
		name string
		resp *primary.PushGroupResponse
		want string
	}{
		{
			name: "pushed",
			resp: &primary.PushGroupResponse{Pushed: true, Record: &primary.PushRecord{Status: "success", IssueKey: "QA-7", IssueURL: "https://tracker/QA-7"}},
			want: "✓ Group G-1 pushed as QA-7",
		},
		{
			name: "suppressed",
			resp: &primary.PushGroupResponse{Reason: "issue QA-7 already exists"},
			want: "Skipped group G-1: issue QA-7 already exists",
		},
		{
			name: "tracker failure",
			resp: &primary.PushGroupResponse{Reason: "tracker error: 503", Record: &primary.PushRecord{Status: "failed"}},
			want: "failed push of group G-1: tracker error: 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			var got primary.PushGroupRequest
			service := &mockPushService{
				pushGroupFn: func(ctx context.Context, req primary.PushGroupRequest) (*primary.PushGroupResponse, error) {
					got = req
					return tt.resp, nil
				},
			}
			adapter := NewPushAdapter(service, &out)

			if _, err := adapter.Push(context.Background(), primary.PushGroupRequest{GroupID: "G-1", Force: true}); err != nil {
				t.Fatal(err)
			}
			if !got.Force {
				t.Error("expected force to be passed through")
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("expected %q in %q", tt.want, out.String())
			}
		})
	}
}

func TestPushAdapter_History(t *testing.T) {
	var out bytes.Buffer
	service := &mockPushService{
		records: []*primary.PushRecord{
			{Status: "failed", ErrorMessage: "tracker returned 503", Actor: "ci", CreatedAt: testTime},
		},
		decision: primary.PushDecision{Push: true, Reason: "previous push failed"},
	}
	adapter := NewPushAdapter(service, &out)

	if _, err := adapter.History(context.Background(), "shop", "0123456789ab"); err != nil {
		t.Fatal(err)
	}
	output := out.String()
	for _, want := range []string{"failed", "tracker returned 503", "Next push: allowed (previous push failed)"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}

	out.Reset()
	service.records = nil
	if _, err := adapter.History(context.Background(), "shop", "0123456789ab"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "never pushed") {
		t.Errorf("unexpected output %q", out.String())
	}
}
