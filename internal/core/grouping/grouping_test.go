package grouping

import (
	"fmt"
	"testing"
	"time"

	"github.com/example/triage/internal/core/rules"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func occurrence(failureID, message string, at time.Time) Occurrence {
	return Occurrence{
		Key:          NewKey("shop", "a1b2c3d4e5f6"),
		FailureID:    failureID,
		ErrorType:    "TimeoutError",
		Message:      message,
		PrimaryClass: rules.AutomationScriptError,
		SubClass:     "Wait Strategy",
		OccurredAt:   at,
	}
}

func TestNewKey(t *testing.T) {
	if got := NewKey("  ", "abc"); got.Project != DefaultProject {
		t.Errorf("NewKey() project = %q, want %q", got.Project, DefaultProject)
	}
	if got := NewKey("shop", "abc"); got.Project != "shop" {
		t.Errorf("NewKey() project = %q, want %q", got.Project, "shop")
	}
}

func TestNewGroup(t *testing.T) {
	g := NewGroup(occurrence("f1", "  TimeoutError: waiting  ", base))

	if g.OccurrenceCount != 1 {
		t.Errorf("OccurrenceCount = %d, want 1", g.OccurrenceCount)
	}
	if !g.FirstSeen.Equal(base) || !g.LastSeen.Equal(base) {
		t.Errorf("seen window = [%v, %v], want both %v", g.FirstSeen, g.LastSeen, base)
	}
	if g.RepresentativeError != "TimeoutError: waiting" {
		t.Errorf("RepresentativeError = %q", g.RepresentativeError)
	}
	if g.Resolved {
		t.Error("new group should not be resolved")
	}
}

func TestApplyOccurrence(t *testing.T) {
	tests := []struct {
		name      string
		group     Group
		occ       Occurrence
		wantCount int
		wantFirst time.Time
		wantLast  time.Time
		wantRep   string
		wantClass rules.PrimaryClass
	}{
		{
			name:      "later occurrence extends last seen",
			group:     NewGroup(occurrence("f1", "TimeoutError: waiting for locator", base)),
			occ:       occurrence("f2", "TimeoutError: short", base.Add(time.Hour)),
			wantCount: 2,
			wantFirst: base,
			wantLast:  base.Add(time.Hour),
			wantRep:   "TimeoutError: waiting for locator",
			wantClass: rules.AutomationScriptError,
		},
		{
			name:      "out of order occurrence extends first seen",
			group:     NewGroup(occurrence("f1", "TimeoutError: waiting", base)),
			occ:       occurrence("f2", "TimeoutError: waiting", base.Add(-2*time.Hour)),
			wantCount: 2,
			wantFirst: base.Add(-2 * time.Hour),
			wantLast:  base,
			wantRep:   "TimeoutError: waiting",
			wantClass: rules.AutomationScriptError,
		},
		{
			name:      "better message replaces representative",
			group:     NewGroup(occurrence("f1", "TimeoutError: waiting for...", base)),
			occ:       occurrence("f2", "TimeoutError: waiting for locator", base),
			wantCount: 2,
			wantFirst: base,
			wantLast:  base,
			wantRep:   "TimeoutError: waiting for locator",
			wantClass: rules.AutomationScriptError,
		},
		{
			name: "automated class refreshes",
			group: func() Group {
				g := NewGroup(occurrence("f1", "m", base))
				g.PrimaryClass = rules.Unknown
				return g
			}(),
			occ:       occurrence("f2", "m", base),
			wantCount: 2,
			wantFirst: base,
			wantLast:  base,
			wantRep:   "m",
			wantClass: rules.AutomationScriptError,
		},
		{
			name: "manual class is kept",
			group: func() Group {
				g := NewGroup(occurrence("f1", "m", base))
				g.PrimaryClass = rules.ApplicationDefect
				g.ManualClass = true
				return g
			}(),
			occ:       occurrence("f2", "m", base),
			wantCount: 2,
			wantFirst: base,
			wantLast:  base,
			wantRep:   "m",
			wantClass: rules.ApplicationDefect,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyOccurrence(tt.group, tt.occ)

			if got.OccurrenceCount != tt.wantCount {
				t.Errorf("OccurrenceCount = %d, want %d", got.OccurrenceCount, tt.wantCount)
			}
			if !got.FirstSeen.Equal(tt.wantFirst) {
				t.Errorf("FirstSeen = %v, want %v", got.FirstSeen, tt.wantFirst)
			}
			if !got.LastSeen.Equal(tt.wantLast) {
				t.Errorf("LastSeen = %v, want %v", got.LastSeen, tt.wantLast)
			}
			if got.RepresentativeError != tt.wantRep {
				t.Errorf("RepresentativeError = %q, want %q", got.RepresentativeError, tt.wantRep)
			}
			if got.PrimaryClass != tt.wantClass {
				t.Errorf("PrimaryClass = %q, want %q", got.PrimaryClass, tt.wantClass)
			}
		})
	}
}

func TestApplyOccurrence_ResolvedStaysResolved(t *testing.T) {
	g := NewGroup(occurrence("f1", "m", base))
	g.Resolved = true

	got := ApplyOccurrence(g, occurrence("f2", "m", base.Add(time.Minute)))

	if !got.Resolved {
		t.Error("ApplyOccurrence() reopened a resolved group")
	}
}

func TestMoreRepresentative(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		current   string
		want      bool
	}{
		{"non-empty beats empty", "Error: boom", "", true},
		{"empty never wins", "", "Error: boom", false},
		{"both empty", "", "   ", false},
		{"complete beats truncated", "Error: short", "Error: a much longer message that got cut...", true},
		{"truncated loses to complete", "Error: long message [truncated]", "Error: x", false},
		{"fewer placeholders wins", "Expected total to be 42", "Expected [object Object] to be undefined!!", true},
		{"more placeholders loses", "Cannot read ${name} of undefined", "Cannot read name of user", false},
		{"longer wins", "TimeoutError: waiting for locator('#submit')", "TimeoutError: waiting", true},
		{"equal is not better", "same message", "same message", false},
		{"shorter loses", "Error", "Error: details", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MoreRepresentative(tt.candidate, tt.current); got != tt.want {
				t.Errorf("MoreRepresentative(%q, %q) = %v, want %v", tt.candidate, tt.current, got, tt.want)
			}
		})
	}
}

func TestAggregate(t *testing.T) {
	other := Key{Project: "shop", Signature: "ffffffffffff"}

	var occs []Occurrence
	for i := 0; i < 5; i++ {
		occs = append(occs, occurrence(fmt.Sprintf("f%d", i), "TimeoutError: waiting", base.Add(time.Duration(i)*time.Minute)))
	}
	occs = append(occs, occurrence("f0", "TimeoutError: waiting", base))
	occs = append(occs, Occurrence{Key: other, FailureID: "g1", Message: "TypeError: x", PrimaryClass: rules.ApplicationDefect, OccurredAt: base})

	groups := Aggregate(occs)

	if len(groups) != 2 {
		t.Fatalf("Aggregate() returned %d groups, want 2", len(groups))
	}
	if groups[0].Key != NewKey("shop", "a1b2c3d4e5f6") || groups[0].OccurrenceCount != 5 {
		t.Errorf("groups[0] = %+v, want count 5 for the timeout signature", groups[0])
	}
	if !groups[0].LastSeen.Equal(base.Add(4 * time.Minute)) {
		t.Errorf("groups[0].LastSeen = %v", groups[0].LastSeen)
	}
	if groups[1].Key != other || groups[1].OccurrenceCount != 1 {
		t.Errorf("groups[1] = %+v, want count 1 for the other signature", groups[1])
	}
}

func TestAggregate_ProjectsAreSeparate(t *testing.T) {
	a := occurrence("f1", "m", base)
	b := occurrence("f1", "m", base)
	b.Key = NewKey("billing", a.Key.Signature)

	if groups := Aggregate([]Occurrence{a, b}); len(groups) != 2 {
		t.Errorf("Aggregate() returned %d groups, want one per project", len(groups))
	}
}
