// Package grouping maintains defect group aggregates from failure occurrences.
// This is part of the Functional Core - no I/O, only pure functions.
package grouping

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/triage/internal/core/rules"
)

// DefaultProject scopes failures that arrive without a project.
const DefaultProject = "default"

// Key identifies a defect group. Grouping never crosses projects.
type Key struct {
	Project   string
	Signature string
}

// NewKey builds a key, substituting DefaultProject for an empty project.
func NewKey(project, signature string) Key {
	project = strings.TrimSpace(project)
	if project == "" {
		project = DefaultProject
	}
	return Key{Project: project, Signature: signature}
}

// Occurrence is one classified failure contributing to a group.
type Occurrence struct {
	Key              Key
	FailureID        string
	ClassificationID string
	ErrorType        string
	Message          string
	PrimaryClass     rules.PrimaryClass
	SubClass         string
	OccurredAt       time.Time
}

// Group is the aggregate state of one defect group.
type Group struct {
	Key                 Key
	ErrorType           string
	PrimaryClass        rules.PrimaryClass
	SubClass            string
	ManualClass         bool
	RepresentativeError string
	FirstSeen           time.Time
	LastSeen            time.Time
	OccurrenceCount     int
	Resolved            bool
}

// NewGroup starts a group from its first occurrence.
func NewGroup(occ Occurrence) Group {
	return Group{
		Key:                 occ.Key,
		ErrorType:           occ.ErrorType,
		PrimaryClass:        occ.PrimaryClass,
		SubClass:            occ.SubClass,
		RepresentativeError: strings.TrimSpace(occ.Message),
		FirstSeen:           occ.OccurredAt,
		LastSeen:            occ.OccurredAt,
		OccurrenceCount:     1,
	}
}

// ApplyOccurrence folds a new, distinct occurrence into the group.
// Occurrences may arrive out of order, so both ends of the seen window can move.
// The class follows the automated classification unless a person set it, and
// resolution state is left as is.
func ApplyOccurrence(g Group, occ Occurrence) Group {
	g.OccurrenceCount++

	if g.FirstSeen.IsZero() || occ.OccurredAt.Before(g.FirstSeen) {
		g.FirstSeen = occ.OccurredAt
	}
	if occ.OccurredAt.After(g.LastSeen) {
		g.LastSeen = occ.OccurredAt
	}

	if msg := strings.TrimSpace(occ.Message); MoreRepresentative(msg, g.RepresentativeError) {
		g.RepresentativeError = msg
	}

	if g.ErrorType == "" {
		g.ErrorType = occ.ErrorType
	}

	if !g.ManualClass {
		g.PrimaryClass = occ.PrimaryClass
		g.SubClass = occ.SubClass
	}

	return g
}

var truncationMarkers = []string{"...", "…", "[truncated]", "(truncated)"}

var placeholderTokens = []string{
	"[object object]", "undefined", "<unknown>", "<placeholder>", "{{", "${", "%s", "%d", "n/a",
}

// MoreRepresentative reports whether candidate describes a failure strictly
// better than current. Criteria in order: non-empty, not truncated, fewer
// placeholder tokens, longer.
func MoreRepresentative(candidate, current string) bool {
	candidate = strings.TrimSpace(candidate)
	current = strings.TrimSpace(current)

	if (candidate == "") != (current == "") {
		return candidate != ""
	}
	if candidate == "" {
		return false
	}

	if ct, cu := isTruncated(candidate), isTruncated(current); ct != cu {
		return !ct
	}

	if cp, up := placeholderCount(candidate), placeholderCount(current); cp != up {
		return cp < up
	}

	return utf8.RuneCountInString(candidate) > utf8.RuneCountInString(current)
}

func isTruncated(s string) bool {
	lower := strings.ToLower(s)
	for _, marker := range truncationMarkers {
		if strings.HasSuffix(lower, marker) {
			return true
		}
	}
	return false
}

func placeholderCount(s string) int {
	lower := strings.ToLower(s)
	n := 0
	for _, token := range placeholderTokens {
		n += strings.Count(lower, token)
	}
	return n
}

// Aggregate groups a batch of occurrences without touching storage. A failure
// counted twice under the same key is counted once. Groups are returned by
// occurrence count descending, then most recently seen.
func Aggregate(occurrences []Occurrence) []Group {
	groups := make(map[Key]*Group)
	members := make(map[Key]map[string]bool)
	var order []Key

	for _, occ := range occurrences {
		if occ.FailureID != "" {
			if members[occ.Key][occ.FailureID] {
				continue
			}
			if members[occ.Key] == nil {
				members[occ.Key] = make(map[string]bool)
			}
			members[occ.Key][occ.FailureID] = true
		}

		g, ok := groups[occ.Key]
		if !ok {
			created := NewGroup(occ)
			groups[occ.Key] = &created
			order = append(order, occ.Key)
			continue
		}
		*g = ApplyOccurrence(*g, occ)
	}

	out := make([]Group, 0, len(order))
	for _, key := range order {
		out = append(out, *groups[key])
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OccurrenceCount != out[j].OccurrenceCount {
			return out[i].OccurrenceCount > out[j].OccurrenceCount
		}
		return out[i].LastSeen.After(out[j].LastSeen)
	})

	return out
}
