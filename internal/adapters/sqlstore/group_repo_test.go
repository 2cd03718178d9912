package sqlstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/triage/internal/ports/secondary"
)

func TestGroupRepository_UniqueKey(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	seedGroup(t, store, "g-1", "shop", "a1b2c3d4e5f6")

	dup := &secondary.GroupRecord{ID: "g-2", Project: "shop", Signature: "a1b2c3d4e5f6", PrimaryClass: "Unknown",
		FirstSeen: testTime, LastSeen: testTime, CreatedAt: testTime, UpdatedAt: testTime}
	if err := store.Groups().Create(ctx, dup); !errors.Is(err, secondary.ErrConflict) {
		t.Errorf("Create error = %v, want ErrConflict", err)
	}

	// The same signature in another project is a separate group.
	other := *dup
	other.Project = "billing"
	if err := store.Groups().Create(ctx, &other); err != nil {
		t.Errorf("Create in another project failed: %v", err)
	}
}

func TestGroupRepository_GetByKeyAndUpdate(t *testing.T) {
	store := setupTestStore(t)
	repo := store.Groups()
	ctx := context.Background()

	seedGroup(t, store, "g-1", "shop", "a1b2c3d4e5f6")

	got, err := repo.GetByKey(ctx, "shop", "a1b2c3d4e5f6")
	if err != nil {
		t.Fatalf("GetByKey failed: %v", err)
	}
	if got.ID != "g-1" || got.OccurrenceCount != 1 || got.Resolved {
		t.Errorf("got %+v", got)
	}
	if !got.ResolvedAt.IsZero() {
		t.Errorf("ResolvedAt = %v, want zero", got.ResolvedAt)
	}

	got.OccurrenceCount = 2
	got.LastSeen = testTime.Add(time.Hour)
	got.Resolved = true
	got.ResolvedAt = testTime.Add(2 * time.Hour)
	got.ResolvedBy = "alice"
	got.ManualClass = true
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	updated, _ := repo.GetByID(ctx, "g-1")
	if updated.OccurrenceCount != 2 || !updated.Resolved || updated.ResolvedBy != "alice" || !updated.ManualClass {
		t.Errorf("updated = %+v", updated)
	}
	if !updated.ResolvedAt.Equal(testTime.Add(2 * time.Hour)) {
		t.Errorf("ResolvedAt = %v", updated.ResolvedAt)
	}

	if _, err := repo.GetByKey(ctx, "shop", "ffffffffffff"); !errors.Is(err, secondary.ErrNotFound) {
		t.Errorf("GetByKey missing error = %v, want ErrNotFound", err)
	}
}

func TestGroupRepository_Members(t *testing.T) {
	store := setupTestStore(t)
	repo := store.Groups()
	ctx := context.Background()

	seedGroup(t, store, "g-1", "shop", "a1b2c3d4e5f6")

	for i, failureID := range []string{"f-2", "f-1"} {
		m := &secondary.GroupMemberRecord{
			ID:         "m-" + failureID,
			GroupID:    "g-1",
			FailureID:  failureID,
			OccurredAt: testTime.Add(-time.Duration(i) * time.Hour),
			CreatedAt:  testTime,
		}
		if err := repo.AddMember(ctx, m); err != nil {
			t.Fatalf("AddMember failed: %v", err)
		}
	}

	dup := &secondary.GroupMemberRecord{ID: "m-x", GroupID: "g-1", FailureID: "f-1", OccurredAt: testTime, CreatedAt: testTime}
	if err := repo.AddMember(ctx, dup); !errors.Is(err, secondary.ErrConflict) {
		t.Errorf("duplicate AddMember error = %v, want ErrConflict", err)
	}

	members, err := repo.ListMembers(ctx, "g-1")
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	if len(members) != 2 || members[0].FailureID != "f-1" {
		t.Errorf("members = %+v, want f-1 first", members)
	}

	count, _ := repo.CountMembers(ctx, "g-1")
	if count != 2 {
		t.Errorf("CountMembers = %d, want 2", count)
	}
}

func TestGroupRepository_List(t *testing.T) {
	store := setupTestStore(t)
	repo := store.Groups()
	ctx := context.Background()

	busy := seedGroup(t, store, "g-1", "shop", "aaaaaaaaaaaa")
	busy.OccurrenceCount = 10
	busy.LastSeen = testTime.Add(-48 * time.Hour)
	if err := repo.Update(ctx, busy); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	recent := seedGroup(t, store, "g-2", "shop", "bbbbbbbbbbbb")
	recent.OccurrenceCount = 3
	recent.LastSeen = testTime.Add(time.Hour)
	recent.PrimaryClass = "Environment Issue"
	recent.SubClass = "Network"
	recent.RepresentativeError = "Error: getaddrinfo ENOTFOUND api.internal"
	recent.Resolved = true
	if err := repo.Update(ctx, recent); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	seedGroup(t, store, "g-3", "billing", "cccccccccccc")

	resolved := true
	open := false

	tests := []struct {
		name    string
		filters secondary.GroupFilters
		wantIDs []string
	}{
		{"default order by count", secondary.GroupFilters{Project: "shop"}, []string{"g-1", "g-2"}},
		{"order by last seen", secondary.GroupFilters{Project: "shop", SortBy: secondary.GroupSortLastSeen}, []string{"g-2", "g-1"}},
		{"class filter", secondary.GroupFilters{PrimaryClass: "Environment Issue"}, []string{"g-2"}},
		{"sub class filter", secondary.GroupFilters{SubClass: "Network"}, []string{"g-2"}},
		{"resolved only", secondary.GroupFilters{Resolved: &resolved}, []string{"g-2"}},
		{"open only", secondary.GroupFilters{Project: "shop", Resolved: &open}, []string{"g-1"}},
		{"seen window", secondary.GroupFilters{SeenSince: testTime.Add(-time.Hour)}, []string{"g-2", "g-3"}},
		{"seen until", secondary.GroupFilters{SeenUntil: testTime.Add(-24 * time.Hour)}, []string{"g-1"}},
		{"search representative error", secondary.GroupFilters{Search: "enotfound"}, []string{"g-2"}},
		{"search sub class", secondary.GroupFilters{Search: "network"}, []string{"g-2"}},
		{"limit", secondary.GroupFilters{Limit: 1}, []string{"g-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups, err := repo.List(ctx, tt.filters)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			var ids []string
			for _, g := range groups {
				ids = append(ids, g.ID)
			}
			if len(ids) != len(tt.wantIDs) {
				t.Fatalf("ids = %v, want %v", ids, tt.wantIDs)
			}
			for i := range ids {
				if ids[i] != tt.wantIDs[i] {
					t.Errorf("ids = %v, want %v", ids, tt.wantIDs)
					break
				}
			}
		})
	}
}
