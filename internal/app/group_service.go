package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/triage/internal/core/grouping"
	"github.com/example/triage/internal/core/rules"
	"github.com/example/triage/internal/core/signature"
	"github.com/example/triage/internal/logging"
	"github.com/example/triage/internal/ports/primary"
	"github.com/example/triage/internal/ports/secondary"
)

// GroupServiceImpl implements the GroupService interface.
type GroupServiceImpl struct {
	store  secondary.Transactor
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// NewGroupService creates a new GroupService with injected dependencies.
func NewGroupService(store secondary.Transactor) *GroupServiceImpl {
	return &GroupServiceImpl{
		store:  store,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logging.New("groups"),
	}
}

// UpsertOccurrence records a classified failure in its defect group.
func (s *GroupServiceImpl) UpsertOccurrence(ctx context.Context, req primary.OccurrenceRequest) (*primary.DefectGroup, error) {
	if strings.TrimSpace(req.FailureID) == "" {
		return nil, invalidInput("failure id is required")
	}
	if !signature.Valid(req.Signature) {
		return nil, invalidInput("invalid signature %q", req.Signature)
	}
	class, err := rules.ParsePrimaryClass(req.PrimaryClass)
	if err != nil {
		return nil, invalidInput("%v", err)
	}

	now := s.now().UTC()
	occurredAt := req.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}

	occ := grouping.Occurrence{
		Key:              grouping.NewKey(req.Project, req.Signature),
		FailureID:        req.FailureID,
		ClassificationID: req.ClassificationID,
		ErrorType:        req.ErrorType,
		Message:          req.Message,
		PrimaryClass:     class,
		SubClass:         strings.TrimSpace(req.SubClass),
		OccurredAt:       occurredAt,
	}

	var record *secondary.GroupRecord
	err = retryOnConflict(s.logger, "upsert occurrence", func() error {
		return s.store.WithinTx(ctx, func(ctx context.Context, tx secondary.Store) error {
			var err error
			record, err = upsertOccurrence(ctx, tx, occ, now, s.newID, s.logger)
			return err
		})
	})
	if err != nil {
		return nil, storageError("upsert occurrence", err)
	}

	return recordToGroup(record), nil
}

// upsertOccurrence folds one occurrence into the group for its key. It must
// run inside a transaction. A failure already counted in the group leaves the
// group unchanged.
func upsertOccurrence(ctx context.Context, tx secondary.Store, occ grouping.Occurrence, now time.Time, newID func() string, logger *slog.Logger) (*secondary.GroupRecord, error) {
	groups := tx.Groups()

	record, err := groups.GetByKey(ctx, occ.Key.Project, occ.Key.Signature)
	switch {
	case errors.Is(err, secondary.ErrNotFound):
		record = &secondary.GroupRecord{ID: newID(), CreatedAt: now, UpdatedAt: now}
		applyGroup(record, grouping.NewGroup(occ))

		err = groups.Create(ctx, record)
		if err == nil {
			if err := addMember(ctx, groups, record.ID, occ, now, newID); err != nil {
				return nil, err
			}
			logger.Debug("group created", "group", record.ID, "project", record.Project, "signature", record.Signature)
			return record, nil
		}
		if !errors.Is(err, secondary.ErrConflict) {
			return nil, fmt.Errorf("failed to create group: %w", err)
		}

		logger.Debug("group created concurrently, updating instead", "project", occ.Key.Project, "signature", occ.Key.Signature)
		record, err = groups.GetByKey(ctx, occ.Key.Project, occ.Key.Signature)
		if err != nil {
			return nil, fmt.Errorf("failed to re-read group: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read group: %w", err)
	}

	err = addMember(ctx, groups, record.ID, occ, now, newID)
	if errors.Is(err, secondary.ErrConflict) {
		return record, nil
	}
	if err != nil {
		return nil, err
	}

	applyGroup(record, grouping.ApplyOccurrence(recordToAggregate(record), occ))
	record.UpdatedAt = now

	if err := groups.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update group: %w", err)
	}

	return record, nil
}

func addMember(ctx context.Context, groups secondary.GroupRepository, groupID string, occ grouping.Occurrence, now time.Time, newID func() string) error {
	err := groups.AddMember(ctx, &secondary.GroupMemberRecord{
		ID:               newID(),
		GroupID:          groupID,
		FailureID:        occ.FailureID,
		ClassificationID: occ.ClassificationID,
		OccurredAt:       occ.OccurredAt,
		CreatedAt:        now,
	})
	if err != nil && !errors.Is(err, secondary.ErrConflict) {
		return fmt.Errorf("failed to add group member: %w", err)
	}
	return err
}

// ListGroups lists groups with optional filters and a summary.
func (s *GroupServiceImpl) ListGroups(ctx context.Context, filters primary.GroupFilters) (*primary.GroupListing, error) {
	sortBy := filters.SortBy
	switch sortBy {
	case "":
		sortBy = primary.GroupSortOccurrences
	case primary.GroupSortOccurrences, primary.GroupSortLastSeen, primary.GroupSortFirstSeen:
	default:
		return nil, invalidInput("unknown sort %q (must be occurrences, last_seen or first_seen)", filters.SortBy)
	}

	var class string
	if filters.PrimaryClass != "" {
		parsed, err := rules.ParsePrimaryClass(filters.PrimaryClass)
		if err != nil {
			return nil, invalidInput("%v", err)
		}
		class = string(parsed)
	}

	if filters.Limit < 0 {
		return nil, invalidInput("limit must not be negative")
	}

	// The summary covers every match, so the limit is applied here.
	records, err := s.store.Groups().List(ctx, secondary.GroupFilters{
		Project:      filters.Project,
		PrimaryClass: class,
		SubClass:     filters.SubClass,
		Resolved:     filters.Resolved,
		SeenSince:    filters.SeenSince,
		SeenUntil:    filters.SeenUntil,
		Search:       strings.TrimSpace(filters.Search),
		SortBy:       sortBy,
	})
	if err != nil {
		return nil, storageError("list groups", err)
	}

	listing := &primary.GroupListing{
		Groups:  make([]*primary.DefectGroup, 0, len(records)),
		Summary: primary.GroupSummary{ByClass: make(map[string]int)},
	}
	for _, r := range records {
		listing.Summary.TotalGroups++
		listing.Summary.TotalOccurrences += r.OccurrenceCount
		listing.Summary.ByClass[r.PrimaryClass]++

		if filters.Limit == 0 || len(listing.Groups) < filters.Limit {
			listing.Groups = append(listing.Groups, recordToGroup(r))
		}
	}

	return listing, nil
}

// GetGroup retrieves a group by ID.
func (s *GroupServiceImpl) GetGroup(ctx context.Context, groupID string) (*primary.DefectGroup, error) {
	record, err := s.store.Groups().GetByID(ctx, groupID)
	if errors.Is(err, secondary.ErrNotFound) {
		return nil, notFound("group", groupID)
	}
	if err != nil {
		return nil, storageError("get group", err)
	}
	return recordToGroup(record), nil
}

// ListMembers lists the failures counted toward a group.
func (s *GroupServiceImpl) ListMembers(ctx context.Context, groupID string) ([]*primary.GroupMember, error) {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}

	records, err := s.store.Groups().ListMembers(ctx, groupID)
	if err != nil {
		return nil, storageError("list group members", err)
	}

	members := make([]*primary.GroupMember, len(records))
	for i, r := range records {
		members[i] = &primary.GroupMember{
			GroupID:          r.GroupID,
			FailureID:        r.FailureID,
			ClassificationID: r.ClassificationID,
			OccurredAt:       r.OccurredAt,
		}
	}
	return members, nil
}

// recordToAggregate converts a stored group to its pure aggregate state.
func recordToAggregate(r *secondary.GroupRecord) grouping.Group {
	return grouping.Group{
		Key:                 grouping.Key{Project: r.Project, Signature: r.Signature},
		ErrorType:           r.ErrorType,
		PrimaryClass:        rules.PrimaryClass(r.PrimaryClass),
		SubClass:            r.SubClass,
		ManualClass:         r.ManualClass,
		RepresentativeError: r.RepresentativeError,
		FirstSeen:           r.FirstSeen,
		LastSeen:            r.LastSeen,
		OccurrenceCount:     r.OccurrenceCount,
		Resolved:            r.Resolved,
	}
}

// applyGroup copies aggregate state onto a stored group.
func applyGroup(r *secondary.GroupRecord, g grouping.Group) {
	r.Project = g.Key.Project
	r.Signature = g.Key.Signature
	r.ErrorType = g.ErrorType
	r.PrimaryClass = string(g.PrimaryClass)
	r.SubClass = g.SubClass
	r.ManualClass = g.ManualClass
	r.RepresentativeError = g.RepresentativeError
	r.FirstSeen = g.FirstSeen
	r.LastSeen = g.LastSeen
	r.OccurrenceCount = g.OccurrenceCount
	r.Resolved = g.Resolved
}

func recordToGroup(r *secondary.GroupRecord) *primary.DefectGroup {
	return &primary.DefectGroup{
		ID:                  r.ID,
		Project:             r.Project,
		Signature:           r.Signature,
		ErrorType:           r.ErrorType,
		PrimaryClass:        r.PrimaryClass,
		SubClass:            r.SubClass,
		ManualClass:         r.ManualClass,
		RepresentativeError: r.RepresentativeError,
		FirstSeen:           r.FirstSeen,
		LastSeen:            r.LastSeen,
		OccurrenceCount:     r.OccurrenceCount,
		Resolved:            r.Resolved,
		ResolvedAt:          r.ResolvedAt,
		ResolvedBy:          r.ResolvedBy,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

// Ensure GroupServiceImpl implements the interface
var _ primary.GroupService = (*GroupServiceImpl)(nil)
