package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/triage/internal/core/reclass"
	"github.com/example/triage/internal/core/rules"
	"github.com/example/triage/internal/ctxutil"
	"github.com/example/triage/internal/logging"
	"github.com/example/triage/internal/ports/primary"
	"github.com/example/triage/internal/ports/secondary"
)

// ReclassificationServiceImpl implements the ReclassificationService interface.
type ReclassificationServiceImpl struct {
	store  secondary.Transactor
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// NewReclassificationService creates a new ReclassificationService with injected dependencies.
func NewReclassificationService(store secondary.Transactor) *ReclassificationServiceImpl {
	return &ReclassificationServiceImpl{
		store:  store,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logging.New("reclassify"),
	}
}

// Reclassify overrides a classification and the class of its group.
func (s *ReclassificationServiceImpl) Reclassify(ctx context.Context, req primary.ReclassifyRequest) (*primary.ReclassifyResponse, error) {
	actor := ctxutil.ResolveActor(ctx, req.Actor)
	newSub := strings.TrimSpace(req.SubClass)

	newClass := req.PrimaryClass
	if parsed, err := rules.ParsePrimaryClass(req.PrimaryClass); err == nil {
		newClass = string(parsed)
	}

	resp := &primary.ReclassifyResponse{}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx secondary.Store) error {
		record, err := tx.Classifications().GetByID(ctx, req.ClassificationID)
		if err != nil && !errors.Is(err, secondary.ErrNotFound) {
			return err
		}

		guard := reclass.CanReclassify(reclass.ReclassifyContext{
			ClassificationID: req.ClassificationID,
			Exists:           err == nil,
			NewPrimaryClass:  newClass,
			Actor:            actor,
		})
		if !guard.Allowed {
			if record == nil {
				return notFound("classification", req.ClassificationID)
			}
			return invalidInput("%s", guard.Reason)
		}

		if reclass.IsNoop(record.PrimaryClass, record.SubClass, newClass, newSub) {
			resp.Classification = recordToClassification(record)
			return nil
		}

		now := s.now().UTC()
		if err := tx.Classifications().UpdateClass(ctx, record.ID, secondary.ClassUpdate{
			PrimaryClass: newClass,
			SubClass:     newSub,
			ClassifiedBy: actor,
			IsManual:     true,
			UpdatedAt:    now,
		}); err != nil {
			return fmt.Errorf("failed to update classification: %w", err)
		}

		// Manual classes apply to the group in place; the group key never changes.
		var groupID string
		group, err := tx.Groups().GetByKey(ctx, record.Project, record.Signature)
		switch {
		case err == nil:
			group.PrimaryClass = newClass
			group.SubClass = newSub
			group.ManualClass = true
			group.UpdatedAt = now
			if err := tx.Groups().Update(ctx, group); err != nil {
				return fmt.Errorf("failed to update group class: %w", err)
			}
			groupID = group.ID
		case !errors.Is(err, secondary.ErrNotFound):
			return fmt.Errorf("failed to read group: %w", err)
		}

		if err := tx.Audit().Append(ctx, &secondary.AuditLogRecord{
			ID:               s.newID(),
			ClassificationID: record.ID,
			GroupID:          groupID,
			Action:           primary.AuditActionReclassified,
			OldPrimaryClass:  record.PrimaryClass,
			OldSubClass:      record.SubClass,
			NewPrimaryClass:  newClass,
			NewSubClass:      newSub,
			Actor:            actor,
			Note:             req.Note,
			CreatedAt:        now,
		}); err != nil {
			return fmt.Errorf("failed to append audit entry: %w", err)
		}

		updated, err := tx.Classifications().GetByID(ctx, record.ID)
		if err != nil {
			return err
		}
		resp.Classification = recordToClassification(updated)
		resp.Classification.GroupID = groupID
		resp.Changed = true
		return nil
	})
	if err != nil {
		return nil, storageError("reclassify", err)
	}

	if resp.Changed {
		s.logger.Info("classification overridden",
			"classification", req.ClassificationID,
			"class", resp.Classification.PrimaryClass,
			"sub_class", resp.Classification.SubClass,
			"actor", actor)
	}
	return resp, nil
}

// ResolveGroup marks a group resolved.
func (s *ReclassificationServiceImpl) ResolveGroup(ctx context.Context, req primary.GroupStateRequest) (*primary.DefectGroup, error) {
	actor := ctxutil.ResolveActor(ctx, req.Actor)

	var result *secondary.GroupRecord
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx secondary.Store) error {
		group, err := s.loadGroup(ctx, tx, req.GroupID)
		if err != nil {
			return err
		}

		guard := reclass.CanResolve(reclass.GroupStateContext{
			GroupID:  req.GroupID,
			Exists:   group != nil,
			Resolved: group != nil && group.Resolved,
		})
		if !guard.Allowed {
			return notFound("group", req.GroupID)
		}

		result = group
		if group.Resolved {
			return nil
		}

		now := s.now().UTC()
		group.Resolved = true
		group.ResolvedAt = now
		group.ResolvedBy = actor
		group.UpdatedAt = now
		return s.saveGroupState(ctx, tx, group, primary.AuditActionResolved, actor, req.Note)
	})
	if err != nil {
		return nil, storageError("resolve group", err)
	}

	return recordToGroup(result), nil
}

// ReopenGroup clears the resolved flag of a group.
func (s *ReclassificationServiceImpl) ReopenGroup(ctx context.Context, req primary.GroupStateRequest) (*primary.DefectGroup, error) {
	actor := ctxutil.ResolveActor(ctx, req.Actor)

	var result *secondary.GroupRecord
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx secondary.Store) error {
		group, err := s.loadGroup(ctx, tx, req.GroupID)
		if err != nil {
			return err
		}

		guard := reclass.CanReopen(reclass.GroupStateContext{
			GroupID:  req.GroupID,
			Exists:   group != nil,
			Resolved: group != nil && group.Resolved,
		})
		if !guard.Allowed {
			if group == nil {
				return notFound("group", req.GroupID)
			}
			return invalidInput("%s", guard.Reason)
		}

		group.Resolved = false
		group.ResolvedAt = time.Time{}
		group.ResolvedBy = ""
		group.UpdatedAt = s.now().UTC()
		result = group
		return s.saveGroupState(ctx, tx, group, primary.AuditActionReopened, actor, req.Note)
	})
	if err != nil {
		return nil, storageError("reopen group", err)
	}

	return recordToGroup(result), nil
}

// loadGroup returns nil without error when the group does not exist.
func (s *ReclassificationServiceImpl) loadGroup(ctx context.Context, tx secondary.Store, groupID string) (*secondary.GroupRecord, error) {
	group, err := tx.Groups().GetByID(ctx, groupID)
	if errors.Is(err, secondary.ErrNotFound) {
		return nil, nil
	}
	return group, err
}

func (s *ReclassificationServiceImpl) saveGroupState(ctx context.Context, tx secondary.Store, group *secondary.GroupRecord, action, actor, note string) error {
	if err := tx.Groups().Update(ctx, group); err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}

	if err := tx.Audit().Append(ctx, &secondary.AuditLogRecord{
		ID:              s.newID(),
		GroupID:         group.ID,
		Action:          action,
		OldPrimaryClass: group.PrimaryClass,
		OldSubClass:     group.SubClass,
		NewPrimaryClass: group.PrimaryClass,
		NewSubClass:     group.SubClass,
		Actor:           actor,
		Note:            note,
		CreatedAt:       group.UpdatedAt,
	}); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	s.logger.Info("group "+action, "group", group.ID, "actor", actor)
	return nil
}

// ListAudit lists audit entries, newest first.
func (s *ReclassificationServiceImpl) ListAudit(ctx context.Context, filters primary.AuditFilters) ([]*primary.AuditEntry, error) {
	switch filters.Action {
	case "", primary.AuditActionCreated, primary.AuditActionReclassified,
		primary.AuditActionResolved, primary.AuditActionReopened:
	default:
		return nil, invalidInput("unknown audit action %q", filters.Action)
	}

	records, err := s.store.Audit().List(ctx, secondary.AuditLogFilters{
		ClassificationID: filters.ClassificationID,
		GroupID:          filters.GroupID,
		Action:           filters.Action,
		Limit:            filters.Limit,
	})
	if err != nil {
		return nil, storageError("list audit", err)
	}

	entries := make([]*primary.AuditEntry, len(records))
	for i, r := range records {
		entries[i] = &primary.AuditEntry{
			ID:               r.ID,
			ClassificationID: r.ClassificationID,
			GroupID:          r.GroupID,
			Action:           r.Action,
			OldPrimaryClass:  r.OldPrimaryClass,
			OldSubClass:      r.OldSubClass,
			NewPrimaryClass:  r.NewPrimaryClass,
			NewSubClass:      r.NewSubClass,
			Actor:            r.Actor,
			Note:             r.Note,
			CreatedAt:        r.CreatedAt,
		}
	}
	return entries, nil
}

// Ensure ReclassificationServiceImpl implements the interface
var _ primary.ReclassificationService = (*ReclassificationServiceImpl)(nil)
