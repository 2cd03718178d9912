package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/example/triage/internal/core/grouping"
	"github.com/example/triage/internal/core/pushdedup"
	"github.com/example/triage/internal/ctxutil"
	"github.com/example/triage/internal/logging"
	"github.com/example/triage/internal/ports/primary"
	"github.com/example/triage/internal/ports/secondary"
)

// ErrTrackerNotConfigured is returned by PushGroup when no issue tracker is wired.
var ErrTrackerNotConfigured = errors.New("issue tracker is not configured")

const maxTitleLength = 120

// IssuePushServiceImpl implements the IssuePushService interface.
type IssuePushServiceImpl struct {
	store          secondary.Transactor
	tracker        secondary.IssueTracker
	pendingTimeout time.Duration
	now            func() time.Time
	newID          func() string
	logger         *slog.Logger
}

// NewIssuePushService creates a new IssuePushService with injected dependencies.
// tracker may be nil, in which case only the ledger operations are available.
func NewIssuePushService(store secondary.Transactor, tracker secondary.IssueTracker, pendingTimeout time.Duration) *IssuePushServiceImpl {
	if pendingTimeout <= 0 {
		pendingTimeout = pushdedup.DefaultPendingTimeout
	}
	return &IssuePushServiceImpl{
		store:          store,
		tracker:        tracker,
		pendingTimeout: pendingTimeout,
		now:            time.Now,
		newID:          uuid.NewString,
		logger:         logging.New("push"),
	}
}

// ShouldPush reports whether the signature needs a new tracker push.
func (s *IssuePushServiceImpl) ShouldPush(ctx context.Context, project, signature string) (*primary.PushDecision, error) {
	key := grouping.NewKey(project, signature)

	latest, err := s.store.Pushes().Latest(ctx, key.Project, key.Signature)
	if err != nil {
		return nil, storageError("read push ledger", err)
	}
	return s.decide(latest), nil
}

func (s *IssuePushServiceImpl) decide(latest *secondary.PushRecord) *primary.PushDecision {
	var last *pushdedup.LastPush
	if latest != nil {
		last = &pushdedup.LastPush{
			Status:    pushdedup.Status(latest.Status),
			IssueKey:  latest.IssueKey,
			CreatedAt: latest.CreatedAt,
		}
	}

	d := pushdedup.ShouldPush(last, s.now().UTC(), s.pendingTimeout)
	decision := &primary.PushDecision{Push: d.Push, Reason: d.Reason}
	if latest != nil {
		decision.Latest = recordToPush(latest)
	}
	return decision
}

// RecordPush appends a push attempt to the ledger.
func (s *IssuePushServiceImpl) RecordPush(ctx context.Context, req primary.RecordPushRequest) (*primary.PushRecord, error) {
	if strings.TrimSpace(req.Signature) == "" {
		return nil, invalidInput("signature is required")
	}

	var record *secondary.PushRecord
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx secondary.Store) error {
		var err error
		record, err = s.appendPush(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, storageError("record push", err)
	}
	return recordToPush(record), nil
}

func (s *IssuePushServiceImpl) appendPush(ctx context.Context, tx secondary.Store, req primary.RecordPushRequest) (*secondary.PushRecord, error) {
	key := grouping.NewKey(req.Project, req.Signature)

	record := &secondary.PushRecord{
		ID:        s.newID(),
		Project:   key.Project,
		Signature: key.Signature,
		GroupID:   req.GroupID,
		IssueKey:  req.IssueKey,
		IssueURL:  req.IssueURL,
		Status:    string(pushdedup.StatusSuccess),
		Payload:   req.Payload,
		Actor:     ctxutil.ResolveActor(ctx, req.Actor),
		CreatedAt: s.now().UTC(),
	}
	switch {
	case req.Err != nil:
		record.Status = string(pushdedup.StatusFailed)
		record.ErrorMessage = req.Err.Error()
	case req.Pending:
		record.Status = string(pushdedup.StatusPending)
	}

	if err := tx.Pushes().Append(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to append push record: %w", err)
	}
	return record, nil
}

// PushGroup files or updates the tracker issue of a group when needed.
func (s *IssuePushServiceImpl) PushGroup(ctx context.Context, req primary.PushGroupRequest) (*primary.PushGroupResponse, error) {
	if s.tracker == nil {
		return nil, ErrTrackerNotConfigured
	}

	var (
		group    *secondary.GroupRecord
		payload  secondary.IssuePayload
		body     string
		decision *primary.PushDecision
	)

	// The dedup check and the pending marker are written together so a
	// concurrent push of the same signature sees the attempt in progress.
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx secondary.Store) error {
		var err error
		group, err = tx.Groups().GetByID(ctx, req.GroupID)
		if errors.Is(err, secondary.ErrNotFound) {
			return notFound("group", req.GroupID)
		}
		if err != nil {
			return err
		}
		// Lock the group row for the rest of the transaction.
		if _, err := tx.Groups().GetByKey(ctx, group.Project, group.Signature); err != nil {
			return err
		}

		latest, err := tx.Pushes().Latest(ctx, group.Project, group.Signature)
		if err != nil {
			return err
		}
		decision = s.decide(latest)
		if req.Force && !decision.Push {
			decision.Push = true
			decision.Reason = "forced: " + decision.Reason
		}
		if !decision.Push {
			return nil
		}

		payload = buildIssuePayload(group)
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode issue payload: %w", err)
		}
		body = string(data)

		_, err = s.appendPush(ctx, tx, primary.RecordPushRequest{
			Project:   group.Project,
			Signature: group.Signature,
			GroupID:   group.ID,
			Pending:   true,
			Payload:   body,
			Actor:     req.Actor,
		})
		return err
	})
	if err != nil {
		return nil, storageError("push group", err)
	}

	if !decision.Push {
		s.logger.Debug("push suppressed", "group", group.ID, "reason", decision.Reason)
		return &primary.PushGroupResponse{Pushed: false, Reason: decision.Reason}, nil
	}

	ref, pushErr := s.tracker.CreateOrUpdateIssue(ctx, payload)

	outcome := primary.RecordPushRequest{
		Project:   group.Project,
		Signature: group.Signature,
		GroupID:   group.ID,
		Err:       pushErr,
		Payload:   body,
		Actor:     req.Actor,
	}
	if pushErr == nil && ref != nil {
		outcome.IssueKey = ref.Key
		outcome.IssueURL = ref.URL
	}

	// Recorded without the request context so a cancelled push still leaves
	// a terminal ledger entry.
	record, err := s.RecordPush(context.WithoutCancel(ctx), outcome)
	if err != nil {
		return nil, err
	}

	if pushErr != nil {
		s.logger.Warn("issue push failed", "group", group.ID, "signature", group.Signature, "error", pushErr)
		return &primary.PushGroupResponse{
			Pushed: false,
			Reason: "tracker error: " + pushErr.Error(),
			Record: record,
		}, nil
	}

	s.logger.Info("issue pushed", "group", group.ID, "issue", record.IssueKey)
	return &primary.PushGroupResponse{Pushed: true, Reason: decision.Reason, Record: record}, nil
}

// ListPushes lists the push history of a signature, newest first.
func (s *IssuePushServiceImpl) ListPushes(ctx context.Context, project, signature string) ([]*primary.PushRecord, error) {
	key := grouping.NewKey(project, signature)

	records, err := s.store.Pushes().List(ctx, key.Project, key.Signature)
	if err != nil {
		return nil, storageError("list pushes", err)
	}

	out := make([]*primary.PushRecord, len(records))
	for i, r := range records {
		out[i] = recordToPush(r)
	}
	return out, nil
}

func buildIssuePayload(g *secondary.GroupRecord) secondary.IssuePayload {
	summary := g.RepresentativeError
	if i := strings.IndexByte(summary, '\n'); i >= 0 {
		summary = summary[:i]
	}
	if summary == "" {
		summary = g.ErrorType
	}
	if utf8.RuneCountInString(summary) > maxTitleLength {
		summary = string([]rune(summary)[:maxTitleLength-3]) + "..."
	}

	class := g.PrimaryClass
	if g.SubClass != "" {
		class += " / " + g.SubClass
	}

	var desc strings.Builder
	fmt.Fprintf(&desc, "Classification: %s\n", class)
	fmt.Fprintf(&desc, "Signature: %s (project %s)\n", g.Signature, g.Project)
	fmt.Fprintf(&desc, "Occurrences: %d\n", g.OccurrenceCount)
	fmt.Fprintf(&desc, "First seen: %s\n", g.FirstSeen.UTC().Format(time.RFC3339))
	fmt.Fprintf(&desc, "Last seen: %s\n", g.LastSeen.UTC().Format(time.RFC3339))
	if g.RepresentativeError != "" {
		fmt.Fprintf(&desc, "\nRepresentative error:\n%s\n", g.RepresentativeError)
	}

	return secondary.IssuePayload{
		Project:         g.Project,
		Signature:       g.Signature,
		GroupID:         g.ID,
		Title:           fmt.Sprintf("[%s] %s", g.PrimaryClass, summary),
		Description:     desc.String(),
		PrimaryClass:    g.PrimaryClass,
		SubClass:        g.SubClass,
		OccurrenceCount: g.OccurrenceCount,
		FirstSeen:       g.FirstSeen,
		LastSeen:        g.LastSeen,
		Labels:          []string{"triage", labelFor(g.PrimaryClass), "sig-" + g.Signature},
	}
}

func labelFor(class string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(class)), " ", "-")
}

func recordToPush(r *secondary.PushRecord) *primary.PushRecord {
	return &primary.PushRecord{
		ID:           r.ID,
		Project:      r.Project,
		Signature:    r.Signature,
		GroupID:      r.GroupID,
		IssueKey:     r.IssueKey,
		IssueURL:     r.IssueURL,
		Status:       r.Status,
		ErrorMessage: r.ErrorMessage,
		Payload:      r.Payload,
		Actor:        r.Actor,
		CreatedAt:    r.CreatedAt,
	}
}

// Ensure IssuePushServiceImpl implements the interface
var _ primary.IssuePushService = (*IssuePushServiceImpl)(nil)
