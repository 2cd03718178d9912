package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/example/triage/internal/core/evidence"
	"github.com/example/triage/internal/core/grouping"
	"github.com/example/triage/internal/core/rules"
	"github.com/example/triage/internal/core/signature"
	"github.com/example/triage/internal/ctxutil"
	"github.com/example/triage/internal/logging"
	"github.com/example/triage/internal/ports/primary"
	"github.com/example/triage/internal/ports/secondary"
)

// DefaultWorkers bounds concurrent classification in a batch.
const DefaultWorkers = 4

// ClassificationServiceImpl implements the ClassificationService interface.
type ClassificationServiceImpl struct {
	store   secondary.Transactor
	workers int
	now     func() time.Time
	newID   func() string
	logger  *slog.Logger
}

// NewClassificationService creates a new ClassificationService with injected dependencies.
func NewClassificationService(store secondary.Transactor, workers int) *ClassificationServiceImpl {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &ClassificationServiceImpl{
		store:   store,
		workers: workers,
		now:     time.Now,
		newID:   uuid.NewString,
		logger:  logging.New("classifier"),
	}
}

// analysis is the storage-independent outcome for one failure.
type analysis struct {
	failure   primary.FailureInstance
	key       grouping.Key
	evidence  evidence.Normalized
	result    rules.Result
	snapshot  string
	occurred  time.Time
	signature string
}

// evidenceSnapshot is the JSON document kept with each classification.
type evidenceSnapshot struct {
	ErrorType      string   `json:"error_type"`
	Message        string   `json:"message,omitempty"`
	FileReferences []string `json:"file_references,omitempty"`
	TestName       string   `json:"test_name,omitempty"`
	Environment    string   `json:"environment,omitempty"`
	Framework      string   `json:"framework,omitempty"`
	Suite          string   `json:"suite,omitempty"`
	Browser        string   `json:"browser,omitempty"`
	DurationMs     int64    `json:"duration_ms,omitempty"`
	RuleName       string   `json:"rule_name,omitempty"`
}

// Classify normalizes, signs and classifies one failure and records it.
func (s *ClassificationServiceImpl) Classify(ctx context.Context, failure primary.FailureInstance) (*primary.ClassificationResult, error) {
	engine, err := s.loadEngine(ctx)
	if err != nil {
		return nil, err
	}
	return s.classify(ctx, engine, failure)
}

// ClassifyBatch classifies failures over a bounded worker pool.
func (s *ClassificationServiceImpl) ClassifyBatch(ctx context.Context, failures []primary.FailureInstance) (*primary.BatchResult, error) {
	engine, err := s.loadEngine(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]*primary.BatchItem, len(failures))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, failure := range failures {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			result, err := s.classify(gctx, engine, failure)
			items[i] = &primary.BatchItem{FailureID: failure.ID, Result: result, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	batch := &primary.BatchResult{Items: make([]*primary.BatchItem, 0, len(failures))}
	for i, item := range items {
		switch {
		case item == nil:
			item = &primary.BatchItem{FailureID: failures[i].ID}
			batch.Skipped++
		case item.Err != nil:
			batch.Failed++
		case item.Result.Existing:
			batch.Existing++
		default:
			batch.Classified++
		}
		batch.Items = append(batch.Items, item)
	}

	s.logger.Info("batch classified",
		"total", len(failures),
		"classified", batch.Classified,
		"existing", batch.Existing,
		"failed", batch.Failed,
		"skipped", batch.Skipped)

	if err := ctx.Err(); err != nil {
		return batch, err
	}
	return batch, nil
}

// PreviewBatch classifies and groups failures without persisting anything.
func (s *ClassificationServiceImpl) PreviewBatch(ctx context.Context, failures []primary.FailureInstance) (*primary.BatchPreview, error) {
	engine, err := s.loadEngine(ctx)
	if err != nil {
		return nil, err
	}

	preview := &primary.BatchPreview{}
	occurrences := make([]grouping.Occurrence, 0, len(failures))
	for _, failure := range failures {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, err := s.analyze(engine, failure)
		if err != nil {
			return nil, err
		}
		preview.Results = append(preview.Results, a.toResult("", ""))
		occurrences = append(occurrences, a.occurrence(""))
	}

	for _, g := range grouping.Aggregate(occurrences) {
		preview.Groups = append(preview.Groups, &primary.GroupPreview{
			Project:             g.Key.Project,
			Signature:           g.Key.Signature,
			ErrorType:           g.ErrorType,
			PrimaryClass:        string(g.PrimaryClass),
			SubClass:            g.SubClass,
			RepresentativeError: g.RepresentativeError,
			OccurrenceCount:     g.OccurrenceCount,
			FirstSeen:           g.FirstSeen,
			LastSeen:            g.LastSeen,
		})
	}

	return preview, nil
}

// GetClassification retrieves a classification by ID.
func (s *ClassificationServiceImpl) GetClassification(ctx context.Context, classificationID string) (*primary.Classification, error) {
	record, err := s.store.Classifications().GetByID(ctx, classificationID)
	if errors.Is(err, secondary.ErrNotFound) {
		return nil, notFound("classification", classificationID)
	}
	if err != nil {
		return nil, storageError("get classification", err)
	}
	return s.withGroup(ctx, s.store, record)
}

// GetByFailure retrieves the classification of a failure.
func (s *ClassificationServiceImpl) GetByFailure(ctx context.Context, failureID string) (*primary.Classification, error) {
	record, err := s.store.Classifications().GetByFailureID(ctx, failureID)
	if errors.Is(err, secondary.ErrNotFound) {
		return nil, notFound("classification for failure", failureID)
	}
	if err != nil {
		return nil, storageError("get classification", err)
	}
	return s.withGroup(ctx, s.store, record)
}

// loadEngine builds a rule engine from the active stored rules. Rules that no
// longer validate are logged and left out.
func (s *ClassificationServiceImpl) loadEngine(ctx context.Context) (*rules.Engine, error) {
	records, err := s.store.Rules().ListActive(ctx)
	if err != nil {
		return nil, storageError("load rules", err)
	}

	ruleSet := make([]rules.Rule, len(records))
	for i, r := range records {
		ruleSet[i] = recordToEngineRule(r)
	}

	engine, rejected := rules.NewEngine(ruleSet)
	for _, r := range rejected {
		s.logger.Warn("rule rejected", "rule", r.RuleID, "name", r.Name, "error", r.Err)
	}
	if len(engine.Rules()) == 0 {
		s.logger.Warn("no active rules, every failure will be unknown")
	}

	return engine, nil
}

// analyze runs the pure part of the pipeline.
func (s *ClassificationServiceImpl) analyze(engine *rules.Engine, failure primary.FailureInstance) (*analysis, error) {
	if strings.TrimSpace(failure.ID) == "" {
		return nil, invalidInput("failure id is required")
	}

	ev := evidence.Normalize(failure.ErrorMessage, failure.StackTrace)
	sig := signature.Generate(ev)
	key := grouping.NewKey(failure.Project, sig)

	result := engine.Classify(rules.Input{
		Message:        ev.Message,
		StackTrace:     ev.StackTrace,
		ErrorType:      ev.ErrorType,
		FileReferences: ev.FileReferences,
		TestName:       failure.TestName,
		Environment:    failure.Environment,
		Framework:      failure.Framework,
		Suite:          failure.Suite,
		Browser:        failure.Browser,
		Project:        key.Project,
	})

	snapshot, err := json.Marshal(evidenceSnapshot{
		ErrorType:      ev.ErrorType,
		Message:        ev.Message,
		FileReferences: ev.FileReferences,
		TestName:       failure.TestName,
		Environment:    failure.Environment,
		Framework:      failure.Framework,
		Suite:          failure.Suite,
		Browser:        failure.Browser,
		DurationMs:     failure.DurationMs,
		RuleName:       result.RuleName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode evidence: %w", err)
	}

	occurred := failure.Timestamp.UTC()
	if failure.Timestamp.IsZero() {
		occurred = s.now().UTC()
	}

	return &analysis{
		failure:   failure,
		key:       key,
		evidence:  ev,
		result:    result,
		snapshot:  string(snapshot),
		occurred:  occurred,
		signature: sig,
	}, nil
}

func (a *analysis) occurrence(classificationID string) grouping.Occurrence {
	return grouping.Occurrence{
		Key:              a.key,
		FailureID:        a.failure.ID,
		ClassificationID: classificationID,
		ErrorType:        a.evidence.ErrorType,
		Message:          a.evidence.Message,
		PrimaryClass:     a.result.PrimaryClass,
		SubClass:         a.result.SubClass,
		OccurredAt:       a.occurred,
	}
}

func (a *analysis) toResult(classificationID, groupID string) *primary.ClassificationResult {
	return &primary.ClassificationResult{
		ClassificationID: classificationID,
		FailureID:        a.failure.ID,
		PrimaryClass:     string(a.result.PrimaryClass),
		SubClass:         a.result.SubClass,
		Confidence:       a.result.Confidence,
		Signature:        a.signature,
		GroupID:          groupID,
		RuleID:           a.result.RuleID,
		SuggestedFixes:   a.result.SuggestedFixes,
	}
}

func (s *ClassificationServiceImpl) classify(ctx context.Context, engine *rules.Engine, failure primary.FailureInstance) (*primary.ClassificationResult, error) {
	a, err := s.analyze(engine, failure)
	if err != nil {
		return nil, err
	}

	// After losing to another writer of the same failure, the next attempt
	// returns that writer's result.
	var result *primary.ClassificationResult
	err = retryOnConflict(s.logger, "classify", func() error {
		var err error
		result, err = s.persist(ctx, a)
		return err
	})
	if err != nil {
		return nil, storageError("classify", err)
	}

	if !result.Existing {
		s.logger.Debug("failure classified",
			"failure", failure.ID,
			"signature", result.Signature,
			"class", result.PrimaryClass,
			"rule", result.RuleID,
			"confidence", result.Confidence)
	}
	return result, nil
}

// persist stores the classification, its audit entry and the group
// occurrence in one transaction. A failure classified earlier is returned
// as stored.
func (s *ClassificationServiceImpl) persist(ctx context.Context, a *analysis) (*primary.ClassificationResult, error) {
	actor := ctxutil.ResolveActor(ctx, "")
	var result *primary.ClassificationResult

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx secondary.Store) error {
		existing, err := tx.Classifications().GetByFailureID(ctx, a.failure.ID)
		if err == nil {
			c, err := s.withGroup(ctx, tx, existing)
			if err != nil {
				return err
			}
			result = classificationToResult(c)
			result.Existing = true
			return nil
		}
		if !errors.Is(err, secondary.ErrNotFound) {
			return err
		}

		now := s.now().UTC()
		record := &secondary.ClassificationRecord{
			ID:               s.newID(),
			FailureID:        a.failure.ID,
			TestRunID:        a.failure.TestRunID,
			Project:          a.key.Project,
			TestName:         a.failure.TestName,
			PrimaryClass:     string(a.result.PrimaryClass),
			SubClass:         a.result.SubClass,
			Confidence:       a.result.Confidence,
			Signature:        a.signature,
			ClassifiedBy:     actor,
			RuleID:           a.result.RuleID,
			EvidenceSnapshot: a.snapshot,
			SuggestedFixes:   a.result.SuggestedFixes,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.Classifications().Create(ctx, record); err != nil {
			return err
		}

		if err := tx.Audit().Append(ctx, &secondary.AuditLogRecord{
			ID:               s.newID(),
			ClassificationID: record.ID,
			Action:           primary.AuditActionCreated,
			NewPrimaryClass:  record.PrimaryClass,
			NewSubClass:      record.SubClass,
			Actor:            actor,
			CreatedAt:        now,
		}); err != nil {
			return fmt.Errorf("failed to append audit entry: %w", err)
		}

		group, err := upsertOccurrence(ctx, tx, a.occurrence(record.ID), now, s.newID, s.logger)
		if err != nil {
			return err
		}

		result = a.toResult(record.ID, group.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// withGroup converts a stored classification and attaches its group ID.
func (s *ClassificationServiceImpl) withGroup(ctx context.Context, store secondary.Store, record *secondary.ClassificationRecord) (*primary.Classification, error) {
	c := recordToClassification(record)

	group, err := store.Groups().GetByKey(ctx, record.Project, record.Signature)
	switch {
	case err == nil:
		c.GroupID = group.ID
	case !errors.Is(err, secondary.ErrNotFound):
		return nil, storageError("get classification group", err)
	}

	return c, nil
}

func recordToClassification(r *secondary.ClassificationRecord) *primary.Classification {
	return &primary.Classification{
		ID:               r.ID,
		FailureID:        r.FailureID,
		TestRunID:        r.TestRunID,
		Project:          r.Project,
		TestName:         r.TestName,
		PrimaryClass:     r.PrimaryClass,
		SubClass:         r.SubClass,
		Confidence:       r.Confidence,
		Signature:        r.Signature,
		IsManual:         r.IsManual,
		ClassifiedBy:     r.ClassifiedBy,
		RuleID:           r.RuleID,
		EvidenceSnapshot: r.EvidenceSnapshot,
		SuggestedFixes:   r.SuggestedFixes,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
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

// Ensure ClassificationServiceImpl implements the interface
var _ primary.ClassificationService = (*ClassificationServiceImpl)(nil)
