package cli

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/example/triage/internal/ports/primary"
)

func init() {
	color.NoColor = true
}

var testTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

var errNotImplemented = errors.New("not implemented in adapter test")

// mockGroupService implements primary.GroupService for testing
type mockGroupService struct {
	listGroupsFn  func(ctx context.Context, filters primary.GroupFilters) (*primary.GroupListing, error)
	getGroupFn    func(ctx context.Context, groupID string) (*primary.DefectGroup, error)
	listMembersFn func(ctx context.Context, groupID string) ([]*primary.GroupMember, error)

	lastFilters primary.GroupFilters
}

func (m *mockGroupService) UpsertOccurrence(ctx context.Context, req primary.OccurrenceRequest) (*primary.DefectGroup, error) {
	return nil, errNotImplemented
}

func (m *mockGroupService) ListGroups(ctx context.Context, filters primary.GroupFilters) (*primary.GroupListing, error) {
	m.lastFilters = filters
	if m.listGroupsFn != nil {
		return m.listGroupsFn(ctx, filters)
	}
	return &primary.GroupListing{Summary: primary.GroupSummary{ByClass: map[string]int{}}}, nil
}

func (m *mockGroupService) GetGroup(ctx context.Context, groupID string) (*primary.DefectGroup, error) {
	if m.getGroupFn != nil {
		return m.getGroupFn(ctx, groupID)
	}
	return testGroup(groupID), nil
}

func (m *mockGroupService) ListMembers(ctx context.Context, groupID string) ([]*primary.GroupMember, error) {
	if m.listMembersFn != nil {
		return m.listMembersFn(ctx, groupID)
	}
	return []*primary.GroupMember{
		{GroupID: groupID, FailureID: "F-1", ClassificationID: "C-1", OccurredAt: testTime},
	}, nil
}

func testGroup(id string) *primary.DefectGroup {
	return &primary.DefectGroup{
		ID:                  id,
		Project:             "shop",
		Signature:           "a1b2c3d4e5f6",
		ErrorType:           "TimeoutError",
		PrimaryClass:        "Automation Script Error",
		SubClass:            "Wait Strategy",
		RepresentativeError: "TimeoutError: waiting for locator('#submit')",
		FirstSeen:           testTime,
		LastSeen:            testTime.Add(time.Hour),
		OccurrenceCount:     2,
	}
}

// mockReclassificationService implements primary.ReclassificationService for testing
type mockReclassificationService struct {
	reclassifyFn func(ctx context.Context, req primary.ReclassifyRequest) (*primary.ReclassifyResponse, error)
	listAuditFn  func(ctx context.Context, filters primary.AuditFilters) ([]*primary.AuditEntry, error)

	lastStateReq primary.GroupStateRequest
}

func (m *mockReclassificationService) Reclassify(ctx context.Context, req primary.ReclassifyRequest) (*primary.ReclassifyResponse, error) {
	if m.reclassifyFn != nil {
		return m.reclassifyFn(ctx, req)
	}
	return nil, errNotImplemented
}

func (m *mockReclassificationService) ResolveGroup(ctx context.Context, req primary.GroupStateRequest) (*primary.DefectGroup, error) {
	m.lastStateReq = req
	g := testGroup(req.GroupID)
	g.Resolved = true
	return g, nil
}

func (m *mockReclassificationService) ReopenGroup(ctx context.Context, req primary.GroupStateRequest) (*primary.DefectGroup, error) {
	m.lastStateReq = req
	return testGroup(req.GroupID), nil
}

func (m *mockReclassificationService) ListAudit(ctx context.Context, filters primary.AuditFilters) ([]*primary.AuditEntry, error) {
	if m.listAuditFn != nil {
		return m.listAuditFn(ctx, filters)
	}
	return nil, nil
}

// mockClassificationService implements primary.ClassificationService for testing
type mockClassificationService struct {
	classifyBatchFn func(ctx context.Context, failures []primary.FailureInstance) (*primary.BatchResult, error)
	previewBatchFn  func(ctx context.Context, failures []primary.FailureInstance) (*primary.BatchPreview, error)
	getByFailureFn  func(ctx context.Context, failureID string) (*primary.Classification, error)
}

func (m *mockClassificationService) Classify(ctx context.Context, failure primary.FailureInstance) (*primary.ClassificationResult, error) {
	return nil, errNotImplemented
}

func (m *mockClassificationService) ClassifyBatch(ctx context.Context, failures []primary.FailureInstance) (*primary.BatchResult, error) {
	if m.classifyBatchFn != nil {
		return m.classifyBatchFn(ctx, failures)
	}
	return &primary.BatchResult{}, nil
}

func (m *mockClassificationService) PreviewBatch(ctx context.Context, failures []primary.FailureInstance) (*primary.BatchPreview, error) {
	if m.previewBatchFn != nil {
		return m.previewBatchFn(ctx, failures)
	}
	return &primary.BatchPreview{}, nil
}

func (m *mockClassificationService) GetClassification(ctx context.Context, classificationID string) (*primary.Classification, error) {
	return nil, errNotImplemented
}

func (m *mockClassificationService) GetByFailure(ctx context.Context, failureID string) (*primary.Classification, error) {
	if m.getByFailureFn != nil {
		return m.getByFailureFn(ctx, failureID)
	}
	return nil, primary.ErrNotFound
}

// mockRuleService implements primary.RuleService for testing
type mockRuleService struct {
	rules      []*primary.Rule
	importErr  error
	lastActive *bool
}

func (m *mockRuleService) CreateRule(ctx context.Context, req primary.RuleRequest) (*primary.Rule, error) {
	return nil, errNotImplemented
}

func (m *mockRuleService) UpdateRule(ctx context.Context, ruleID string, req primary.RuleRequest) (*primary.Rule, error) {
	return nil, errNotImplemented
}

func (m *mockRuleService) SetRuleActive(ctx context.Context, ruleID string, active bool) error {
	for _, r := range m.rules {
		if r.ID == ruleID {
			m.lastActive = &active
			return nil
		}
	}
	return primary.ErrNotFound
}

func (m *mockRuleService) GetRule(ctx context.Context, ruleID string) (*primary.Rule, error) {
	for _, r := range m.rules {
		if r.ID == ruleID {
			return r, nil
		}
	}
	return nil, primary.ErrNotFound
}

func (m *mockRuleService) ListRules(ctx context.Context, filters primary.RuleFilters) ([]*primary.Rule, error) {
	return m.rules, nil
}

func (m *mockRuleService) ImportRules(ctx context.Context, r io.Reader) (*primary.ImportResult, error) {
	if m.importErr != nil {
		return nil, m.importErr
	}
	return &primary.ImportResult{Created: 1, Updated: 1, RuleIDs: []string{"RULE-0001", "RULE-0016"}}, nil
}

func (m *mockRuleService) SeedDefaults(ctx context.Context) (*primary.ImportResult, error) {
	return &primary.ImportResult{Created: 15}, nil
}

// mockPushService implements primary.IssuePushService for testing
type mockPushService struct {
	pushGroupFn func(ctx context.Context, req primary.PushGroupRequest) (*primary.PushGroupResponse, error)
	records     []*primary.PushRecord
	decision    primary.PushDecision
}

func (m *mockPushService) ShouldPush(ctx context.Context, project, signature string) (*primary.PushDecision, error) {
	d := m.decision
	return &d, nil
}

func (m *mockPushService) RecordPush(ctx context.Context, req primary.RecordPushRequest) (*primary.PushRecord, error) {
	return nil, errNotImplemented
}

func (m *mockPushService) PushGroup(ctx context.Context, req primary.PushGroupRequest) (*primary.PushGroupResponse, error) {
	if m.pushGroupFn != nil {
		return m.pushGroupFn(ctx, req)
	}
	return nil, errNotImplemented
}

func (m *mockPushService) ListPushes(ctx context.Context, project, signature string) ([]*primary.PushRecord, error) {
	return m.records, nil
}
