package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/triage/internal/ports/secondary"
)

// Ensure mockStore implements the interface
var _ secondary.Transactor = (*mockStore)(nil)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// fixedClock returns a clock that starts at testNow and can be advanced.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: testNow}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sequentialIDs returns an ID generator producing prefix-1, prefix-2, ...
func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// memState is the full content of the mock store.
type memState struct {
	rules           map[string]secondary.RuleRecord
	classifications map[string]secondary.ClassificationRecord
	groups          map[string]secondary.GroupRecord
	members         []secondary.GroupMemberRecord
	audit           []secondary.AuditLogRecord
	pushes          []secondary.PushRecord
	seq             int64
}

func newMemState() *memState {
	return &memState{
		rules:           make(map[string]secondary.RuleRecord),
		classifications: make(map[string]secondary.ClassificationRecord),
		groups:          make(map[string]secondary.GroupRecord),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.rules {
		c.rules[k] = v
	}
	for k, v := range s.classifications {
		c.classifications[k] = v
	}
	for k, v := range s.groups {
		c.groups[k] = v
	}
	c.members = append(c.members, s.members...)
	c.audit = append(c.audit, s.audit...)
	c.pushes = append(c.pushes, s.pushes...)
	c.seq = s.seq
	return c
}

// mockStore is an in-memory secondary.Transactor. Transactions work on a
// copy of the state that replaces it on commit, so a failed unit of work
// leaves nothing behind.
type mockStore struct {
	mu     *sync.Mutex
	state  *memState
	errs   map[string]error
	counts map[string]int
	misses map[string]int
	inTx   bool
	txs    *int
}

func newMockStore() *mockStore {
	txs := 0
	return &mockStore{
		mu:     &sync.Mutex{},
		state:  newMemState(),
		errs:   make(map[string]error),
		counts: make(map[string]int),
		misses: make(map[string]int),
		txs:    &txs,
	}
}

// failOn makes the named operation (for example "groups.update") return err.
func (m *mockStore) failOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[op] = err
}

// failTimes makes the named operation return err for its next n calls only.
func (m *mockStore) failTimes(op string, n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[op] = err
	m.counts[op] = n
}

// missOn makes the next n calls of a lookup ("groups.get_by_key",
// "classifications.get_by_failure") report not found even when a row exists,
// as a reader racing a concurrent writer would see it.
func (m *mockStore) missOn(op string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses[op] = n
}

func (m *mockStore) fail(op string) error {
	err := m.errs[op]
	if n, ok := m.counts[op]; ok && err != nil {
		if n <= 1 {
			delete(m.errs, op)
			delete(m.counts, op)
		} else {
			m.counts[op] = n - 1
		}
	}
	return err
}

func (m *mockStore) missed(op string) bool {
	if m.misses[op] == 0 {
		return false
	}
	m.misses[op]--
	return true
}

func (m *mockStore) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *mockStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx secondary.Store) error) error {
	if m.inTx {
		return fn(ctx, m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	*m.txs++

	tx := &mockStore{mu: m.mu, state: m.state.clone(), errs: m.errs, counts: m.counts, misses: m.misses, inTx: true, txs: m.txs}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

func (m *mockStore) Rules() secondary.RuleRepository                     { return mockRules{m} }
func (m *mockStore) Classifications() secondary.ClassificationRepository { return mockClassifications{m} }
func (m *mockStore) Groups() secondary.GroupRepository                   { return mockGroups{m} }
func (m *mockStore) Audit() secondary.AuditLogRepository                 { return mockAudit{m} }
func (m *mockStore) Pushes() secondary.PushRecordRepository              { return mockPushes{m} }

// snapshot returns the committed state for assertions.
func (m *mockStore) snapshot() *memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// ============================================================================
// Rules
// ============================================================================

type mockRules struct{ m *mockStore }

func (r mockRules) Create(ctx context.Context, rule *secondary.RuleRecord) error {
	defer r.m.lock()()
	if err := r.m.fail("rules.create"); err != nil {
		return err
	}
	if _, ok := r.m.state.rules[rule.ID]; ok {
		return fmt.Errorf("rule %s: %w", rule.ID, secondary.ErrConflict)
	}
	r.m.state.rules[rule.ID] = *rule
	return nil
}

func (r mockRules) GetByID(ctx context.Context, id string) (*secondary.RuleRecord, error) {
	defer r.m.lock()()
	rule, ok := r.m.state.rules[id]
	if !ok {
		return nil, fmt.Errorf("rule %s: %w", id, secondary.ErrNotFound)
	}
	return &rule, nil
}

func (r mockRules) List(ctx context.Context, filters secondary.RuleFilters) ([]*secondary.RuleRecord, error) {
	defer r.m.lock()()
	var out []*secondary.RuleRecord
	for _, rule := range r.m.state.rules {
		if filters.ActiveOnly && !rule.Active {
			continue
		}
		if filters.PrimaryClass != "" && rule.PrimaryClass != filters.PrimaryClass {
			continue
		}
		out = append(out, &rule)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r mockRules) ListActive(ctx context.Context) ([]*secondary.RuleRecord, error) {
	if err := r.m.fail("rules.list_active"); err != nil {
		return nil, err
	}
	return r.List(ctx, secondary.RuleFilters{ActiveOnly: true})
}

func (r mockRules) Update(ctx context.Context, rule *secondary.RuleRecord) error {
	defer r.m.lock()()
	if _, ok := r.m.state.rules[rule.ID]; !ok {
		return fmt.Errorf("rule %s: %w", rule.ID, secondary.ErrNotFound)
	}
	r.m.state.rules[rule.ID] = *rule
	return nil
}

func (r mockRules) SetActive(ctx context.Context, id string, active bool) error {
	defer r.m.lock()()
	rule, ok := r.m.state.rules[id]
	if !ok {
		return fmt.Errorf("rule %s: %w", id, secondary.ErrNotFound)
	}
	rule.Active = active
	r.m.state.rules[id] = rule
	return nil
}

func (r mockRules) GetNextID(ctx context.Context) (string, error) {
	defer r.m.lock()()
	max := 0
	for id := range r.m.state.rules {
		var n int
		if _, err := fmt.Sscanf(id, "RULE-%d", &n); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("RULE-%04d", max+1), nil
}

// ============================================================================
// Classifications
// ============================================================================

type mockClassifications struct{ m *mockStore }

func (r mockClassifications) Create(ctx context.Context, c *secondary.ClassificationRecord) error {
	defer r.m.lock()()
	if err := r.m.fail("classifications.create"); err != nil {
		return err
	}
	for _, existing := range r.m.state.classifications {
		if existing.FailureID == c.FailureID {
			return fmt.Errorf("classification for failure %s: %w", c.FailureID, secondary.ErrConflict)
		}
	}
	r.m.state.classifications[c.ID] = *c
	return nil
}

func (r mockClassifications) GetByID(ctx context.Context, id string) (*secondary.ClassificationRecord, error) {
	defer r.m.lock()()
	c, ok := r.m.state.classifications[id]
	if !ok {
		return nil, fmt.Errorf("classification %s: %w", id, secondary.ErrNotFound)
	}
	return &c, nil
}

func (r mockClassifications) GetByFailureID(ctx context.Context, failureID string) (*secondary.ClassificationRecord, error) {
	defer r.m.lock()()
	if r.m.missed("classifications.get_by_failure") {
		return nil, fmt.Errorf("classification for failure %s: %w", failureID, secondary.ErrNotFound)
	}
	for _, c := range r.m.state.classifications {
		if c.FailureID == failureID {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("classification for failure %s: %w", failureID, secondary.ErrNotFound)
}

func (r mockClassifications) List(ctx context.Context, filters secondary.ClassificationFilters) ([]*secondary.ClassificationRecord, error) {
	defer r.m.lock()()
	var out []*secondary.ClassificationRecord
	for _, c := range r.m.state.classifications {
		if filters.Project != "" && c.Project != filters.Project {
			continue
		}
		if filters.Signature != "" && c.Signature != filters.Signature {
			continue
		}
		if filters.TestRunID != "" && c.TestRunID != filters.TestRunID {
			continue
		}
		if filters.PrimaryClass != "" && c.PrimaryClass != filters.PrimaryClass {
			continue
		}
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r mockClassifications) UpdateClass(ctx context.Context, id string, update secondary.ClassUpdate) error {
	defer r.m.lock()()
	c, ok := r.m.state.classifications[id]
	if !ok {
		return fmt.Errorf("classification %s: %w", id, secondary.ErrNotFound)
	}
	c.PrimaryClass = update.PrimaryClass
	c.SubClass = update.SubClass
	c.ClassifiedBy = update.ClassifiedBy
	c.IsManual = update.IsManual
	c.UpdatedAt = update.UpdatedAt
	r.m.state.classifications[id] = c
	return nil
}

// ============================================================================
// Groups
// ============================================================================

type mockGroups struct{ m *mockStore }

func (r mockGroups) Create(ctx context.Context, g *secondary.GroupRecord) error {
	defer r.m.lock()()
	if err := r.m.fail("groups.create"); err != nil {
		return err
	}
	for _, existing := range r.m.state.groups {
		if existing.Project == g.Project && existing.Signature == g.Signature {
			return fmt.Errorf("group for %s/%s: %w", g.Project, g.Signature, secondary.ErrConflict)
		}
	}
	r.m.state.groups[g.ID] = *g
	return nil
}

func (r mockGroups) GetByID(ctx context.Context, id string) (*secondary.GroupRecord, error) {
	defer r.m.lock()()
	g, ok := r.m.state.groups[id]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", id, secondary.ErrNotFound)
	}
	return &g, nil
}

func (r mockGroups) GetByKey(ctx context.Context, project, signature string) (*secondary.GroupRecord, error) {
	defer r.m.lock()()
	if r.m.missed("groups.get_by_key") {
		return nil, fmt.Errorf("group for %s/%s: %w", project, signature, secondary.ErrNotFound)
	}
	for _, g := range r.m.state.groups {
		if g.Project == project && g.Signature == signature {
			return &g, nil
		}
	}
	return nil, fmt.Errorf("group for %s/%s: %w", project, signature, secondary.ErrNotFound)
}

func (r mockGroups) List(ctx context.Context, filters secondary.GroupFilters) ([]*secondary.GroupRecord, error) {
	defer r.m.lock()()
	var out []*secondary.GroupRecord
	for _, g := range r.m.state.groups {
		if filters.Project != "" && g.Project != filters.Project {
			continue
		}
		if filters.PrimaryClass != "" && g.PrimaryClass != filters.PrimaryClass {
			continue
		}
		if filters.SubClass != "" && g.SubClass != filters.SubClass {
			continue
		}
		if filters.Resolved != nil && g.Resolved != *filters.Resolved {
			continue
		}
		if !filters.SeenSince.IsZero() && g.LastSeen.Before(filters.SeenSince) {
			continue
		}
		if !filters.SeenUntil.IsZero() && g.LastSeen.After(filters.SeenUntil) {
			continue
		}
		if q := strings.ToLower(filters.Search); q != "" &&
			!strings.Contains(strings.ToLower(g.RepresentativeError), q) &&
			!strings.Contains(strings.ToLower(g.SubClass), q) {
			continue
		}
		out = append(out, &g)
	}

	sort.Slice(out, func(i, j int) bool {
		switch filters.SortBy {
		case secondary.GroupSortLastSeen:
			return out[i].LastSeen.After(out[j].LastSeen)
		case secondary.GroupSortFirstSeen:
			return out[i].FirstSeen.After(out[j].FirstSeen)
		}
		if out[i].OccurrenceCount != out[j].OccurrenceCount {
			return out[i].OccurrenceCount > out[j].OccurrenceCount
		}
		return out[i].LastSeen.After(out[j].LastSeen)
	})

	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

func (r mockGroups) Update(ctx context.Context, g *secondary.GroupRecord) error {
	defer r.m.lock()()
	if err := r.m.fail("groups.update"); err != nil {
		return err
	}
	if _, ok := r.m.state.groups[g.ID]; !ok {
		return fmt.Errorf("group %s: %w", g.ID, secondary.ErrNotFound)
	}
	r.m.state.groups[g.ID] = *g
	return nil
}

func (r mockGroups) AddMember(ctx context.Context, member *secondary.GroupMemberRecord) error {
	defer r.m.lock()()
	for _, existing := range r.m.state.members {
		if existing.GroupID == member.GroupID && existing.FailureID == member.FailureID {
			return fmt.Errorf("failure %s in group %s: %w", member.FailureID, member.GroupID, secondary.ErrConflict)
		}
	}
	r.m.state.members = append(r.m.state.members, *member)
	return nil
}

func (r mockGroups) ListMembers(ctx context.Context, groupID string) ([]*secondary.GroupMemberRecord, error) {
	defer r.m.lock()()
	var out []*secondary.GroupMemberRecord
	for _, member := range r.m.state.members {
		if member.GroupID == groupID {
			out = append(out, &member)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (r mockGroups) CountMembers(ctx context.Context, groupID string) (int, error) {
	members, err := r.ListMembers(ctx, groupID)
	return len(members), err
}

// ============================================================================
// Audit
// ============================================================================

type mockAudit struct{ m *mockStore }

func (r mockAudit) Append(ctx context.Context, entry *secondary.AuditLogRecord) error {
	defer r.m.lock()()
	if err := r.m.fail("audit.append"); err != nil {
		return err
	}
	r.m.state.seq++
	entry.Seq = r.m.state.seq
	r.m.state.audit = append(r.m.state.audit, *entry)
	return nil
}

func (r mockAudit) List(ctx context.Context, filters secondary.AuditLogFilters) ([]*secondary.AuditLogRecord, error) {
	defer r.m.lock()()
	var out []*secondary.AuditLogRecord
	for i := len(r.m.state.audit) - 1; i >= 0; i-- {
		entry := r.m.state.audit[i]
		if filters.ClassificationID != "" && entry.ClassificationID != filters.ClassificationID {
			continue
		}
		if filters.GroupID != "" && entry.GroupID != filters.GroupID {
			continue
		}
		if filters.Action != "" && entry.Action != filters.Action {
			continue
		}
		out = append(out, &entry)
		if filters.Limit > 0 && len(out) == filters.Limit {
			break
		}
	}
	return out, nil
}

// ============================================================================
// Pushes
// ============================================================================

type mockPushes struct{ m *mockStore }

func (r mockPushes) Append(ctx context.Context, record *secondary.PushRecord) error {
	defer r.m.lock()()
	if err := r.m.fail("pushes.append"); err != nil {
		return err
	}
	r.m.state.seq++
	record.Seq = r.m.state.seq
	r.m.state.pushes = append(r.m.state.pushes, *record)
	return nil
}

func (r mockPushes) Latest(ctx context.Context, project, signature string) (*secondary.PushRecord, error) {
	records, err := r.List(ctx, project, signature)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

func (r mockPushes) List(ctx context.Context, project, signature string) ([]*secondary.PushRecord, error) {
	defer r.m.lock()()
	var out []*secondary.PushRecord
	for i := len(r.m.state.pushes) - 1; i >= 0; i-- {
		record := r.m.state.pushes[i]
		if record.Project == project && record.Signature == signature {
			out = append(out, &record)
		}
	}
	return out, nil
}

// ============================================================================
// Issue tracker
// ============================================================================

// Ensure mockTracker implements the interface
var _ secondary.IssueTracker = (*mockTracker)(nil)

type mockTracker struct {
	mu       sync.Mutex
	calls    []secondary.IssuePayload
	err      error
	issueKey string
}

func (t *mockTracker) CreateOrUpdateIssue(ctx context.Context, payload secondary.IssuePayload) (*secondary.IssueRef, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, payload)
	if t.err != nil {
		return nil, t.err
	}
	key := t.issueKey
	if key == "" {
		key = fmt.Sprintf("QA-%d", len(t.calls))
	}
	return &secondary.IssueRef{Key: key, URL: "https://tracker.example.com/browse/" + key}, nil
}
