package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/garyjia/approval-workflow/internal/application/dispatcher"
	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/event"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// Mock implementations

type mockRequestRepo struct {
	mu        sync.Mutex
	requests  []*entity.RequestSummary
	createErr error
	listErr   error
}

func matches(r *entity.RequestSummary, kind entity.RequestKind, f port.RequestFilter) bool {
	if r.Kind != kind {
		return false
	}
	if f.SubmitterID != "" && r.SubmitterID != f.SubmitterID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if r.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.CreatedBefore.IsZero() && !r.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	return true
}

func (m *mockRequestRepo) Get(ctx context.Context, kind entity.RequestKind, id string) (*entity.RequestSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.requests {
		if r.Kind == kind && r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (m *mockRequestRepo) List(ctx context.Context, kind entity.RequestKind, f port.RequestFilter) ([]*entity.RequestSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*entity.RequestSummary
	for _, r := range m.requests {
		if matches(r, kind, f) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *mockRequestRepo) CompareAndSwapStatus(ctx context.Context, kind entity.RequestKind, id string, from, to domainwf.State) error {
	return errors.New("not used")
}

func (m *mockRequestRepo) CreateExpense(ctx context.Context, e *entity.ExpenseClaim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.requests = append(m.requests, entity.Summarize(e))
	return nil
}

func (m *mockRequestRepo) CreatePurchaseOrder(ctx context.Context, po *entity.PurchaseOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.requests = append(m.requests, entity.Summarize(po))
	return nil
}

func (m *mockRequestRepo) SumAmount(ctx context.Context, kind entity.RequestKind, f port.RequestFilter) (float64, error) {
	list, _ := m.List(ctx, kind, port.RequestFilter{SubmitterID: f.SubmitterID, Statuses: f.Statuses})
	total := 0.0
	for _, r := range list {
		total += r.Amount
	}
	return total, nil
}

func (m *mockRequestRepo) Count(ctx context.Context, kind entity.RequestKind, f port.RequestFilter) (int, error) {
	list, _ := m.List(ctx, kind, port.RequestFilter{SubmitterID: f.SubmitterID, Statuses: f.Statuses})
	return len(list), nil
}

type mockProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*entity.Profile
}

func newMockProfileRepo(list ...*entity.Profile) *mockProfileRepo {
	m := &mockProfileRepo{profiles: make(map[string]*entity.Profile)}
	for _, p := range list {
		m.profiles[p.ID] = p
	}
	return m
}

func (m *mockProfileRepo) Create(ctx context.Context, p *entity.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
	return nil
}

func (m *mockProfileRepo) GetByID(ctx context.Context, id string) (*entity.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockProfileRepo) GetByEmail(ctx context.Context, email string) (*entity.Profile, error) {
	return nil, nil
}

func (m *mockProfileRepo) ListOrderedByEmail(ctx context.Context) ([]*entity.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Profile
	for _, p := range m.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *mockProfileRepo) ListByRole(ctx context.Context, role domainwf.Role) ([]*entity.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Profile
	for _, p := range m.profiles {
		if p.Role == role {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockProfileRepo) UpdateRole(ctx context.Context, id string, role domainwf.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[id].Role = role
	return nil
}

func (m *mockProfileRepo) CountByRole(ctx context.Context) (map[domainwf.Role]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[domainwf.Role]int)
	for _, p := range m.profiles {
		out[p.Role]++
	}
	return out, nil
}

type mockHistoryRepo struct {
	mu      sync.Mutex
	entries []*entity.HistoryEntry
}

func (m *mockHistoryRepo) Create(ctx context.Context, h *entity.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, h)
	return nil
}

func (m *mockHistoryRepo) ListByRequest(ctx context.Context, kind entity.RequestKind, requestID string) ([]*entity.HistoryEntry, error) {
	return m.entries, nil
}

type mockTxManager struct{}

func (mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockNotificationRepo struct {
	mu      sync.Mutex
	created []*entity.Notification
	err     error
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, n)
	return nil
}

func (m *mockNotificationRepo) Latest(ctx context.Context, userID string, limit int) ([]*entity.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Notification
	for i := len(m.created) - 1; i >= 0 && len(out) < limit; i-- {
		if m.created[i].UserID == userID {
			out = append(out, m.created[i])
		}
	}
	return out, nil
}

func (m *mockNotificationRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, x := range m.created {
		if x.UserID == userID && !x.IsRead {
			n++
		}
	}
	return n, nil
}

func (m *mockNotificationRepo) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, x := range m.created {
		if x.UserID == userID && !x.IsRead {
			x.IsRead = true
			n++
		}
	}
	return n, nil
}

func (m *mockNotificationRepo) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.created))
	for i, n := range m.created {
		out[i] = n.UserID
	}
	return out
}

type mockChannel struct {
	name string
	err  error

	mu         sync.Mutex
	deliveries []port.Delivery
}

func (m *mockChannel) Name() string { return m.name }

func (m *mockChannel) Deliver(ctx context.Context, d port.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, d)
	return m.err
}

type mockStore struct {
	puts    map[string][]byte
	deleted []string
	putErr  error
}

func (m *mockStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	if m.putErr != nil {
		return "", m.putErr
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if m.puts == nil {
		m.puts = make(map[string][]byte)
	}
	m.puts[key] = b
	return "https://receipts.test/" + key, nil
}

func (m *mockStore) Delete(ctx context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	return nil
}

type inspectorFunc func(ctx context.Context, name string, content []byte) error

func (f inspectorFunc) Inspect(ctx context.Context, name string, content []byte) error {
	return f(ctx, name, content)
}

// recordingDispatcher runs async dispatches inline and keeps every event
type recordingDispatcher struct {
	dispatcher.Dispatcher

	mu     sync.Mutex
	events []*event.Event
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{Dispatcher: dispatcher.NewDispatcher()}
}

func (r *recordingDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
	_ = r.Dispatcher.Dispatch(ctx, evt)
}

func (r *recordingDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
	return r.Dispatcher.Dispatch(ctx, evt)
}

func (r *recordingDispatcher) recorded() []*event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*event.Event(nil), r.events...)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// Test fixtures

var (
	employee  = entity.Actor{ID: "u-employee"}
	manager   = entity.Actor{ID: "u-manager"}
	finance   = entity.Actor{ID: "u-finance"}
	president = entity.Actor{ID: "u-president"}
	admin     = entity.Actor{ID: "u-admin"}
)

func seededProfiles() *mockProfileRepo {
	return newMockProfileRepo(
		&entity.Profile{ID: employee.ID, Email: "emma@example.com", Role: domainwf.RoleEmployee},
		&entity.Profile{ID: manager.ID, Email: "mike@example.com", Role: domainwf.RoleManager, LarkID: "ou_mike"},
		&entity.Profile{ID: finance.ID, Email: "fiona@example.com", Role: domainwf.RoleFinance},
		&entity.Profile{ID: president.ID, Email: "paul@example.com", Role: domainwf.RolePresident},
		&entity.Profile{ID: admin.ID, Email: "ada@example.com", Role: domainwf.RoleAdmin},
	)
}
