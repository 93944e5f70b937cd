package workflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garyjia/approval-workflow/internal/application/dispatcher"
	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/event"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// Mock implementations

type mockRequestRepo struct {
	mu       sync.Mutex
	requests map[string]*entity.RequestSummary
	getErr   error
	casErr   error
	casCalls int
}

func newMockRequestRepo(reqs ...*entity.RequestSummary) *mockRequestRepo {
	m := &mockRequestRepo{requests: make(map[string]*entity.RequestSummary)}
	for _, r := range reqs {
		m.requests[string(r.Kind)+"/"+r.ID] = r
	}
	return m
}

func (m *mockRequestRepo) Get(ctx context.Context, kind entity.RequestKind, id string) (*entity.RequestSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	r, ok := m.requests[string(kind)+"/"+id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *mockRequestRepo) List(ctx context.Context, kind entity.RequestKind, filter port.RequestFilter) ([]*entity.RequestSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.RequestSummary
	for _, r := range m.requests {
		if r.Kind == kind {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRequestRepo) CompareAndSwapStatus(ctx context.Context, kind entity.RequestKind, id string, from, to domainwf.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.casCalls++
	if m.casErr != nil {
		return m.casErr
	}
	r, ok := m.requests[string(kind)+"/"+id]
	if !ok || !r.Status.Equivalent(from) {
		return port.ErrStaleStatus
	}
	r.Status = to
	return nil
}

func (m *mockRequestRepo) status(kind entity.RequestKind, id string) domainwf.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[string(kind)+"/"+id].Status
}

func (m *mockRequestRepo) CreateExpense(ctx context.Context, e *entity.ExpenseClaim) error { return nil }
func (m *mockRequestRepo) CreatePurchaseOrder(ctx context.Context, po *entity.PurchaseOrder) error {
	return nil
}
func (m *mockRequestRepo) SumAmount(ctx context.Context, kind entity.RequestKind, filter port.RequestFilter) (float64, error) {
	return 0, nil
}
func (m *mockRequestRepo) Count(ctx context.Context, kind entity.RequestKind, filter port.RequestFilter) (int, error) {
	return 0, nil
}

type mockProfileRepo struct {
	profiles map[string]*entity.Profile
}

func (m *mockProfileRepo) GetByID(ctx context.Context, id string) (*entity.Profile, error) {
	return m.profiles[id], nil
}
func (m *mockProfileRepo) Create(ctx context.Context, p *entity.Profile) error { return nil }
func (m *mockProfileRepo) GetByEmail(ctx context.Context, email string) (*entity.Profile, error) {
	return nil, nil
}
func (m *mockProfileRepo) ListOrderedByEmail(ctx context.Context) ([]*entity.Profile, error) {
	return nil, nil
}
func (m *mockProfileRepo) ListByRole(ctx context.Context, role domainwf.Role) ([]*entity.Profile, error) {
	return nil, nil
}
func (m *mockProfileRepo) UpdateRole(ctx context.Context, id string, role domainwf.Role) error {
	return nil
}
func (m *mockProfileRepo) CountByRole(ctx context.Context) (map[domainwf.Role]int, error) {
	return nil, nil
}

type mockHistoryRepo struct {
	mu        sync.Mutex
	entries   []*entity.HistoryEntry
	createErr error
}

func (m *mockHistoryRepo) Create(ctx context.Context, h *entity.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, h)
	return nil
}

func (m *mockHistoryRepo) ListByRequest(ctx context.Context, kind entity.RequestKind, requestID string) ([]*entity.HistoryEntry, error) {
	return m.entries, nil
}

// mockTxManager serialises transactions like a single-writer store would
type mockTxManager struct {
	mu sync.Mutex
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx)
}

// Test fixtures

var (
	employee  = entity.Actor{ID: "u-employee"}
	manager   = entity.Actor{ID: "u-manager"}
	finance   = entity.Actor{ID: "u-finance"}
	president = entity.Actor{ID: "u-president"}
	admin     = entity.Actor{ID: "u-admin"}
)

func profiles() *mockProfileRepo {
	return &mockProfileRepo{profiles: map[string]*entity.Profile{
		employee.ID:  {ID: employee.ID, Role: domainwf.RoleEmployee},
		manager.ID:   {ID: manager.ID, Role: domainwf.RoleManager},
		finance.ID:   {ID: finance.ID, Role: domainwf.RoleFinance},
		president.ID: {ID: president.ID, Role: domainwf.RolePresident},
		admin.ID:     {ID: admin.ID, Role: domainwf.RoleAdmin},
	}}
}

func claim(id string, amount float64, status domainwf.State) *entity.RequestSummary {
	return &entity.RequestSummary{
		ID:          id,
		Kind:        entity.KindExpense,
		Amount:      amount,
		Status:      status,
		SubmitterID: employee.ID,
		Title:       "Taxi",
		CreatedAt:   time.Now(),
	}
}

func order(id string, amount float64, status domainwf.State) *entity.RequestSummary {
	r := claim(id, amount, status)
	r.Kind = entity.KindPurchaseOrder
	return r
}

type fixture struct {
	engine   WorkflowEngine
	requests *mockRequestRepo
	history  *mockHistoryRepo
	disp     dispatcher.Dispatcher
}

func newFixture(reqs ...*entity.RequestSummary) *fixture {
	f := &fixture{
		requests: newMockRequestRepo(reqs...),
		history:  &mockHistoryRepo{},
		disp:     dispatcher.NewDispatcher(),
	}
	f.engine = NewEngine(
		f.requests,
		profiles(),
		f.history,
		&mockTxManager{},
		domainwf.NewLifecycle(domainwf.DefaultPolicy()),
		WithDispatcher(f.disp),
	)
	return f
}

func TestEngine_ScenarioA_SmallClaimApprovedByManager(t *testing.T) {
	f := newFixture(claim("a", 15, domainwf.StatePendingManager))

	res, err := f.engine.Approve(context.Background(), manager, entity.KindExpense, "a")
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if res.To != domainwf.StateApproved || res.Escalated {
		t.Errorf("result = %+v, want approved without escalation", res)
	}
	if got := f.requests.status(entity.KindExpense, "a"); got != domainwf.StateApproved {
		t.Errorf("stored status = %v, want approved", got)
	}
}

func TestEngine_ScenarioB_MidClaimTwoHops(t *testing.T) {
	f := newFixture(claim("b", 35, domainwf.StatePendingManager))
	ctx := context.Background()

	res, err := f.engine.Approve(ctx, manager, entity.KindExpense, "b")
	if err != nil {
		t.Fatalf("manager Approve() error = %v", err)
	}
	if res.To != domainwf.StatePendingFinance || !res.Escalated || res.NextRole != domainwf.RoleFinance {
		t.Errorf("manager result = %+v", res)
	}

	res, err = f.engine.Approve(ctx, finance, entity.KindExpense, "b")
	if err != nil {
		t.Fatalf("finance Approve() error = %v", err)
	}
	if res.To != domainwf.StateApproved {
		t.Errorf("finance result = %v, want approved", res.To)
	}
	if len(f.history.entries) != 2 {
		t.Errorf("history entries = %d, want 2", len(f.history.entries))
	}
}

func TestEngine_ScenarioC_LargeOrderThreeHops(t *testing.T) {
	f := newFixture(order("c", 75, domainwf.StatePendingManager))
	ctx := context.Background()

	steps := []struct {
		actor entity.Actor
		want  domainwf.State
	}{
		{manager, domainwf.StatePendingFinance},
		{finance, domainwf.StatePendingPresident},
		{president, domainwf.StateApproved},
	}

	for i, s := range steps {
		res, err := f.engine.Approve(ctx, s.actor, entity.KindPurchaseOrder, "c")
		if err != nil {
			t.Fatalf("step %d: Approve() error = %v", i, err)
		}
		if res.To != s.want {
			t.Fatalf("step %d: to = %v, want %v", i, res.To, s.want)
		}
	}
}

func TestEngine_ScenarioD_WrongRoleForbidden(t *testing.T) {
	f := newFixture(claim("d", 35, domainwf.StatePendingFinance))

	_, err := f.engine.Approve(context.Background(), manager, entity.KindExpense, "d")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("error = %v, want ErrForbidden", err)
	}
	if f.requests.casCalls != 0 {
		t.Error("forbidden action must not touch the store")
	}
	if got := f.requests.status(entity.KindExpense, "d"); got != domainwf.StatePendingFinance {
		t.Errorf("status = %v, want unchanged", got)
	}
}

func TestEngine_ScenarioE_RejectThenEverythingForbidden(t *testing.T) {
	f := newFixture(claim("e", 500, domainwf.StatePendingPresident))
	ctx := context.Background()

	res, err := f.engine.Reject(ctx, president, entity.KindExpense, "e")
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if res.To != domainwf.StateRejected {
		t.Fatalf("to = %v, want rejected", res.To)
	}

	for _, a := range []entity.Actor{employee, manager, finance, president, admin} {
		for _, trig := range []domainwf.Trigger{domainwf.TriggerApprove, domainwf.TriggerReject} {
			if _, err := f.engine.Act(ctx, a, entity.KindExpense, "e", trig); !errors.Is(err, ErrForbidden) {
				t.Errorf("%s %s on rejected: error = %v, want ErrForbidden", a.ID, trig, err)
			}
		}
	}
}

func TestEngine_AdminHasNoApprovalAuthority(t *testing.T) {
	f := newFixture(claim("x", 5, domainwf.StatePendingManager))

	if _, err := f.engine.Approve(context.Background(), admin, entity.KindExpense, "x"); !errors.Is(err, ErrForbidden) {
		t.Errorf("error = %v, want ErrForbidden", err)
	}
}

func TestEngine_LegacyPendingStatus(t *testing.T) {
	f := newFixture(claim("legacy", 10, domainwf.StatePending))

	res, err := f.engine.Approve(context.Background(), manager, entity.KindExpense, "legacy")
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if res.From != domainwf.StatePending || res.To != domainwf.StateApproved {
		t.Errorf("result = %+v", res)
	}
}

func TestEngine_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		f := newFixture()
		if _, err := f.engine.Approve(ctx, manager, entity.KindExpense, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("kind is part of the key", func(t *testing.T) {
		f := newFixture(claim("same", 5, domainwf.StatePendingManager))
		if _, err := f.engine.Approve(ctx, manager, entity.KindPurchaseOrder, "same"); !errors.Is(err, ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("no identity", func(t *testing.T) {
		f := newFixture(claim("r", 5, domainwf.StatePendingManager))
		if _, err := f.engine.Approve(ctx, entity.Actor{}, entity.KindExpense, "r"); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("error = %v, want ErrUnauthenticated", err)
		}
	})

	t.Run("unknown profile", func(t *testing.T) {
		f := newFixture(claim("r", 5, domainwf.StatePendingManager))
		if _, err := f.engine.Approve(ctx, entity.Actor{ID: "ghost"}, entity.KindExpense, "r"); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("error = %v, want ErrUnauthenticated", err)
		}
	})

	t.Run("invalid trigger", func(t *testing.T) {
		f := newFixture(claim("r", 5, domainwf.StatePendingManager))
		if _, err := f.engine.Act(ctx, manager, entity.KindExpense, "r", "escalate"); !errors.Is(err, ErrInvalidAction) {
			t.Errorf("error = %v, want ErrInvalidAction", err)
		}
	})

	t.Run("load failure", func(t *testing.T) {
		f := newFixture()
		f.requests.getErr = errors.New("db down")
		if _, err := f.engine.Approve(ctx, manager, entity.KindExpense, "r"); !errors.Is(err, ErrPersistence) {
			t.Errorf("error = %v, want ErrPersistence", err)
		}
	})

	t.Run("write failure keeps prior status", func(t *testing.T) {
		f := newFixture(claim("r", 5, domainwf.StatePendingManager))
		f.requests.casErr = errors.New("disk full")
		if _, err := f.engine.Approve(ctx, manager, entity.KindExpense, "r"); !errors.Is(err, ErrPersistence) {
			t.Errorf("error = %v, want ErrPersistence", err)
		}
		if got := f.requests.status(entity.KindExpense, "r"); got != domainwf.StatePendingManager {
			t.Errorf("status = %v, want unchanged", got)
		}
	})

	t.Run("history failure surfaces as persistence", func(t *testing.T) {
		f := newFixture(claim("r", 5, domainwf.StatePendingManager))
		f.history.createErr = errors.New("constraint")
		if _, err := f.engine.Approve(ctx, manager, entity.KindExpense, "r"); !errors.Is(err, ErrPersistence) {
			t.Errorf("error = %v, want ErrPersistence", err)
		}
	})

	t.Run("stale source status", func(t *testing.T) {
		f := newFixture(claim("r", 5, domainwf.StatePendingManager))
		f.requests.casErr = port.ErrStaleStatus
		_, err := f.engine.Approve(ctx, manager, entity.KindExpense, "r")
		if !errors.Is(err, ErrConflict) {
			t.Errorf("error = %v, want ErrConflict", err)
		}
		if Reason(err) != "conflict" {
			t.Errorf("Reason() = %q, want conflict", Reason(err))
		}
	})
}

func TestEngine_ConcurrentApprovalsCommitOnce(t *testing.T) {
	f := newFixture(claim("race", 35, domainwf.StatePendingManager))
	ctx := context.Background()

	var wg sync.WaitGroup
	var wins, conflicts atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Approve(ctx, manager, entity.KindExpense, "race")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrConflict), errors.Is(err, ErrForbidden):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("wins = %d, want exactly 1", wins.Load())
	}
	if got := f.requests.status(entity.KindExpense, "race"); got != domainwf.StatePendingFinance {
		t.Errorf("status = %v, want pending_finance", got)
	}
	if len(f.history.entries) != 1 {
		t.Errorf("history entries = %d, want 1", len(f.history.entries))
	}
}

func TestEngine_NotificationFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(claim("n", 35, domainwf.StatePendingManager))
	received := make(chan *event.Event, 1)

	f.disp.Subscribe(event.TypeRequestEscalated, func(ctx context.Context, evt *event.Event) error {
		received <- evt
		return errors.New("push gateway unavailable")
	})

	res, err := f.engine.Approve(context.Background(), manager, entity.KindExpense, "n")
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if err := f.disp.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	evt := <-received
	if evt.RequestID != "n" || evt.GetPayloadString(event.KeyNextRole) != "finance" {
		t.Errorf("event = %+v", evt)
	}
	if evt.GetPayloadString(event.KeySubmitterID) != employee.ID {
		t.Errorf("submitter = %q", evt.GetPayloadString(event.KeySubmitterID))
	}
	if res.To != domainwf.StatePendingFinance || f.requests.status(entity.KindExpense, "n") != domainwf.StatePendingFinance {
		t.Error("committed transition must survive notification failure")
	}
}

func TestEngine_EventTypes(t *testing.T) {
	tests := []struct {
		name  string
		req   *entity.RequestSummary
		actor entity.Actor
		trig  domainwf.Trigger
		want  event.Type
	}{
		{"approved", claim("1", 5, domainwf.StatePendingManager), manager, domainwf.TriggerApprove, event.TypeRequestApproved},
		{"escalated", claim("1", 25, domainwf.StatePendingManager), manager, domainwf.TriggerApprove, event.TypeRequestEscalated},
		{"rejected", claim("1", 25, domainwf.StatePendingManager), manager, domainwf.TriggerReject, event.TypeRequestRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.req)
			var got atomic.Value
			for _, typ := range []event.Type{event.TypeRequestApproved, event.TypeRequestEscalated, event.TypeRequestRejected} {
				f.disp.Subscribe(typ, func(ctx context.Context, evt *event.Event) error {
					got.Store(evt.Type)
					return nil
				})
			}

			if _, err := f.engine.Act(context.Background(), tt.actor, entity.KindExpense, "1", tt.trig); err != nil {
				t.Fatalf("Act() error = %v", err)
			}
			_ = f.disp.Close()

			if got.Load() != tt.want {
				t.Errorf("event type = %v, want %v", got.Load(), tt.want)
			}
		})
	}
}

func TestActionable(t *testing.T) {
	reqs := []*entity.RequestSummary{
		claim("1", 5, domainwf.StatePending),
		claim("2", 5, domainwf.StatePendingManager),
		claim("3", 5, domainwf.StatePendingFinance),
		claim("4", 5, domainwf.StateApproved),
		claim("5", 5, domainwf.StateRejected),
	}

	tests := []struct {
		role domainwf.Role
		want int
	}{
		{domainwf.RoleManager, 2},
		{domainwf.RoleFinance, 1},
		{domainwf.RolePresident, 0},
		{domainwf.RoleAdmin, 0},
		{domainwf.RoleEmployee, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			view := Actionable(entity.KindExpense, reqs, tt.role)
			if view.Count != tt.want {
				t.Errorf("Count = %d, want %d", view.Count, tt.want)
			}
			if len(view.Items) != len(reqs) {
				t.Errorf("Items = %d, want %d", len(view.Items), len(reqs))
			}
			if len(view.OnlyActionable()) != tt.want {
				t.Errorf("OnlyActionable() = %d, want %d", len(view.OnlyActionable()), tt.want)
			}
		})
	}

	if got := Actionable(entity.KindExpense, reqs, domainwf.RoleManager).Items[0].StatusText; got != "PENDING MANAGER" {
		t.Errorf("legacy label = %q", got)
	}
}

func TestEngine_ListActionable(t *testing.T) {
	f := newFixture(
		order("p1", 5, domainwf.StatePendingFinance),
		order("p2", 5, domainwf.StatePendingManager),
	)

	view, err := f.engine.ListActionable(context.Background(), finance, entity.KindPurchaseOrder)
	if err != nil {
		t.Fatalf("ListActionable() error = %v", err)
	}
	if view.Count != 1 || len(view.Items) != 2 {
		t.Errorf("view = count %d, items %d", view.Count, len(view.Items))
	}
}
