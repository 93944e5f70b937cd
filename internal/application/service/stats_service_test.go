package service

import (
	"context"
	"errors"
	"testing"
	"time"

	appwf "github.com/garyjia/approval-workflow/internal/application/workflow"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

func summary(kind entity.RequestKind, id, submitter string, amount float64, status domainwf.State, age time.Duration) *entity.RequestSummary {
	return &entity.RequestSummary{
		ID:          id,
		Kind:        kind,
		Amount:      amount,
		Status:      status,
		SubmitterID: submitter,
		Title:       id,
		CreatedAt:   time.Now().Add(-age),
	}
}

func newStatsFixture(reqs ...*entity.RequestSummary) StatsService {
	requests := &mockRequestRepo{requests: reqs}
	profiles := seededProfiles()
	engine := appwf.NewEngine(requests, profiles, &mockHistoryRepo{}, mockTxManager{},
		domainwf.NewLifecycle(domainwf.DefaultPolicy()))
	return NewStatsService(requests, engine)
}

func TestStatsService_Home(t *testing.T) {
	svc := newStatsFixture(
		summary(entity.KindExpense, "e1", employee.ID, 10, domainwf.StatePendingManager, 6*time.Hour),
		summary(entity.KindExpense, "e2", employee.ID, 25, domainwf.StateApproved, 5*time.Hour),
		summary(entity.KindExpense, "e3", employee.ID, 5, domainwf.StatePending, 4*time.Hour),
		summary(entity.KindPurchaseOrder, "p1", employee.ID, 100, domainwf.StateApproved, 3*time.Hour),
		summary(entity.KindPurchaseOrder, "p2", employee.ID, 70, domainwf.StatePendingFinance, 2*time.Hour),
		summary(entity.KindPurchaseOrder, "p3", employee.ID, 1, domainwf.StateRejected, time.Hour),
		summary(entity.KindExpense, "other", manager.ID, 999, domainwf.StateApproved, time.Minute),
	)

	stats, err := svc.Home(context.Background(), employee)
	if err != nil {
		t.Fatal(err)
	}
	if stats.PendingCount != 3 {
		t.Errorf("PendingCount = %d, want 3", stats.PendingCount)
	}
	if stats.ApprovedTotal != 125 {
		t.Errorf("ApprovedTotal = %v, want 125", stats.ApprovedTotal)
	}
	if len(stats.Recent) != RecentLimit {
		t.Fatalf("Recent len = %d, want %d", len(stats.Recent), RecentLimit)
	}
	if stats.Recent[0].ID != "p3" || stats.Recent[RecentLimit-1].ID != "e2" {
		t.Errorf("Recent order = %s..%s, want p3..e2", stats.Recent[0].ID, stats.Recent[RecentLimit-1].ID)
	}

	if _, err := svc.Home(context.Background(), entity.Actor{}); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("anonymous error = %v", err)
	}
}

func TestStatsService_Dashboard(t *testing.T) {
	svc := newStatsFixture(
		summary(entity.KindExpense, "e1", employee.ID, 10, domainwf.StatePendingManager, time.Hour),
		summary(entity.KindExpense, "e2", employee.ID, 60, domainwf.StatePendingFinance, time.Hour),
		summary(entity.KindPurchaseOrder, "p1", employee.ID, 10, domainwf.StatePending, time.Hour),
		summary(entity.KindPurchaseOrder, "p2", employee.ID, 10, domainwf.StateApproved, time.Hour),
	)

	tests := []struct {
		actor entity.Actor
		want  int
	}{
		{manager, 2},
		{finance, 1},
		{president, 0},
		{employee, 0},
		{admin, 0},
	}
	for _, tt := range tests {
		d, err := svc.Dashboard(context.Background(), tt.actor)
		if err != nil {
			t.Fatalf("Dashboard(%s) error = %v", tt.actor.ID, err)
		}
		if d.Total != tt.want {
			t.Errorf("Dashboard(%s).Total = %d, want %d", tt.actor.ID, d.Total, tt.want)
		}
		if len(d.Views) != len(entity.Kinds) {
			t.Errorf("Dashboard(%s) views = %d", tt.actor.ID, len(d.Views))
		}
	}
}

func TestStatsService_DashboardScopesEmployeesToOwnRequests(t *testing.T) {
	svc := newStatsFixture(
		summary(entity.KindExpense, "mine", employee.ID, 10, domainwf.StatePendingManager, time.Minute),
		summary(entity.KindExpense, "someone-else", manager.ID, 999, domainwf.StatePendingFinance, time.Hour),
	)

	tests := []struct {
		actor entity.Actor
		want  []string
	}{
		{employee, []string{"mine"}},
		{manager, []string{"mine", "someone-else"}},
		{admin, []string{"mine", "someone-else"}},
	}
	for _, tt := range tests {
		d, err := svc.Dashboard(context.Background(), tt.actor)
		if err != nil {
			t.Fatalf("Dashboard(%s) error = %v", tt.actor.ID, err)
		}
		items := d.Views[entity.KindExpense].Items
		if len(items) != len(tt.want) {
			t.Fatalf("Dashboard(%s) items = %d, want %d", tt.actor.ID, len(items), len(tt.want))
		}
		for i, id := range tt.want {
			if items[i].Request.ID != id {
				t.Errorf("Dashboard(%s) item %d = %s, want %s", tt.actor.ID, i, items[i].Request.ID, id)
			}
		}
	}
}

func TestStatsService_ListMine(t *testing.T) {
	svc := newStatsFixture(
		summary(entity.KindExpense, "mine", employee.ID, 10, domainwf.StatePendingManager, time.Hour),
		summary(entity.KindExpense, "theirs", manager.ID, 10, domainwf.StatePendingManager, time.Hour),
	)
	list, err := svc.ListMine(context.Background(), employee, entity.KindExpense)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != "mine" {
		t.Errorf("ListMine() = %v", list)
	}
}
