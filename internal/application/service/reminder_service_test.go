package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/event"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

func TestReminderService_RemindStale(t *testing.T) {
	requests := &mockRequestRepo{requests: []*entity.RequestSummary{
		summary(entity.KindExpense, "old-manager", employee.ID, 10, domainwf.StatePendingManager, 72*time.Hour),
		summary(entity.KindExpense, "old-legacy", employee.ID, 10, domainwf.StatePending, 72*time.Hour),
		summary(entity.KindExpense, "fresh", employee.ID, 10, domainwf.StatePendingManager, time.Hour),
		summary(entity.KindExpense, "old-approved", employee.ID, 10, domainwf.StateApproved, 72*time.Hour),
		summary(entity.KindPurchaseOrder, "old-president", employee.ID, 99, domainwf.StatePendingPresident, 72*time.Hour),
	}}
	disp := newRecordingDispatcher()
	svc := NewReminderService(requests, disp, nopLogger{})

	n, err := svc.RemindStale(context.Background(), 48*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("reminded = %d, want 3", n)
	}

	roles := map[string]string{}
	for _, e := range disp.recorded() {
		if e.Type != event.TypeReminderDue {
			t.Errorf("event type = %v", e.Type)
		}
		roles[e.RequestID] = e.GetPayloadString(event.KeyNextRole)
	}
	want := map[string]string{
		"old-manager":   "manager",
		"old-legacy":    "manager",
		"old-president": "president",
	}
	for id, role := range want {
		if roles[id] != role {
			t.Errorf("%s next_role = %q, want %q", id, roles[id], role)
		}
	}
}

func TestReminderService_SkipsFailedDeliveries(t *testing.T) {
	requests := &mockRequestRepo{requests: []*entity.RequestSummary{
		summary(entity.KindExpense, "ok", employee.ID, 10, domainwf.StatePendingManager, 72*time.Hour),
		summary(entity.KindExpense, "broken", employee.ID, 10, domainwf.StatePendingFinance, 72*time.Hour),
	}}
	disp := newRecordingDispatcher()
	disp.Subscribe(event.TypeReminderDue, func(_ context.Context, evt *event.Event) error {
		if evt.RequestID == "broken" {
			return errors.New("store unavailable")
		}
		return nil
	})
	svc := NewReminderService(requests, disp, nopLogger{})

	n, err := svc.RemindStale(context.Background(), 48*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("reminded = %d, want 1", n)
	}
	if got := len(disp.recorded()); got != 2 {
		t.Errorf("dispatched = %d, want 2", got)
	}
}

func TestReminderService_StopsWhenCancelled(t *testing.T) {
	requests := &mockRequestRepo{requests: []*entity.RequestSummary{
		summary(entity.KindExpense, "old", employee.ID, 10, domainwf.StatePendingManager, 72*time.Hour),
	}}
	svc := NewReminderService(requests, newRecordingDispatcher(), nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.RemindStale(ctx, 48*time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
