package service

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/event"
)

func newNotificationFixture(channels ...*mockChannel) (NotificationService, *mockNotificationRepo) {
	repo := &mockNotificationRepo{}
	chs := make([]port.NotificationChannel, 0, len(channels))
	for _, c := range channels {
		chs = append(chs, c)
	}
	return NewNotificationService(repo, seededProfiles(), chs, nil, nopLogger{}), repo
}

func requestEvent(t event.Type, payload map[string]interface{}) *event.Event {
	base := map[string]interface{}{
		event.KeySubmitterID: employee.ID,
		event.KeyTitle:       "Taxi",
		event.KeyAmount:      30.0,
	}
	for k, v := range payload {
		base[k] = v
	}
	return event.NewEvent(t, string(entity.KindExpense), "e-1", manager.ID, base)
}

func TestHandleEvent_Recipients(t *testing.T) {
	tests := []struct {
		name  string
		evt   *event.Event
		want  []string
		words string
	}{
		{
			name:  "submitted notifies first approver role",
			evt:   requestEvent(event.TypeRequestSubmitted, map[string]interface{}{event.KeyNextRole: "manager"}),
			want:  []string{manager.ID},
			words: "awaits your approval",
		},
		{
			name:  "approved notifies submitter",
			evt:   requestEvent(event.TypeRequestApproved, nil),
			want:  []string{employee.ID},
			words: "was approved",
		},
		{
			name:  "rejected notifies submitter",
			evt:   requestEvent(event.TypeRequestRejected, nil),
			want:  []string{employee.ID},
			words: "was rejected",
		},
		{
			name: "escalated notifies submitter and next role",
			evt: requestEvent(event.TypeRequestEscalated, map[string]interface{}{
				event.KeyToStatus: "pending_finance",
				event.KeyNextRole: "finance",
			}),
			want:  []string{employee.ID, finance.ID},
			words: "PENDING FINANCE",
		},
		{
			name:  "reminder notifies owning role",
			evt:   requestEvent(event.TypeReminderDue, map[string]interface{}{event.KeyNextRole: "president"}),
			want:  []string{president.ID},
			words: "Reminder",
		},
		{
			name: "unrelated event is ignored",
			evt:  event.NewEvent(event.TypeRoleChanged, "", "", admin.ID, nil),
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newNotificationFixture()
			if err := svc.HandleEvent(context.Background(), tt.evt); err != nil {
				t.Fatalf("HandleEvent() error = %v", err)
			}
			got := repo.recipients()
			sort.Strings(got)
			want := append([]string{}, tt.want...)
			sort.Strings(want)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("recipients = %v, want %v", got, want)
			}
			if tt.words != "" {
				found := false
				for _, n := range repo.created {
					if strings.Contains(n.Message, tt.words) {
						found = true
					}
				}
				if !found {
					t.Errorf("no message contains %q", tt.words)
				}
			}
		})
	}
}

func TestNotify_ChannelFailureIsBestEffort(t *testing.T) {
	broken := &mockChannel{name: "chat", err: errors.New("lark down")}
	ok := &mockChannel{name: "push"}
	svc, repo := newNotificationFixture(broken, ok)

	if err := svc.Notify(context.Background(), manager.ID, "hello", "/manager"); err != nil {
		t.Fatalf("Notify() error = %v, want nil despite channel failure", err)
	}
	if len(repo.created) != 1 {
		t.Errorf("stored = %d, want 1", len(repo.created))
	}
	if len(ok.deliveries) != 1 {
		t.Fatalf("healthy channel deliveries = %d, want 1", len(ok.deliveries))
	}
	if d := ok.deliveries[0]; d.Email != "mike@example.com" || d.LarkID != "ou_mike" {
		t.Errorf("delivery not enriched from profile: %+v", d)
	}
}

func TestNotify_StoreFailure(t *testing.T) {
	ch := &mockChannel{name: "push"}
	svc, repo := newNotificationFixture(ch)
	repo.err = errors.New("locked")

	if err := svc.Notify(context.Background(), employee.ID, "x", ""); err == nil {
		t.Error("Notify() error = nil, want store failure")
	}
	if len(ch.deliveries) != 0 {
		t.Error("delivered a notification that was never stored")
	}
}

func TestLatestAndMarkAllRead(t *testing.T) {
	svc, _ := newNotificationFixture()
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		if err := svc.Notify(ctx, employee.ID, "n", ""); err != nil {
			t.Fatal(err)
		}
	}

	latest, err := svc.Latest(ctx, employee, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(latest) != DefaultNotificationLimit {
		t.Errorf("Latest() len = %d, want %d", len(latest), DefaultNotificationLimit)
	}

	n, err := svc.MarkAllRead(ctx, employee)
	if err != nil || n != 12 {
		t.Errorf("MarkAllRead() = %d, %v; want 12", n, err)
	}
	unread, _ := svc.UnreadCount(ctx, employee)
	if unread != 0 {
		t.Errorf("UnreadCount() = %d, want 0", unread)
	}

	if _, err := svc.Latest(ctx, entity.Actor{}, 5); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("anonymous Latest() error = %v", err)
	}
}

func TestRequestLink(t *testing.T) {
	if got := RequestLink(entity.KindPurchaseOrder, "p-1"); got != "/purchase-orders/p-1" {
		t.Errorf("RequestLink() = %q", got)
	}
}
