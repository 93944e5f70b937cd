package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/event"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// DefaultNotificationLimit is how many notifications the bell shows
const DefaultNotificationLimit = 10

// NotificationService stores in-app notifications and fans them out to delivery channels
type NotificationService interface {
	// Notify stores a notification for one user and delivers it best-effort
	Notify(ctx context.Context, userID, message, link string) error
	// NotifyRole notifies every profile holding role
	NotifyRole(ctx context.Context, role domainwf.Role, message, link string) error
	Latest(ctx context.Context, actor entity.Actor, limit int) ([]*entity.Notification, error)
	UnreadCount(ctx context.Context, actor entity.Actor) (int, error)
	MarkAllRead(ctx context.Context, actor entity.Actor) (int64, error)
	// HandleEvent turns workflow events into notifications; it is a dispatcher handler
	HandleEvent(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	notifications port.NotificationRepository
	profiles      port.ProfileRepository
	channels      []port.NotificationChannel
	metrics       port.Metrics
	logger        Logger
	now           func() time.Time
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	notifications port.NotificationRepository,
	profiles port.ProfileRepository,
	channels []port.NotificationChannel,
	metrics port.Metrics,
	logger Logger,
) NotificationService {
	if metrics == nil {
		metrics = port.NopMetrics{}
	}
	return &notificationServiceImpl{
		notifications: notifications,
		profiles:      profiles,
		channels:      channels,
		metrics:       metrics,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *notificationServiceImpl) Notify(ctx context.Context, userID, message, link string) error {
	n := &entity.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		Link:      link,
		CreatedAt: s.now(),
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		s.logger.Error("Failed to store notification", "user_id", userID, "error", err)
		return fmt.Errorf("create notification: %w", err)
	}

	d := port.Delivery{UserID: userID, Title: "Approval update", Message: message, Link: link}
	if p, err := s.profiles.GetByID(ctx, userID); err == nil && p != nil {
		d.Email = p.Email
		d.LarkID = p.LarkID
	}
	s.deliver(ctx, d)
	return nil
}

func (s *notificationServiceImpl) NotifyRole(ctx context.Context, role domainwf.Role, message, link string) error {
	targets, err := s.profiles.ListByRole(ctx, role)
	if err != nil {
		return fmt.Errorf("list %s profiles: %w", role, err)
	}

	var firstErr error
	for _, p := range targets {
		if err := s.Notify(ctx, p.ID, message, link); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// deliver fans out to every channel; failures are logged and counted only
func (s *notificationServiceImpl) deliver(ctx context.Context, d port.Delivery) {
	for _, ch := range s.channels {
		err := ch.Deliver(ctx, d)
		s.metrics.ObserveDelivery(ch.Name(), err)
		if err != nil {
			s.logger.Error("Notification delivery failed",
				"channel", ch.Name(),
				"user_id", d.UserID,
				"error", err,
			)
		}
	}
}

func (s *notificationServiceImpl) Latest(ctx context.Context, actor entity.Actor, limit int) ([]*entity.Notification, error) {
	if actor.IsZero() {
		return nil, ErrUnauthenticated
	}
	if limit <= 0 || limit > 100 {
		limit = DefaultNotificationLimit
	}
	list, err := s.notifications.Latest(ctx, actor.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: latest notifications: %v", ErrPersistence, err)
	}
	return list, nil
}

func (s *notificationServiceImpl) UnreadCount(ctx context.Context, actor entity.Actor) (int, error) {
	if actor.IsZero() {
		return 0, ErrUnauthenticated
	}
	n, err := s.notifications.CountUnread(ctx, actor.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: count unread: %v", ErrPersistence, err)
	}
	return n, nil
}

func (s *notificationServiceImpl) MarkAllRead(ctx context.Context, actor entity.Actor) (int64, error) {
	if actor.IsZero() {
		return 0, ErrUnauthenticated
	}
	n, err := s.notifications.MarkAllRead(ctx, actor.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: mark read: %v", ErrPersistence, err)
	}
	return n, nil
}

func (s *notificationServiceImpl) HandleEvent(ctx context.Context, evt *event.Event) error {
	kind := entity.RequestKind(evt.Kind)
	submitter := evt.GetPayloadString(event.KeySubmitterID)
	title := evt.GetPayloadString(event.KeyTitle)
	amount := evt.GetPayloadFloat(event.KeyAmount)
	nextRole := domainwf.Role(evt.GetPayloadString(event.KeyNextRole))
	link := RequestLink(kind, evt.RequestID)

	switch evt.Type {
	case event.TypeRequestSubmitted:
		return s.NotifyRole(ctx, nextRole,
			fmt.Sprintf("New %s %q (%.2f) awaits your approval", kind.Noun(), title, amount), ApprovalsLink)

	case event.TypeRequestApproved:
		return s.Notify(ctx, submitter,
			fmt.Sprintf("Your %s %q was approved", kind.Noun(), title), link)

	case event.TypeRequestRejected:
		return s.Notify(ctx, submitter,
			fmt.Sprintf("Your %s %q was rejected", kind.Noun(), title), link)

	case event.TypeRequestEscalated:
		to := domainwf.State(evt.GetPayloadString(event.KeyToStatus))
		err := s.Notify(ctx, submitter,
			fmt.Sprintf("Your %s %q moved to %s", kind.Noun(), title, to.Label()), link)
		if rerr := s.NotifyRole(ctx, nextRole,
			fmt.Sprintf("%s %q (%.2f) awaits your approval", capitalize(kind.Noun()), title, amount), ApprovalsLink); err == nil {
			err = rerr
		}
		return err

	case event.TypeReminderDue:
		return s.NotifyRole(ctx, nextRole,
			fmt.Sprintf("Reminder: %s %q (%.2f) is still waiting for approval", kind.Noun(), title, amount), ApprovalsLink)
	}
	return nil
}

// ApprovalsLink is the dashboard where approvers act
const ApprovalsLink = "/manager"

// RequestLink points at one request in the dashboard
func RequestLink(kind entity.RequestKind, id string) string {
	return "/" + kind.Path() + "/" + id
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
