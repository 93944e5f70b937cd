package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

var endpointPattern = regexp.MustCompile(`^https?://\S+$`)

// SubscriptionInput is a browser push subscription as the client reports it
type SubscriptionInput struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

// Validate checks the subscription payload
func (in SubscriptionInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Endpoint, validation.Required, validation.Length(1, 2048), validation.Match(endpointPattern)),
		validation.Field(&in.P256dh, validation.Required),
		validation.Field(&in.Auth, validation.Required),
	)
}

// PushService registers devices and sends push messages to users or roles
type PushService interface {
	Subscribe(ctx context.Context, actor entity.Actor, in SubscriptionInput) (*entity.PushSubscription, error)
	Unsubscribe(ctx context.Context, actor entity.Actor, endpoint string) error
	SendToUser(ctx context.Context, userID string, msg port.PushMessage) (int, error)
	SendToRole(ctx context.Context, role domainwf.Role, msg port.PushMessage) (int, error)
}

type pushServiceImpl struct {
	subs   port.PushSubscriptionRepository
	sender port.PushSender
	logger Logger
}

// NewPushService creates a new PushService
func NewPushService(subs port.PushSubscriptionRepository, sender port.PushSender, logger Logger) PushService {
	return &pushServiceImpl{subs: subs, sender: sender, logger: logger}
}

func (s *pushServiceImpl) Subscribe(ctx context.Context, actor entity.Actor, in SubscriptionInput) (*entity.PushSubscription, error) {
	if actor.IsZero() {
		return nil, ErrUnauthenticated
	}
	if err := in.Validate(); err != nil {
		return nil, validationError(err)
	}

	sub := &entity.PushSubscription{
		ID:        uuid.NewString(),
		UserID:    actor.ID,
		Endpoint:  strings.TrimSpace(in.Endpoint),
		P256dh:    in.P256dh,
		Auth:      in.Auth,
		CreatedAt: time.Now(),
	}
	if err := s.subs.Upsert(ctx, sub); err != nil {
		return nil, fmt.Errorf("%w: save subscription: %v", ErrPersistence, err)
	}
	return sub, nil
}

func (s *pushServiceImpl) Unsubscribe(ctx context.Context, actor entity.Actor, endpoint string) error {
	if actor.IsZero() {
		return ErrUnauthenticated
	}
	if err := s.subs.DeleteByEndpoint(ctx, actor.ID, endpoint); err != nil {
		return fmt.Errorf("%w: delete subscription: %v", ErrPersistence, err)
	}
	return nil
}

func (s *pushServiceImpl) SendToUser(ctx context.Context, userID string, msg port.PushMessage) (int, error) {
	subs, err := s.subs.ListForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list subscriptions for user: %w", err)
	}
	return s.send(ctx, subs, msg)
}

func (s *pushServiceImpl) SendToRole(ctx context.Context, role domainwf.Role, msg port.PushMessage) (int, error) {
	subs, err := s.subs.ListForRole(ctx, role)
	if err != nil {
		return 0, fmt.Errorf("list subscriptions for role: %w", err)
	}
	return s.send(ctx, subs, msg)
}

func (s *pushServiceImpl) send(ctx context.Context, subs []*entity.PushSubscription, msg port.PushMessage) (int, error) {
	if msg.Tag == "" {
		msg.Tag = entity.PushTag
	}

	sent := 0
	var lastErr error
	for _, sub := range subs {
		if err := s.sender.Send(ctx, sub, msg); err != nil {
			s.logger.Error("Push send failed", "user_id", sub.UserID, "endpoint", sub.Endpoint, "error", err)
			lastErr = err
			continue
		}
		sent++
	}
	if sent == 0 && lastErr != nil {
		return 0, lastErr
	}
	return sent, nil
}

// pushChannel adapts PushService to a notification channel
type pushChannel struct {
	push PushService
}

// NewPushChannel delivers notifications as device push messages
func NewPushChannel(push PushService) port.NotificationChannel {
	return &pushChannel{push: push}
}

func (c *pushChannel) Name() string { return "push" }

func (c *pushChannel) Deliver(ctx context.Context, d port.Delivery) error {
	_, err := c.push.SendToUser(ctx, d.UserID, port.PushMessage{
		Title: d.Title,
		Body:  d.Message,
		URL:   d.Link,
		Tag:   entity.PushTag,
	})
	return err
}
