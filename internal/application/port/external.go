package port

import (
	"context"
	"errors"

	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/event"
	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// ErrNoIdentity is returned by an IdentityProvider when the caller presented no valid identity
var ErrNoIdentity = errors.New("no active identity")

// IdentityProvider turns a bearer credential into the acting identity
type IdentityProvider interface {
	Resolve(ctx context.Context, token string) (entity.Actor, error)
}

// Delivery is one best-effort message to a single user
type Delivery struct {
	UserID  string
	Email   string
	LarkID  string
	Title   string
	Message string
	Link    string
}

// NotificationChannel delivers a message over one transport (push, chat, email, socket)
type NotificationChannel interface {
	Name() string
	Deliver(ctx context.Context, d Delivery) error
}

// PushMessage is the payload sent to a device
type PushMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// PushSender delivers to a registered device endpoint
type PushSender interface {
	Send(ctx context.Context, sub *entity.PushSubscription, msg PushMessage) error
}

// EventPublisher forwards committed domain events to an external bus
type EventPublisher interface {
	Publish(ctx context.Context, e *event.Event) error
}

// Metrics records workflow outcomes
type Metrics interface {
	ObserveTransition(kind entity.RequestKind, action workflow.Trigger, to workflow.State)
	ObserveActionError(kind entity.RequestKind, action workflow.Trigger, reason string)
	ObserveDelivery(channel string, err error)
	ObserveSubmission(kind entity.RequestKind)
}

// NopMetrics discards every observation
type NopMetrics struct{}

func (NopMetrics) ObserveTransition(entity.RequestKind, workflow.Trigger, workflow.State) {}
func (NopMetrics) ObserveActionError(entity.RequestKind, workflow.Trigger, string)        {}
func (NopMetrics) ObserveDelivery(string, error)                                          {}
func (NopMetrics) ObserveSubmission(entity.RequestKind)                                   {}
