package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/event"
)

// SubjectPrefix roots every published subject: approvals.<kind>.<event>
const SubjectPrefix = "approvals"

// MsgPublisher is the part of *nats.Conn the publisher uses
type MsgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// Publisher forwards committed workflow events to NATS. It implements
// port.EventPublisher.
type Publisher struct {
	conn   MsgPublisher
	logger *zap.Logger
}

// Connect dials the NATS server with reconnect logging
func Connect(url, clientName string, logger *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// NewPublisher creates a new event publisher
func NewPublisher(conn MsgPublisher, logger *zap.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

// message is the JSON schema published to NATS
type message struct {
	ID            string                 `json:"id"`
	Type          string                 `json:"event_type"`
	Kind          string                 `json:"resource_type,omitempty"`
	RequestID     string                 `json:"resource_id,omitempty"`
	ActorID       string                 `json:"actor_id,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
}

// Subject returns the subject an event is published on
func Subject(e *event.Event) string {
	kind := e.Kind
	if kind == "" {
		kind = "system"
	}
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, kind, e.Type)
}

// Publish implements port.EventPublisher
func (p *Publisher) Publish(ctx context.Context, e *event.Event) error {
	data, err := json.Marshal(message{
		ID:            e.ID,
		Type:          string(e.Type),
		Kind:          e.Kind,
		RequestID:     e.RequestID,
		ActorID:       e.ActorID,
		CorrelationID: e.CorrelationID,
		Timestamp:     e.Timestamp,
		Payload:       e.Payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := nats.NewMsg(Subject(e))
	msg.Data = data
	// JetStream de-duplicates on this header
	msg.Header.Set(nats.MsgIdHdr, e.ID)

	if err := p.conn.PublishMsg(msg); err != nil {
		p.logger.Warn("Failed to publish event",
			zap.String("subject", msg.Subject),
			zap.String("request_id", e.RequestID),
			zap.Error(err))
		return fmt.Errorf("failed to publish %s: %w", msg.Subject, err)
	}

	p.logger.Debug("Event published",
		zap.String("subject", msg.Subject),
		zap.String("request_id", e.RequestID))
	return nil
}

// HandleEvent adapts Publish to a dispatcher handler
func (p *Publisher) HandleEvent(ctx context.Context, e *event.Event) error {
	return p.Publish(ctx, e)
}

var _ port.EventPublisher = (*Publisher)(nil)
