package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/approval-workflow/internal/application/dispatcher"
	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/event"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// ReminderService nudges approvers about requests that have waited too long
type ReminderService interface {
	// RemindStale raises a reminder for every pending request older than maxAge.
	// Reminders are delivered before it returns; the count excludes failures.
	RemindStale(ctx context.Context, maxAge time.Duration) (int, error)
}

type reminderServiceImpl struct {
	requests   port.RequestRepository
	dispatcher dispatcher.Dispatcher
	logger     Logger
	now        func() time.Time
}

// NewReminderService creates a new ReminderService
func NewReminderService(requests port.RequestRepository, d dispatcher.Dispatcher, logger Logger) ReminderService {
	return &reminderServiceImpl{requests: requests, dispatcher: d, logger: logger, now: time.Now}
}

func (s *reminderServiceImpl) RemindStale(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.now().Add(-maxAge)
	reminded := 0

	for _, kind := range entity.Kinds {
		stale, err := s.requests.List(ctx, kind, port.RequestFilter{
			Statuses:      domainwf.PendingStates,
			CreatedBefore: cutoff,
		})
		if err != nil {
			return reminded, fmt.Errorf("list stale %s: %w", kind, err)
		}

		for _, r := range stale {
			if err := ctx.Err(); err != nil {
				return reminded, err
			}
			owner, ok := domainwf.Owner(r.Status)
			if !ok {
				continue
			}
			evt := event.NewEvent(event.TypeReminderDue, string(kind), r.ID, "", map[string]interface{}{
				event.KeyToStatus:    r.Status.String(),
				event.KeyAmount:      r.Amount,
				event.KeySubmitterID: r.SubmitterID,
				event.KeyTitle:       r.Title,
				event.KeyNextRole:    owner.String(),
			})
			if err := s.dispatcher.Dispatch(ctx, evt); err != nil {
				s.logger.Error("Reminder delivery failed", "kind", kind, "request_id", r.ID, "error", err)
				continue
			}
			reminded++
		}
	}

	if reminded > 0 {
		s.logger.Info("Reminders raised", "count", reminded, "older_than", maxAge.String())
	}
	return reminded, nil
}
