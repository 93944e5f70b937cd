package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/service"
)

// ReminderConfig holds configuration for the stale request reminder
type ReminderConfig struct {
	// Schedule is a standard five-field cron expression
	Schedule string
	// MaxAge is how long a request may wait in a pending state before its owner is reminded
	MaxAge time.Duration
	// RunTimeout bounds a single sweep
	RunTimeout time.Duration
}

// DefaultReminderConfig returns default configuration
func DefaultReminderConfig() ReminderConfig {
	return ReminderConfig{
		Schedule:   "0 9 * * 1-5",
		MaxAge:     72 * time.Hour,
		RunTimeout: 2 * time.Minute,
	}
}

// ReminderStatus reports the outcome of the last sweep
type ReminderStatus struct {
	IsRunning bool      `json:"is_running"`
	LastRun   time.Time `json:"last_run"`
	LastCount int       `json:"last_count"`
	TotalSent int       `json:"total_sent"`
	LastError string    `json:"last_error,omitempty"`
}

// ReminderWorker re-notifies approvers about requests waiting too long
type ReminderWorker struct {
	config    ReminderConfig
	reminders service.ReminderService
	logger    *zap.Logger

	mu     sync.RWMutex
	cron   *cron.Cron
	ctx    context.Context
	status ReminderStatus
}

// NewReminderWorker creates a new reminder worker
func NewReminderWorker(config ReminderConfig, reminders service.ReminderService, logger *zap.Logger) *ReminderWorker {
	return &ReminderWorker{
		config:    config,
		reminders: reminders,
		logger:    logger,
	}
}

func (w *ReminderWorker) Name() string { return "reminder-worker" }

// Start schedules the sweep. Overlapping runs are skipped.
func (w *ReminderWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.status.IsRunning {
		return fmt.Errorf("reminder worker already running")
	}

	schedule, err := cron.ParseStandard(w.config.Schedule)
	if err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", w.config.Schedule, err)
	}

	w.ctx = ctx
	w.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	w.cron.Schedule(schedule, cron.FuncJob(func() {
		if _, err := w.RunOnce(w.ctx); err != nil {
			w.logger.Error("Reminder sweep failed", zap.Error(err))
		}
	}))
	w.cron.Start()
	w.status.IsRunning = true

	w.logger.Info("Reminder worker scheduled",
		zap.String("schedule", w.config.Schedule),
		zap.Duration("max_age", w.config.MaxAge),
		zap.Time("next_run", schedule.Next(time.Now())))
	return nil
}

// Stop waits for an in-flight sweep to finish
func (w *ReminderWorker) Stop() error {
	w.mu.Lock()
	if !w.status.IsRunning {
		w.mu.Unlock()
		return nil
	}
	w.status.IsRunning = false
	c := w.cron
	w.mu.Unlock()

	done := c.Stop()
	select {
	case <-done.Done():
		return nil
	case <-time.After(w.config.RunTimeout + 5*time.Second):
		return fmt.Errorf("reminder worker did not stop in time")
	}
}

// RunOnce performs a single sweep and returns how many reminders were sent
func (w *ReminderWorker) RunOnce(ctx context.Context) (int, error) {
	if w.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.config.RunTimeout)
		defer cancel()
	}

	count, err := w.reminders.RemindStale(ctx, w.config.MaxAge)

	w.mu.Lock()
	w.status.LastRun = time.Now()
	w.status.LastCount = count
	w.status.TotalSent += count
	w.status.LastError = ""
	if err != nil {
		w.status.LastError = err.Error()
	}
	w.mu.Unlock()

	if err != nil {
		return count, err
	}
	if count > 0 {
		w.logger.Info("Reminders sent", zap.Int("count", count))
	}
	return count, nil
}

// Status returns a snapshot of the worker state
func (w *ReminderWorker) Status() ReminderStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}
