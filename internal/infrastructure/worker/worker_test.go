package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWorker struct {
	name     string
	startErr error
	started  atomic.Int32
	stopped  atomic.Int32
}

func (f *fakeWorker) Name() string { return f.name }

func (f *fakeWorker) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started.Add(1)
	return nil
}

func (f *fakeWorker) Stop() error {
	f.stopped.Add(1)
	return nil
}

type reminderFunc func(ctx context.Context, maxAge time.Duration) (int, error)

func (f reminderFunc) RemindStale(ctx context.Context, maxAge time.Duration) (int, error) {
	return f(ctx, maxAge)
}

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager(zap.NewNop())
	ok := &fakeWorker{name: "ok"}
	broken := &fakeWorker{name: "broken", startErr: errors.New("boom")}
	m.Register(ok)
	m.Register(broken)

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Equal(t, 2, m.WorkerCount())
	assert.Equal(t, int32(1), ok.started.Load())
	assert.Equal(t, []string{"broken"}, m.Failed())
	assert.Error(t, m.StartAll(context.Background()))

	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	assert.Empty(t, m.Failed())
	assert.Equal(t, int32(1), ok.stopped.Load())
	assert.NoError(t, m.StopAll())
}

func TestReminderWorker_RunOnce(t *testing.T) {
	var gotAge time.Duration
	w := NewReminderWorker(ReminderConfig{Schedule: "@hourly", MaxAge: 48 * time.Hour, RunTimeout: time.Second},
		reminderFunc(func(ctx context.Context, maxAge time.Duration) (int, error) {
			gotAge = maxAge
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return 3, nil
		}), zap.NewNop())

	n, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 48*time.Hour, gotAge)

	st := w.Status()
	assert.Equal(t, 3, st.LastCount)
	assert.Equal(t, 3, st.TotalSent)
	assert.False(t, st.LastRun.IsZero())
}

func TestReminderWorker_RecordsError(t *testing.T) {
	w := NewReminderWorker(DefaultReminderConfig(),
		reminderFunc(func(context.Context, time.Duration) (int, error) {
			return 0, errors.New("db down")
		}), zap.NewNop())

	_, err := w.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, "db down", w.Status().LastError)
}

func TestReminderWorker_StartStop(t *testing.T) {
	w := NewReminderWorker(DefaultReminderConfig(),
		reminderFunc(func(context.Context, time.Duration) (int, error) { return 0, nil }), zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.Status().IsRunning)
	assert.Error(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
	assert.False(t, w.Status().IsRunning)
}

func TestReminderWorker_InvalidSchedule(t *testing.T) {
	w := NewReminderWorker(ReminderConfig{Schedule: "every tuesday"},
		reminderFunc(func(context.Context, time.Duration) (int, error) { return 0, nil }), zap.NewNop())

	assert.Error(t, w.Start(context.Background()))
}
