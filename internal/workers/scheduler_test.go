package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"soilsense/pkg/errors"
)

// stubWorker counts runs and delegates to fn
type stubWorker struct {
	*BaseWorker
	runs atomic.Int32
	fn   func(ctx context.Context) error
}

func newStubWorker(name string, enabled bool) *stubWorker {
	return &stubWorker{BaseWorker: NewBaseWorker(name, 40*time.Millisecond, enabled)}
}

func (w *stubWorker) Run(ctx context.Context) error {
	w.runs.Add(1)
	if w.fn != nil {
		return w.fn(ctx)
	}
	return nil
}

func (w *stubWorker) count() int { return int(w.runs.Load()) }

func TestScheduler_RunsEnabledWorkersOnly(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := NewScheduler()
	reload := newStubWorker("bundle_reload", true)
	retrain := newStubWorker("retrain", false)
	s.RegisterWorker(reload)
	s.RegisterWorker(retrain)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	// immediate run plus at least one tick
	assert.Eventually(t, func() bool { return reload.count() >= 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.Zero(t, retrain.count())
}

func TestScheduler_StopWaitsForInFlightRun(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := NewScheduler()
	var finished atomic.Bool
	w := newStubWorker("retrain", true)
	w.fn = func(ctx context.Context) error {
		time.Sleep(60 * time.Millisecond)
		finished.Store(true)
		return nil
	}
	s.RegisterWorker(w)

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return w.count() >= 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
	assert.True(t, finished.Load())
}

func TestScheduler_ParentContextCanceled(t *testing.T) {
	s := NewScheduler()
	s.RegisterWorker(newStubWorker("bundle_reload", true))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	require.NoError(t, s.Stop())
}

func TestScheduler_Lifecycle(t *testing.T) {
	s := NewScheduler()
	s.RegisterWorker(newStubWorker("bundle_reload", true))
	s.RegisterWorker(newStubWorker("retrain", false))

	names := make([]string, 0)
	for _, w := range s.GetWorkers() {
		names = append(names, w.Name())
	}
	assert.Equal(t, []string{"bundle_reload", "retrain"}, names)

	assert.Error(t, s.Stop(), "stop before start")

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()), "second start")

	// registration after start is ignored
	s.RegisterWorker(newStubWorker("late", true))
	assert.Len(t, s.GetWorkers(), 2)

	require.NoError(t, s.Stop())
}

func TestScheduler_RecordsHealth(t *testing.T) {
	s := NewScheduler()

	failing := newStubWorker("failing-worker", true)
	failing.fn = func(ctx context.Context) error { return errors.New("backend down") }
	panicking := newStubWorker("panicking-worker", true)
	panicking.fn = func(ctx context.Context) error { panic("boom") }

	s.RegisterWorker(failing)
	s.RegisterWorker(panicking)

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool {
		return panicking.Health().ErrorCount >= 2 && failing.Health().ErrorCount >= 2
	}, 2*time.Second, 20*time.Millisecond)
	require.NoError(t, s.Stop())

	health := s.Health()
	require.Contains(t, health, "failing-worker")
	assert.Equal(t, "backend down", health["failing-worker"].LastError)
	assert.Contains(t, health["panicking-worker"].LastError, "boom")
	assert.Equal(t, health["failing-worker"].RunCount, health["failing-worker"].ErrorCount)
}
