package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// stopRecorder collects the order in which services were stopped.
type stopRecorder struct {
	mu    sync.Mutex
	order []string
}

func (r *stopRecorder) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, name)
}

func (r *stopRecorder) stopped() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// blockingService runs until stopped.
type blockingService struct {
	name     string
	recorder *stopRecorder
	started  atomic.Bool
	done     chan struct{}
	once     sync.Once
}

func newBlockingService(name string, recorder *stopRecorder) *blockingService {
	return &blockingService{name: name, recorder: recorder, done: make(chan struct{})}
}

func (s *blockingService) Start() error {
	s.started.Store(true)
	<-s.done
	return nil
}

func (s *blockingService) Stop() {
	s.once.Do(func() {
		s.recorder.record(s.name)
		close(s.done)
	})
}

func TestRunStopsServicesInReverseOrder(t *testing.T) {
	recorder := &stopRecorder{}
	lc := NewLifecycle(zaptest.NewLogger(t))

	first := newBlockingService("first", recorder)
	second := newBlockingService("second", recorder)
	lc.Add("first", first)
	lc.Add("second", second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- lc.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return first.started.Load() && second.started.Load()
	}, 2*time.Second, 10*time.Millisecond, "services did not start")

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}

	assert.Equal(t, []string{"second", "first"}, recorder.stopped())
}

func TestRunReturnsServiceFailure(t *testing.T) {
	recorder := &stopRecorder{}
	lc := NewLifecycle(zaptest.NewLogger(t))

	healthy := newBlockingService("healthy", recorder)
	lc.Add("healthy", healthy)

	failure := errors.New("listener exploded")
	lc.Add("broken", &FuncService{
		StartFn: func() error { return failure },
		StopFn:  func() {},
	})

	done := make(chan error, 1)
	go func() {
		done <- lc.Run(context.Background())
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, failure)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down after service failure")
	}

	assert.Equal(t, []string{"healthy"}, recorder.stopped(), "the surviving service is still stopped")
}

func TestFuncService(t *testing.T) {
	var started, stopped bool
	svc := &FuncService{
		StartFn: func() error {
			started = true
			return nil
		},
		StopFn: func() { stopped = true },
	}

	require.NoError(t, svc.Start())
	assert.True(t, started)
	svc.Stop()
	assert.True(t, stopped)
}
