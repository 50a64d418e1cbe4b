// Package liveness runs the background sweeps that reclaim resources
// from idle and half-dead connections: AFK eviction and heartbeat
// ping/pong timeout detection. The AFK sweep protects against
// idle-but-connected clients; the heartbeat sweep catches half-open
// TCP connections whose peer vanished without a clean close.
package liveness

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blockforge/relay/internal/game/session"
)

// Monitor schedules the AFK and heartbeat sweeps over the directory.
type Monitor struct {
	directory *session.Directory
	logger    *zap.Logger

	afkInterval       time.Duration
	afkTimeout        time.Duration
	heartbeatInterval time.Duration
	pongTimeout       time.Duration

	mu   sync.Mutex
	done chan struct{}
}

// NewMonitor creates a stopped Monitor.
//
// Precondition: directory and logger must be non-nil; all durations
// must be positive.
func NewMonitor(directory *session.Directory, logger *zap.Logger, afkInterval, afkTimeout, heartbeatInterval, pongTimeout time.Duration) *Monitor {
	return &Monitor{
		directory:         directory,
		logger:            logger,
		afkInterval:       afkInterval,
		afkTimeout:        afkTimeout,
		heartbeatInterval: heartbeatInterval,
		pongTimeout:       pongTimeout,
	}
}

// Start launches the sweep goroutine. Calling Start on a running
// monitor is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != nil {
		return
	}
	m.done = make(chan struct{})
	go m.run(m.done)
}

// Stop cancels both sweeps. Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done == nil {
		return
	}
	close(m.done)
	m.done = nil
}

func (m *Monitor) run(done chan struct{}) {
	afk := time.NewTicker(m.afkInterval)
	defer afk.Stop()
	heartbeat := time.NewTicker(m.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-afk.C:
			m.sweepAFK()
		case <-heartbeat.C:
			m.sweepHeartbeat()
		case <-done:
			return
		}
	}
}

func (m *Monitor) sweepAFK() {
	counts := m.directory.SweepAFK(m.afkTimeout)
	for gameID, n := range counts {
		m.logger.Info("evicted AFK players",
			zap.String("game_id", gameID),
			zap.Int("count", n),
		)
	}
}

func (m *Monitor) sweepHeartbeat() {
	if reaped := m.directory.SweepHeartbeat(m.pongTimeout); reaped > 0 {
		m.logger.Info("reaped dead connections", zap.Int("count", reaped))
	}
}
