// Package player holds per-connection player state: identity, the
// last-known transform, liveness bookkeeping, and the attached rate
// limiter. The player references its socket only through the Conn
// capability; the transport layer owns the socket lifecycle.
package player

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blockforge/relay/internal/game/protocol"
	"github.com/blockforge/relay/internal/game/ratelimit"
)

// DefaultAFKTimeout is the inactivity window after which a player is
// eligible for eviction.
const DefaultAFKTimeout = 10 * time.Minute

// Conn is the capability a player holds on its transport connection.
// The core requests sends and closure through it but never constructs
// or destroys the underlying socket.
type Conn interface {
	// Send enqueues a text frame for delivery. It must not block.
	Send(data []byte) error
	// Close requests closure with an application close code and reason.
	Close(code int, reason string)
	// Open reports whether the connection can still accept sends.
	Open() bool
}

// Player is the server-side state for one connected player.
type Player struct {
	// ID is the server-generated unique player token.
	ID string
	// Username is the caller-supplied display name (not unique).
	Username string
	// SessionID is the owning session, set at placement.
	SessionID string
	// JoinedAt is the connection time. Immutable.
	JoinedAt time.Time
	// Limiter is the per-connection frame-type throttle.
	Limiter *ratelimit.Limiter
	// Conn is the non-owning transport capability.
	Conn Conn

	mu           sync.Mutex
	position     protocol.Vec3
	rotation     protocol.Vec3
	lastActivity time.Time
	lastPong     time.Time
	pingWaiting  bool
}

// New creates a Player with a generated id and fresh activity stamps.
//
// Precondition: conn must be non-nil; rates must be non-nil.
func New(username string, rates ratelimit.Rates, conn Conn) *Player {
	now := time.Now()
	return &Player{
		ID:           uuid.NewString(),
		Username:     username,
		JoinedAt:     now,
		Limiter:      ratelimit.New(rates),
		Conn:         conn,
		lastActivity: now,
		lastPong:     now,
	}
}

// Touch records inbound activity.
func (p *Player) Touch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastActivity = time.Now()
}

// IsAFK reports whether the player has been inactive for longer than
// timeout. A timeout of zero or less falls back to DefaultAFKTimeout.
func (p *Player) IsAFK(timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultAFKTimeout
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Since(p.lastActivity) > timeout
}

// SetPosition stores the last accepted position.
func (p *Player) SetPosition(v protocol.Vec3) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = v
}

// SetRotation stores the last accepted rotation.
func (p *Player) SetRotation(v protocol.Vec3) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rotation = v
}

// PingSent marks a heartbeat probe as outstanding.
func (p *Player) PingSent() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pingWaiting = true
}

// PongReceived records a heartbeat reply and clears the outstanding
// flag.
func (p *Player) PongReceived() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastPong = time.Now()
	p.pingWaiting = false
}

// PingExpired reports whether a probe is outstanding and more than
// pongTimeout has elapsed since the last pong. Such a connection is
// treated as half-open and dead.
func (p *Player) PingExpired(pongTimeout time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pingWaiting && time.Since(p.lastPong) > pongTimeout
}

// Info returns the wire snapshot of the player.
func (p *Player) Info() protocol.PlayerInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return protocol.PlayerInfo{
		ID:       p.ID,
		Username: p.Username,
		Position: p.position,
		Rotation: p.rotation,
		JoinedAt: protocol.Timestamp(p.JoinedAt),
	}
}
