// Package session provides capacity-bounded player sessions and the
// directory that groups them by game. A Session owns its player map and
// the fan-out of frames to its members; the Directory owns session
// placement, removal, liveness sweeps, and the occupancy snapshots
// served to the REST layer.
package session

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blockforge/relay/internal/game/player"
	"github.com/blockforge/relay/internal/game/protocol"
	"github.com/blockforge/relay/internal/observability"
)

// DefaultMaxPlayers is the stock per-session capacity bound.
const DefaultMaxPlayers = 20

// ErrSessionFull is returned when a player cannot be added because the
// session is at capacity.
var ErrSessionFull = errors.New("session full")

// Session is a bounded group of players sharing one game instance.
// All methods are safe for concurrent use.
type Session struct {
	id         string
	gameID     string
	maxPlayers int
	createdAt  time.Time
	logger     *zap.Logger
	metrics    *observability.Metrics

	mu      sync.Mutex
	players map[string]*player.Player
}

// NewSession creates an empty session for the given game.
//
// Precondition: gameID must be non-empty; logger and metrics must be
// non-nil. A maxPlayers of zero or less falls back to DefaultMaxPlayers.
func NewSession(gameID string, maxPlayers int, logger *zap.Logger, metrics *observability.Metrics) *Session {
	if maxPlayers <= 0 {
		maxPlayers = DefaultMaxPlayers
	}
	return &Session{
		id:         uuid.NewString(),
		gameID:     gameID,
		maxPlayers: maxPlayers,
		createdAt:  time.Now(),
		logger:     logger,
		metrics:    metrics,
		players:    make(map[string]*player.Player),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// GameID returns the game this session instances.
func (s *Session) GameID() string { return s.gameID }

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// MaxPlayers returns the capacity bound.
func (s *Session) MaxPlayers() int { return s.maxPlayers }

// AddPlayer inserts p into the session and stamps its SessionID.
//
// Postcondition: Returns ErrSessionFull without mutating the player map
// if the session is at capacity.
func (s *Session) AddPlayer(p *player.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.players) >= s.maxPlayers {
		return ErrSessionFull
	}
	p.SessionID = s.id
	s.players[p.ID] = p
	return nil
}

// RemovePlayer removes the player with the given id.
//
// Postcondition: Returns the removed player, or nil if absent.
// Idempotent.
func (s *Session) RemovePlayer(playerID string) *player.Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok {
		return nil
	}
	delete(s.players, playerID)
	return p
}

// PlayerCount returns the current number of players.
func (s *Session) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players)
}

// IsEmpty reports whether the session has no players.
func (s *Session) IsEmpty() bool { return s.PlayerCount() == 0 }

// IsFull reports whether the session is at capacity.
func (s *Session) IsFull() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players) >= s.maxPlayers
}

// PlayerList returns a snapshot of every current player's wire info.
// Order is map-iteration order; callers must not rely on it.
func (s *Session) PlayerList() []protocol.PlayerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]protocol.PlayerInfo, 0, len(s.players))
	for _, p := range s.players {
		list = append(list, p.Info())
	}
	return list
}

// Players returns a snapshot slice of the current players.
func (s *Session) Players() []*player.Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]*player.Player, 0, len(s.players))
	for _, p := range s.players {
		list = append(list, p)
	}
	return list
}

// Broadcast serializes frame once and sends it to every player whose
// connection is open, except excludeID (empty = nobody excluded). A
// send failure for one player is logged and does not affect the rest.
func (s *Session) Broadcast(frame any, excludeID string) {
	data, err := json.Marshal(frame)
	if err != nil {
		s.logger.Error("marshalling broadcast frame",
			zap.String("session_id", s.id),
			zap.Error(err),
		)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delivered := 0
	for id, p := range s.players {
		if id == excludeID || !p.Conn.Open() {
			continue
		}
		if err := p.Conn.Send(data); err != nil {
			s.logger.Warn("broadcast send failed",
				zap.String("session_id", s.id),
				zap.String("player_id", id),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}
	s.metrics.BroadcastsTotal.Inc()
	s.metrics.BroadcastFanout.Observe(float64(delivered))
}

// SendTo serializes frame and sends it to a single player.
func (s *Session) SendTo(p *player.Player, frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return p.Conn.Send(data)
}

// RemoveAFKPlayers evicts every player idle for longer than timeout:
// each receives a kicked notice, has its socket closed with the AFK
// close code, and is removed from the player map.
//
// Postcondition: Returns the evicted players (may be empty).
func (s *Session) RemoveAFKPlayers(timeout time.Duration) []*player.Player {
	notice, err := json.Marshal(protocol.NewKicked("AFK timeout", "You were disconnected due to inactivity"))
	if err != nil {
		s.logger.Error("marshalling kicked frame", zap.Error(err))
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []*player.Player
	for id, p := range s.players {
		if !p.IsAFK(timeout) {
			continue
		}
		if p.Conn.Open() {
			if err := p.Conn.Send(notice); err != nil {
				s.logger.Warn("sending kicked notice",
					zap.String("player_id", id),
					zap.Error(err),
				)
			}
		}
		p.Conn.Close(protocol.CloseAFK, "AFK timeout")
		delete(s.players, id)
		evicted = append(evicted, p)
	}
	return evicted
}
