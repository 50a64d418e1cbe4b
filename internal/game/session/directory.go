package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blockforge/relay/internal/game/player"
	"github.com/blockforge/relay/internal/game/protocol"
	"github.com/blockforge/relay/internal/observability"
)

// placement records which session a player was placed into.
type placement struct {
	gameID    string
	sessionID string
}

// Info is the occupancy snapshot for one session, served to the REST
// layer.
type Info struct {
	SessionID   string                `json:"sessionId"`
	PlayerCount int                   `json:"playerCount"`
	MaxPlayers  int                   `json:"maxPlayers"`
	IsFull      bool                  `json:"isFull"`
	CreatedAt   int64                 `json:"createdAt"`
	Players     []protocol.PlayerInfo `json:"players"`
}

// Directory maps a game id to its ordered list of sessions and owns
// player placement, removal, and the liveness sweeps. All methods are
// safe for concurrent use.
//
// Lock order is directory then session, never the reverse.
type Directory struct {
	maxPlayers int
	logger     *zap.Logger
	metrics    *observability.Metrics

	mu       sync.Mutex
	sessions map[string][]*Session // gameID → sessions in creation order
	players  map[string]placement  // playerID → placement
}

// NewDirectory creates an empty directory.
//
// Precondition: logger and metrics must be non-nil. A maxPlayers of
// zero or less falls back to DefaultMaxPlayers.
func NewDirectory(maxPlayers int, logger *zap.Logger, metrics *observability.Metrics) *Directory {
	if maxPlayers <= 0 {
		maxPlayers = DefaultMaxPlayers
	}
	return &Directory{
		maxPlayers: maxPlayers,
		logger:     logger,
		metrics:    metrics,
		sessions:   make(map[string][]*Session),
		players:    make(map[string]placement),
	}
}

// Place puts p into the first session for gameID with spare capacity,
// creating a new session when none has room.
//
// Precondition: gameID must be non-empty; p must not already be placed.
// Postcondition: On success the player index is updated and the owning
// session is returned. ErrSessionFull is surfaced only if the add loses
// a capacity race.
func (d *Directory) Place(gameID string, p *player.Player) (*Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var target *Session
	for _, s := range d.sessions[gameID] {
		if !s.IsFull() {
			target = s
			break
		}
	}
	if target == nil {
		target = NewSession(gameID, d.maxPlayers, d.logger, d.metrics)
		d.sessions[gameID] = append(d.sessions[gameID], target)
		d.metrics.SessionsCreated.Inc()
		d.metrics.ActiveSessions.Inc()
		d.logger.Info("session created",
			zap.String("game_id", gameID),
			zap.String("session_id", target.ID()),
		)
	}

	if err := target.AddPlayer(p); err != nil {
		return nil, fmt.Errorf("placing player %s in game %s: %w", p.ID, gameID, err)
	}

	d.players[p.ID] = placement{gameID: gameID, sessionID: target.ID()}
	d.metrics.ActivePlayers.Inc()
	return target, nil
}

// Remove takes a player out of its session, broadcasts player-left to
// the remaining members, and prunes the session the moment it empties.
// Idempotent: removing an unknown player is a no-op.
//
// Postcondition: Returns the removed player and its former session, or
// ok=false if the player was not placed.
func (d *Directory) Remove(playerID string) (*player.Player, *Session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pl, ok := d.players[playerID]
	if !ok {
		return nil, nil, false
	}
	sess := d.sessionByID(pl.gameID, pl.sessionID)
	delete(d.players, playerID)
	if sess == nil {
		return nil, nil, false
	}

	p := sess.RemovePlayer(playerID)
	if p == nil {
		return nil, nil, false
	}
	d.metrics.ActivePlayers.Dec()

	sess.Broadcast(protocol.NewPlayerLeft(p.ID, p.Username, sess.PlayerList()), "")
	d.pruneLocked(pl.gameID)
	return p, sess, true
}

// SweepAFK evicts idle players from every session and returns the
// eviction count per game id.
func (d *Directory) SweepAFK(timeout time.Duration) map[string]int {
	d.mu.Lock()
	defer d.mu.Unlock()

	counts := make(map[string]int)
	for gameID, list := range d.sessions {
		for _, sess := range list {
			evicted := sess.RemoveAFKPlayers(timeout)
			for _, p := range evicted {
				delete(d.players, p.ID)
				d.metrics.ActivePlayers.Dec()
				d.metrics.Evictions.WithLabelValues("afk").Inc()
				counts[gameID]++
			}
			if len(evicted) > 0 {
				remaining := sess.PlayerList()
				for _, p := range evicted {
					sess.Broadcast(protocol.NewPlayerLeft(p.ID, p.Username, remaining), "")
				}
			}
		}
		d.pruneLocked(gameID)
	}
	return counts
}

// SweepHeartbeat closes connections whose heartbeat ping went
// unanswered for longer than pongTimeout and sends a fresh ping to
// everyone else. Returns the number of dead connections reaped.
func (d *Directory) SweepHeartbeat(pongTimeout time.Duration) int {
	pingFrame, err := json.Marshal(protocol.NewPing())
	if err != nil {
		d.logger.Error("marshalling ping frame", zap.Error(err))
		return 0
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	reaped := 0
	for gameID, list := range d.sessions {
		for _, sess := range list {
			for _, p := range sess.Players() {
				if !p.Conn.Open() {
					continue
				}
				if p.PingExpired(pongTimeout) {
					p.Conn.Close(protocol.CloseInvalidGame, "Ping timeout")
					if removed := sess.RemovePlayer(p.ID); removed != nil {
						delete(d.players, p.ID)
						d.metrics.ActivePlayers.Dec()
						d.metrics.Evictions.WithLabelValues("ping_timeout").Inc()
						sess.Broadcast(protocol.NewPlayerLeft(p.ID, p.Username, sess.PlayerList()), "")
						reaped++
					}
					continue
				}
				if err := p.Conn.Send(pingFrame); err != nil {
					d.logger.Warn("sending heartbeat ping",
						zap.String("player_id", p.ID),
						zap.Error(err),
					)
					continue
				}
				p.PingSent()
			}
		}
		d.pruneLocked(gameID)
	}
	return reaped
}

// Infos returns occupancy snapshots for every session of gameID, in
// creation order, or nil when the game has no sessions. Empty sessions
// cannot appear: they are pruned the instant they empty.
func (d *Directory) Infos(gameID string) []Info {
	d.mu.Lock()
	defer d.mu.Unlock()

	list, ok := d.sessions[gameID]
	if !ok {
		return nil
	}
	infos := make([]Info, 0, len(list))
	for _, s := range list {
		infos = append(infos, Info{
			SessionID:   s.ID(),
			PlayerCount: s.PlayerCount(),
			MaxPlayers:  s.MaxPlayers(),
			IsFull:      s.IsFull(),
			CreatedAt:   protocol.Timestamp(s.CreatedAt()),
			Players:     s.PlayerList(),
		})
	}
	return infos
}

// Occupancy reports whether gameID has any sessions and whether any of
// them has spare capacity. Used by the REST join endpoint.
func (d *Directory) Occupancy(gameID string) (exists, hasRoom bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list, ok := d.sessions[gameID]
	if !ok {
		return false, false
	}
	for _, s := range list {
		if !s.IsFull() {
			return true, true
		}
	}
	return true, false
}

// Counts returns the current totals of sessions and players.
func (d *Directory) Counts() (sessions, players int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, list := range d.sessions {
		sessions += len(list)
	}
	return sessions, len(d.players)
}

// Shutdown closes every player connection and drops all directory
// state. Safe to call more than once.
func (d *Directory) Shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, list := range d.sessions {
		for _, sess := range list {
			for _, p := range sess.Players() {
				p.Conn.Close(1001, "server shutting down")
			}
			d.metrics.ActiveSessions.Dec()
		}
	}
	d.metrics.ActivePlayers.Sub(float64(len(d.players)))
	d.sessions = make(map[string][]*Session)
	d.players = make(map[string]placement)
}

// sessionByID finds a session in a game bucket. Caller holds d.mu.
func (d *Directory) sessionByID(gameID, sessionID string) *Session {
	for _, s := range d.sessions[gameID] {
		if s.ID() == sessionID {
			return s
		}
	}
	return nil
}

// pruneLocked drops empty sessions for gameID and the bucket itself if
// it empties. Caller holds d.mu.
func (d *Directory) pruneLocked(gameID string) {
	list, ok := d.sessions[gameID]
	if !ok {
		return
	}
	kept := list[:0]
	for _, s := range list {
		if s.IsEmpty() {
			d.metrics.ActiveSessions.Dec()
			d.logger.Info("session removed",
				zap.String("game_id", gameID),
				zap.String("session_id", s.ID()),
			)
			continue
		}
		kept = append(kept, s)
	}
	if len(kept) == 0 {
		delete(d.sessions, gameID)
		return
	}
	d.sessions[gameID] = kept
}
