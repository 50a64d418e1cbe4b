// Package gateway accepts WebSocket upgrade requests at
// /ws/game/{gameId}, places each connection's player into a session via
// the directory, and dispatches inbound frames to the session fan-out.
// Nothing above the connection level is fatal: every failure path ends
// at "close this one connection" or "drop this one frame".
package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/blockforge/relay/internal/game/player"
	"github.com/blockforge/relay/internal/game/protocol"
	"github.com/blockforge/relay/internal/game/ratelimit"
	"github.com/blockforge/relay/internal/game/session"
	"github.com/blockforge/relay/internal/observability"
)

// Directory is the placement surface the gateway needs from the
// session directory.
type Directory interface {
	// Place puts p into a session for gameID.
	Place(gameID string, p *player.Player) (*session.Session, error)
	// Remove takes a player out of its session. Idempotent.
	Remove(playerID string) (*player.Player, *session.Session, bool)
}

// Gateway is the WebSocket connection entry point.
type Gateway struct {
	directory Directory
	rates     ratelimit.Rates
	logger    *zap.Logger
	metrics   *observability.Metrics
	upgrader  websocket.Upgrader
}

// NewGateway creates a Gateway backed by the given directory.
//
// Precondition: directory, logger, and metrics must be non-nil; rates
// must be non-nil.
func NewGateway(directory Directory, rates ratelimit.Rates, logger *zap.Logger, metrics *observability.Metrics) *Gateway {
	return &Gateway{
		directory: directory,
		rates:     rates,
		logger:    logger,
		metrics:   metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The game client is served from arbitrary origins (desktop
			// shell, editor preview); origin checks happen upstream.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Register mounts the upgrade endpoint on r. Non-matching paths never
// reach the websocket layer; the router rejects them before a
// handshake happens.
func (g *Gateway) Register(r *mux.Router) {
	r.HandleFunc("/ws/game/{gameId}", g.HandleUpgrade)
	r.HandleFunc("/ws/game", g.HandleUpgrade)
	r.HandleFunc("/ws/game/", g.HandleUpgrade)
}

// HandleUpgrade performs the WebSocket handshake and runs the
// connection until the socket closes.
func (g *Gateway) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	gameID := strings.TrimSpace(mux.Vars(r)["gameId"])
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		username = "Guest-" + uuid.NewString()[:4]
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn := newWSConn(ws)
	go conn.writePump()

	if gameID == "" {
		conn.Close(protocol.CloseInvalidGame, "Invalid game id")
		return
	}

	p := player.New(username, g.rates, conn)
	sess, err := g.directory.Place(gameID, p)
	if err != nil {
		if errors.Is(err, session.ErrSessionFull) {
			g.sendError(p, "Session is full", "")
			conn.Close(protocol.CloseSessionFull, "Session full")
			return
		}
		g.logger.Error("placing player", zap.String("game_id", gameID), zap.Error(err))
		conn.Close(protocol.CloseInvalidGame, "Connection error")
		return
	}

	g.metrics.ConnectionsTotal.Inc()
	g.logger.Info("player connected",
		zap.String("player_id", p.ID),
		zap.String("username", p.Username),
		zap.String("game_id", gameID),
		zap.String("session_id", sess.ID()),
	)

	if err := sess.SendTo(p, protocol.NewWelcome(p.ID, p.Username, sess.ID(), gameID, sess.MaxPlayers(), sess.PlayerList())); err != nil {
		g.logger.Warn("sending welcome", zap.String("player_id", p.ID), zap.Error(err))
	}
	sess.Broadcast(protocol.NewPlayerJoined(p.ID, p.Username, sess.PlayerList()), p.ID)

	g.readLoop(ws, conn, p, sess)
}

// readLoop consumes frames until the socket closes, then runs
// disconnect cleanup.
func (g *Gateway) readLoop(ws *websocket.Conn, conn *wsConn, p *player.Player, sess *session.Session) {
	defer g.disconnect(conn, p)

	ws.SetReadLimit(maxFrameSize)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		g.handleFrame(p, sess, data)
	}
}

// disconnect removes the player from its session (idempotent: the
// liveness monitor may already have done it) and releases the socket.
func (g *Gateway) disconnect(conn *wsConn, p *player.Player) {
	_, _, removed := g.directory.Remove(p.ID)
	conn.Close(websocket.CloseNormalClosure, "")
	g.metrics.DisconnectsTotal.Inc()
	g.logger.Info("player disconnected",
		zap.String("player_id", p.ID),
		zap.String("username", p.Username),
		zap.Bool("already_removed", !removed),
	)
}

// handleFrame decodes and dispatches one inbound frame. A panic in a
// handler is recovered here so it cannot take the gateway down.
func (g *Gateway) handleFrame(p *player.Player, sess *session.Session, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("panic handling frame",
				zap.String("player_id", p.ID),
				zap.Any("panic", r),
			)
		}
	}()

	p.Touch()

	frame, err := protocol.DecodeInbound(data)
	if err != nil {
		if errors.Is(err, protocol.ErrInvalidPayload) {
			g.sendError(p, "Invalid message payload", "")
			return
		}
		// Malformed JSON or unknown type: drop, keep the connection.
		g.logger.Debug("dropping frame",
			zap.String("player_id", p.ID),
			zap.Error(err),
		)
		return
	}
	g.metrics.FramesReceived.WithLabelValues(frame.Kind()).Inc()

	switch f := frame.(type) {
	case protocol.Pong:
		// Heartbeat replies bypass rate limiting entirely.
		p.PongReceived()
		return
	case protocol.Ping:
		if err := sess.SendTo(p, protocol.NewPong()); err != nil {
			g.logger.Debug("sending pong", zap.String("player_id", p.ID), zap.Error(err))
		}
		return
	default:
		if !p.Limiter.Allow(frame.Kind()) {
			g.metrics.RateLimited.WithLabelValues(frame.Kind()).Inc()
			g.sendError(p, "Rate limit exceeded", protocol.ErrorCodeRateLimit)
			return
		}
		g.dispatch(p, sess, f)
	}
}

// dispatch applies an already rate-limited frame.
func (g *Gateway) dispatch(p *player.Player, sess *session.Session, frame protocol.Inbound) {
	now := protocol.Timestamp(time.Now())

	switch f := frame.(type) {
	case protocol.PositionUpdate:
		if err := f.Validate(); err != nil {
			g.sendError(p, "Invalid position", "")
			return
		}
		p.SetPosition(f.Position)
		sess.Broadcast(protocol.PositionBroadcast{
			Type:      protocol.TypePositionUpdate,
			PlayerID:  p.ID,
			Position:  f.Position,
			Timestamp: now,
		}, p.ID)

	case protocol.RotationUpdate:
		if err := f.Validate(); err != nil {
			g.sendError(p, "Invalid rotation", "")
			return
		}
		p.SetRotation(f.Rotation)
		sess.Broadcast(protocol.RotationBroadcast{
			Type:      protocol.TypeRotationUpdate,
			PlayerID:  p.ID,
			Rotation:  f.Rotation,
			Timestamp: now,
		}, p.ID)

	case protocol.Chat:
		sess.Broadcast(protocol.ChatBroadcast{
			Type:      protocol.TypeChat,
			PlayerID:  p.ID,
			Username:  p.Username,
			Text:      protocol.TruncateChat(f.Text),
			Timestamp: now,
		}, "")

	case protocol.Action:
		if err := f.Validate(); err != nil {
			g.sendError(p, "Invalid action", "")
			return
		}
		sess.Broadcast(protocol.PlayerAction{
			Type:      protocol.TypePlayerAction,
			PlayerID:  p.ID,
			Action:    f.Action,
			Data:      f.Data,
			Timestamp: now,
		}, "")
	}
}

// sendError delivers an error frame to a single player. Errors never
// close the connection by themselves.
func (g *Gateway) sendError(p *player.Player, message, code string) {
	data, err := json.Marshal(protocol.NewError(message, code))
	if err != nil {
		return
	}
	if err := p.Conn.Send(data); err != nil {
		g.logger.Debug("sending error frame",
			zap.String("player_id", p.ID),
			zap.Error(err),
		)
	}
}
