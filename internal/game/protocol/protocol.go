// Package protocol defines the JSON wire protocol spoken over the game
// WebSocket: inbound client frames, outbound server frames, payload
// validation, and the close codes used when the server terminates a
// connection.
package protocol

import (
	"math"
	"time"
)

// Frame type discriminators. Every frame carries a "type" field with one
// of these values.
const (
	// Client → server.
	TypePositionUpdate = "position-update"
	TypeRotationUpdate = "rotation-update"
	TypeChat           = "chat"
	TypeAction         = "action"
	TypePing           = "ping"
	TypePong           = "pong"

	// Server → client.
	TypeWelcome      = "welcome"
	TypePlayerJoined = "player-joined"
	TypePlayerLeft   = "player-left"
	TypePlayerAction = "player-action"
	TypeError        = "error"
	TypeKicked       = "kicked"
)

// WebSocket close codes in the application range.
const (
	// CloseInvalidGame covers a missing/blank game id, generic connection
	// errors, and ping timeouts.
	CloseInvalidGame = 4000
	// CloseSessionFull is sent when a join loses the capacity race.
	CloseSessionFull = 4001
	// CloseAFK is sent when a player is evicted for inactivity.
	CloseAFK = 4002
)

// ErrorCodeRateLimit identifies an error frame caused by per-type rate
// limiting.
const ErrorCodeRateLimit = "RATE_LIMIT"

// MaxCoordinate bounds the absolute value of each position coordinate.
const MaxCoordinate = 100000

// MaxChatLength is the maximum chat text length; longer text is
// truncated, not rejected.
const MaxChatLength = 500

// Vec3 is a three-component vector used for positions and rotations.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Finite reports whether every component is a finite number.
func (v Vec3) Finite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// InBounds reports whether every component is finite and within the
// world coordinate bound.
func (v Vec3) InBounds() bool {
	if !v.Finite() {
		return false
	}
	return math.Abs(v.X) < MaxCoordinate &&
		math.Abs(v.Y) < MaxCoordinate &&
		math.Abs(v.Z) < MaxCoordinate
}

// TruncateChat clamps chat text to MaxChatLength characters.
//
// Postcondition: Returns a string of at most MaxChatLength runes.
func TruncateChat(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxChatLength {
		return text
	}
	return string(runes[:MaxChatLength])
}

// PlayerInfo is the per-player snapshot carried by welcome,
// player-joined, and player-left frames and by the session query API.
type PlayerInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Position Vec3   `json:"position"`
	Rotation Vec3   `json:"rotation"`
	JoinedAt int64  `json:"joinedAt"`
}

// Timestamp returns the wire representation of t (unix milliseconds).
func Timestamp(t time.Time) int64 {
	return t.UnixMilli()
}
