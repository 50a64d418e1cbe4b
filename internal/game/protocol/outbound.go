package protocol

// Welcome is unicast to a player immediately after placement.
type Welcome struct {
	Type       string       `json:"type"`
	PlayerID   string       `json:"playerId"`
	Username   string       `json:"username"`
	SessionID  string       `json:"sessionId"`
	GameID     string       `json:"gameId"`
	MaxPlayers int          `json:"maxPlayers"`
	Players    []PlayerInfo `json:"players"`
}

// NewWelcome builds a Welcome frame.
func NewWelcome(playerID, username, sessionID, gameID string, maxPlayers int, players []PlayerInfo) Welcome {
	return Welcome{
		Type:       TypeWelcome,
		PlayerID:   playerID,
		Username:   username,
		SessionID:  sessionID,
		GameID:     gameID,
		MaxPlayers: maxPlayers,
		Players:    players,
	}
}

// PlayerJoined is broadcast to existing session members when a player
// joins.
type PlayerJoined struct {
	Type     string       `json:"type"`
	PlayerID string       `json:"playerId"`
	Username string       `json:"username"`
	Players  []PlayerInfo `json:"players"`
}

// NewPlayerJoined builds a PlayerJoined frame.
func NewPlayerJoined(playerID, username string, players []PlayerInfo) PlayerJoined {
	return PlayerJoined{Type: TypePlayerJoined, PlayerID: playerID, Username: username, Players: players}
}

// PlayerLeft is broadcast to remaining session members when a player
// disconnects or is evicted.
type PlayerLeft struct {
	Type     string       `json:"type"`
	PlayerID string       `json:"playerId"`
	Username string       `json:"username"`
	Players  []PlayerInfo `json:"players"`
}

// NewPlayerLeft builds a PlayerLeft frame.
func NewPlayerLeft(playerID, username string, players []PlayerInfo) PlayerLeft {
	return PlayerLeft{Type: TypePlayerLeft, PlayerID: playerID, Username: username, Players: players}
}

// PositionBroadcast relays a position update to the sender's peers.
type PositionBroadcast struct {
	Type      string `json:"type"`
	PlayerID  string `json:"playerId"`
	Position  Vec3   `json:"position"`
	Timestamp int64  `json:"timestamp"`
}

// RotationBroadcast relays a rotation update to the sender's peers.
type RotationBroadcast struct {
	Type      string `json:"type"`
	PlayerID  string `json:"playerId"`
	Rotation  Vec3   `json:"rotation"`
	Timestamp int64  `json:"timestamp"`
}

// ChatBroadcast relays a chat line to every session member, sender
// included.
type ChatBroadcast struct {
	Type      string `json:"type"`
	PlayerID  string `json:"playerId"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// PlayerAction relays a gameplay action to every session member.
type PlayerAction struct {
	Type      string         `json:"type"`
	PlayerID  string         `json:"playerId"`
	Action    string         `json:"action"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// PingFrame is the server-initiated heartbeat probe.
type PingFrame struct {
	Type string `json:"type"`
}

// NewPing builds a heartbeat ping frame.
func NewPing() PingFrame { return PingFrame{Type: TypePing} }

// PongFrame answers a client ping.
type PongFrame struct {
	Type string `json:"type"`
}

// NewPong builds a pong reply frame.
func NewPong() PongFrame { return PongFrame{Type: TypePong} }

// ErrorFrame reports a recoverable per-message failure to the client.
// It never closes the connection by itself.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// NewError builds an error frame. code may be empty.
func NewError(message, code string) ErrorFrame {
	return ErrorFrame{Type: TypeError, Message: message, Code: code}
}

// Kicked notifies a player of a forced eviction. The socket is closed
// immediately after it is sent.
type Kicked struct {
	Type    string `json:"type"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// NewKicked builds a kicked frame.
func NewKicked(reason, message string) Kicked {
	return Kicked{Type: TypeKicked, Reason: reason, Message: message}
}
