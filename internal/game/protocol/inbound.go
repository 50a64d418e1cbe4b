package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownType is returned by DecodeInbound for a frame whose type is
// outside the closed inbound set. The caller logs and drops the frame.
var ErrUnknownType = errors.New("unknown frame type")

// ErrInvalidPayload is returned when a recognized frame fails payload
// validation. The caller answers with an error frame and drops it.
var ErrInvalidPayload = errors.New("invalid payload")

// Inbound is a decoded client frame. The set of implementations is
// closed: PositionUpdate, RotationUpdate, Chat, Action, Ping, Pong.
type Inbound interface {
	// Kind returns the wire type discriminator. It doubles as the
	// rate-limit bucket key.
	Kind() string
}

// PositionUpdate carries a player's last-known position.
type PositionUpdate struct {
	Position Vec3
}

// Kind returns the wire type discriminator.
func (PositionUpdate) Kind() string { return TypePositionUpdate }

// Validate checks the coordinate bounds.
//
// Postcondition: Returns nil iff every coordinate is finite and
// |coordinate| < MaxCoordinate.
func (p PositionUpdate) Validate() error {
	if !p.Position.InBounds() {
		return fmt.Errorf("%w: position out of bounds", ErrInvalidPayload)
	}
	return nil
}

// RotationUpdate carries a player's last-known rotation.
type RotationUpdate struct {
	Rotation Vec3
}

// Kind returns the wire type discriminator.
func (RotationUpdate) Kind() string { return TypeRotationUpdate }

// Validate checks that every component is a finite number.
func (r RotationUpdate) Validate() error {
	if !r.Rotation.Finite() {
		return fmt.Errorf("%w: rotation not finite", ErrInvalidPayload)
	}
	return nil
}

// Chat carries a chat line. Text longer than MaxChatLength is truncated
// by the handler, not rejected here.
type Chat struct {
	Text string
}

// Kind returns the wire type discriminator.
func (Chat) Kind() string { return TypeChat }

// Action is a free-form gameplay signal relayed verbatim.
type Action struct {
	Action string
	Data   map[string]any
}

// Kind returns the wire type discriminator.
func (Action) Kind() string { return TypeAction }

// Validate checks that the action name is present.
func (a Action) Validate() error {
	if a.Action == "" {
		return fmt.Errorf("%w: action name missing", ErrInvalidPayload)
	}
	return nil
}

// Ping is a client liveness probe; the server answers with pong.
type Ping struct{}

// Kind returns the wire type discriminator.
func (Ping) Kind() string { return TypePing }

// Pong answers a server-initiated heartbeat ping.
type Pong struct{}

// Kind returns the wire type discriminator.
func (Pong) Kind() string { return TypePong }

// envelope is the superset of inbound frame fields used for decoding.
type envelope struct {
	Type     string         `json:"type"`
	Position *Vec3          `json:"position"`
	Rotation *Vec3          `json:"rotation"`
	Text     string         `json:"text"`
	Action   string         `json:"action"`
	Data     map[string]any `json:"data"`
}

// DecodeInbound parses a raw text frame into one of the closed inbound
// frame kinds.
//
// Postcondition: Returns a non-nil Inbound, or an error wrapping
// ErrUnknownType / ErrInvalidPayload, or a JSON error for malformed
// frames.
func DecodeInbound(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}

	switch env.Type {
	case TypePositionUpdate:
		if env.Position == nil {
			return nil, fmt.Errorf("%w: position missing", ErrInvalidPayload)
		}
		return PositionUpdate{Position: *env.Position}, nil
	case TypeRotationUpdate:
		if env.Rotation == nil {
			return nil, fmt.Errorf("%w: rotation missing", ErrInvalidPayload)
		}
		return RotationUpdate{Rotation: *env.Rotation}, nil
	case TypeChat:
		return Chat{Text: env.Text}, nil
	case TypeAction:
		return Action{Action: env.Action, Data: env.Data}, nil
	case TypePing:
		return Ping{}, nil
	case TypePong:
		return Pong{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}
