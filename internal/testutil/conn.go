// Package testutil provides shared test fakes for the relay server.
package testutil

import (
	"encoding/json"
	"errors"
	"sync"
)

// RecordingConn is a player.Conn fake that records every sent frame and
// the close code/reason, for asserting on fan-out behavior without a
// real socket.
type RecordingConn struct {
	mu      sync.Mutex
	frames  [][]byte
	closed  bool
	code    int
	reason  string
	sendErr error
}

// NewRecordingConn creates an open RecordingConn.
func NewRecordingConn() *RecordingConn {
	return &RecordingConn{}
}

// FailSends makes every subsequent Send return err.
func (c *RecordingConn) FailSends(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

// Send records the frame.
func (c *RecordingConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.frames = append(c.frames, buf)
	return nil
}

// Close records the close code and reason. Idempotent; only the first
// call is recorded.
func (c *RecordingConn) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.code = code
	c.reason = reason
}

// Open reports whether Close has been called.
func (c *RecordingConn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Closed reports whether the connection was closed, with the recorded
// code and reason.
func (c *RecordingConn) Closed() (bool, int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.code, c.reason
}

// Frames returns a copy of every recorded frame.
func (c *RecordingConn) Frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.frames))
	copy(out, c.frames)
	return out
}

// FrameTypes returns the "type" discriminator of every recorded frame,
// in send order.
func (c *RecordingConn) FrameTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		types = append(types, frameTypeOf(f))
	}
	return types
}

// LastFrame unmarshals the most recent frame into v. Returns false when
// no frame was recorded or the last frame's type discriminator is not
// frameType.
func (c *RecordingConn) LastFrame(frameType string, v any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		return false
	}
	last := c.frames[len(c.frames)-1]
	if frameTypeOf(last) != frameType {
		return false
	}
	return json.Unmarshal(last, v) == nil
}

// FrameOfType unmarshals the most recent frame of the given type into
// v, scanning backwards through everything recorded. Returns false when
// no such frame exists.
func (c *RecordingConn) FrameOfType(frameType string, v any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.frames) - 1; i >= 0; i-- {
		if frameTypeOf(c.frames[i]) == frameType {
			return json.Unmarshal(c.frames[i], v) == nil
		}
	}
	return false
}

func frameTypeOf(data []byte) string {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return ""
	}
	return env.Type
}
