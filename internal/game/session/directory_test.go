package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/blockforge/relay/internal/game/protocol"
	"github.com/blockforge/relay/internal/testutil"
)

func newTestDirectory(maxPlayers int) *Directory {
	return NewDirectory(maxPlayers, zap.NewNop(), testMetrics())
}

func TestPlace_SharesSessionUntilFull(t *testing.T) {
	d := newTestDirectory(0)
	a, _ := newTestPlayer("Alice")
	b, _ := newTestPlayer("Bob")

	sessA, err := d.Place("g1", a)
	require.NoError(t, err)
	sessB, err := d.Place("g1", b)
	require.NoError(t, err)

	assert.Equal(t, sessA.ID(), sessB.ID(), "both players share the first session with capacity")

	sessions, players := d.Counts()
	assert.Equal(t, 1, sessions)
	assert.Equal(t, 2, players)
}

func TestPlace_OverflowCreatesNewSession(t *testing.T) {
	d := newTestDirectory(DefaultMaxPlayers)

	var firstID string
	for i := 0; i < DefaultMaxPlayers; i++ {
		p, _ := newTestPlayer(fmt.Sprintf("p%d", i))
		sess, err := d.Place("g1", p)
		require.NoError(t, err)
		if firstID == "" {
			firstID = sess.ID()
		}
		assert.Equal(t, firstID, sess.ID())
	}

	extra, _ := newTestPlayer("p20")
	sess, err := d.Place("g1", extra)
	require.NoError(t, err)
	assert.NotEqual(t, firstID, sess.ID(), "21st player gets a second, distinct session")

	sessions, _ := d.Counts()
	assert.Equal(t, 2, sessions)
}

func TestPlace_GamesAreIsolated(t *testing.T) {
	d := newTestDirectory(0)
	a, _ := newTestPlayer("Alice")
	b, _ := newTestPlayer("Bob")

	sessA, err := d.Place("g1", a)
	require.NoError(t, err)
	sessB, err := d.Place("g2", b)
	require.NoError(t, err)

	assert.NotEqual(t, sessA.ID(), sessB.ID())
}

func TestRemove_BroadcastsPlayerLeft(t *testing.T) {
	d := newTestDirectory(0)
	a, _ := newTestPlayer("Alice")
	b, connB := newTestPlayer("Bob")
	_, err := d.Place("g1", a)
	require.NoError(t, err)
	_, err = d.Place("g1", b)
	require.NoError(t, err)

	p, _, ok := d.Remove(a.ID)
	require.True(t, ok)
	assert.Same(t, a, p)

	var left protocol.PlayerLeft
	require.True(t, connB.LastFrame(protocol.TypePlayerLeft, &left))
	assert.Equal(t, a.ID, left.PlayerID)
	require.Len(t, left.Players, 1)
	assert.Equal(t, b.ID, left.Players[0].ID)
}

func TestRemove_PrunesEmptySession(t *testing.T) {
	d := newTestDirectory(0)
	a, _ := newTestPlayer("Alice")
	_, err := d.Place("g1", a)
	require.NoError(t, err)

	_, _, ok := d.Remove(a.ID)
	require.True(t, ok)

	assert.Nil(t, d.Infos("g1"), "empty session and its game bucket are gone")
	sessions, players := d.Counts()
	assert.Zero(t, sessions)
	assert.Zero(t, players)
}

func TestRemove_Idempotent(t *testing.T) {
	d := newTestDirectory(0)
	a, _ := newTestPlayer("Alice")
	_, err := d.Place("g1", a)
	require.NoError(t, err)

	_, _, ok := d.Remove(a.ID)
	require.True(t, ok)
	_, _, ok = d.Remove(a.ID)
	assert.False(t, ok)
	_, _, ok = d.Remove("never-placed")
	assert.False(t, ok)
}

func TestInfos(t *testing.T) {
	d := newTestDirectory(0)
	assert.Nil(t, d.Infos("unknown"))

	a, _ := newTestPlayer("Alice")
	sess, err := d.Place("g1", a)
	require.NoError(t, err)

	infos := d.Infos("g1")
	require.Len(t, infos, 1)
	info := infos[0]
	assert.Equal(t, sess.ID(), info.SessionID)
	assert.Equal(t, 1, info.PlayerCount)
	assert.Equal(t, DefaultMaxPlayers, info.MaxPlayers)
	assert.False(t, info.IsFull)
	assert.NotZero(t, info.CreatedAt)
	require.Len(t, info.Players, 1)
	assert.Equal(t, a.ID, info.Players[0].ID)
}

func TestOccupancy(t *testing.T) {
	d := newTestDirectory(1)

	exists, hasRoom := d.Occupancy("g1")
	assert.False(t, exists)
	assert.False(t, hasRoom)

	a, _ := newTestPlayer("Alice")
	_, err := d.Place("g1", a)
	require.NoError(t, err)

	exists, hasRoom = d.Occupancy("g1")
	assert.True(t, exists)
	assert.False(t, hasRoom, "single-slot session is full")
}

func TestSweepAFK(t *testing.T) {
	d := newTestDirectory(0)
	idle, idleConn := newTestPlayer("Idle")
	active, _ := newTestPlayer("Active")
	_, err := d.Place("g1", idle)
	require.NoError(t, err)
	_, err = d.Place("g1", active)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	active.Touch()

	counts := d.SweepAFK(10 * time.Millisecond)
	assert.Equal(t, map[string]int{"g1": 1}, counts)

	closed, code, _ := idleConn.Closed()
	assert.True(t, closed)
	assert.Equal(t, protocol.CloseAFK, code)

	_, players := d.Counts()
	assert.Equal(t, 1, players, "index entry for the evicted player is gone")

	// Evicting the last player prunes the session.
	time.Sleep(20 * time.Millisecond)
	counts = d.SweepAFK(10 * time.Millisecond)
	assert.Equal(t, map[string]int{"g1": 1}, counts)
	assert.Nil(t, d.Infos("g1"))
}

func TestSweepHeartbeat_SendsPings(t *testing.T) {
	d := newTestDirectory(0)
	a, connA := newTestPlayer("Alice")
	_, err := d.Place("g1", a)
	require.NoError(t, err)

	reaped := d.SweepHeartbeat(5 * time.Second)
	assert.Zero(t, reaped)

	types := connA.FrameTypes()
	require.Len(t, types, 1)
	assert.Equal(t, protocol.TypePing, types[0])
}

func TestSweepHeartbeat_ReapsDeadConnections(t *testing.T) {
	d := newTestDirectory(0)
	dead, deadConn := newTestPlayer("Dead")
	alive, aliveConn := newTestPlayer("Alive")
	_, err := d.Place("g1", dead)
	require.NoError(t, err)
	_, err = d.Place("g1", alive)
	require.NoError(t, err)

	// First sweep: both get a ping.
	d.SweepHeartbeat(5 * time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	alive.PongReceived()

	reaped := d.SweepHeartbeat(5 * time.Millisecond)
	assert.Equal(t, 1, reaped)

	closed, code, reason := deadConn.Closed()
	assert.True(t, closed)
	assert.Equal(t, protocol.CloseInvalidGame, code)
	assert.Equal(t, "Ping timeout", reason)

	closed, _, _ = aliveConn.Closed()
	assert.False(t, closed)

	// Map iteration order decides whether the survivor's ping arrives
	// before or after the player-left, so scan rather than look at the
	// last frame only.
	var left protocol.PlayerLeft
	require.True(t, aliveConn.FrameOfType(protocol.TypePlayerLeft, &left))
	assert.Equal(t, dead.ID, left.PlayerID)

	_, players := d.Counts()
	assert.Equal(t, 1, players)
}

func TestShutdown(t *testing.T) {
	d := newTestDirectory(0)
	a, connA := newTestPlayer("Alice")
	b, connB := newTestPlayer("Bob")
	_, err := d.Place("g1", a)
	require.NoError(t, err)
	_, err = d.Place("g2", b)
	require.NoError(t, err)

	d.Shutdown()

	for _, conn := range []*testutil.RecordingConn{connA, connB} {
		closed, code, _ := conn.Closed()
		assert.True(t, closed)
		assert.Equal(t, 1001, code)
	}
	sessions, players := d.Counts()
	assert.Zero(t, sessions)
	assert.Zero(t, players)

	d.Shutdown() // safe to repeat
}
