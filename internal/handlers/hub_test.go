package handlers

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records every payload written to it, decoded to a generic map
// the way a client would see it.
type fakeConn struct {
	mu     sync.Mutex
	events []map[string]interface{}
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, m)
	return nil
}

func (f *fakeConn) received() []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]interface{}(nil), f.events...)
}

func TestRegisterReportsFirstConnectionOnly(t *testing.T) {
	hub := NewHub()

	assert.True(t, hub.Register("u1", "c1", &fakeConn{}), "first connection should report first")
	assert.False(t, hub.Register("u1", "c2", &fakeConn{}), "second connection should not report first")
	assert.False(t, hub.Register("u1", "c2", &fakeConn{}), "re-registering the same pair is a no-op")
	assert.Equal(t, 2, hub.ConnCount("u1"))
}

func TestPresenceMatchesRegistrySetOccupancy(t *testing.T) {
	hub := NewHub()

	assert.False(t, hub.IsOnline("u1"))

	hub.Register("u1", "c1", &fakeConn{})
	hub.Register("u1", "c2", &fakeConn{})
	hub.Register("u1", "c3", &fakeConn{})
	assert.True(t, hub.IsOnline("u1"))

	_, last := hub.Unregister("c2")
	assert.False(t, last, "two connections remain")
	assert.True(t, hub.IsOnline("u1"))

	_, last = hub.Unregister("c1")
	assert.False(t, last)

	userID, last := hub.Unregister("c3")
	assert.True(t, last, "closing the final connection flips the user offline")
	assert.Equal(t, "u1", userID)
	assert.False(t, hub.IsOnline("u1"))
}

func TestUnregisterUnknownConnectionIsNoOp(t *testing.T) {
	hub := NewHub()

	userID, last := hub.Unregister("never-joined")
	assert.Empty(t, userID)
	assert.False(t, last)
}

func TestBroadcastReachesRoomMembersOnly(t *testing.T) {
	hub := NewHub()
	a, b, c := &fakeConn{}, &fakeConn{}, &fakeConn{}

	hub.Register("u1", "c1", a)
	hub.Register("u2", "c2", b)
	hub.Register("u3", "c3", c)

	room := RoomID("u1", "u2")
	hub.Join(room, "c1")
	hub.Join(room, "c2")
	hub.Join(RoomID("u3", "u4"), "c3")

	hub.Broadcast(room, map[string]string{"event": "messageReceived"})

	require.Len(t, a.received(), 1)
	require.Len(t, b.received(), 1)
	assert.Empty(t, c.received(), "connection in a different room must not receive the event")
}

func TestJoinMovesConnectionBetweenRooms(t *testing.T) {
	hub := NewHub()
	a := &fakeConn{}

	hub.Register("u1", "c1", a)

	first := RoomID("u1", "u2")
	second := RoomID("u1", "u3")
	hub.Join(first, "c1")
	hub.Join(second, "c1")

	hub.Broadcast(first, map[string]string{"event": "stale"})
	assert.Empty(t, a.received(), "connection left the first room when joining the second")

	hub.Broadcast(second, map[string]string{"event": "fresh"})
	assert.Len(t, a.received(), 1)
}

func TestJoinUnregisteredConnectionIsIgnored(t *testing.T) {
	hub := NewHub()
	hub.Join(RoomID("u1", "u2"), "ghost")

	hub.Broadcast(RoomID("u1", "u2"), map[string]string{"event": "x"})
	// Nothing to assert beyond not panicking; the room stays empty.
	assert.False(t, hub.IsOnline("u1"))
}

func TestUnregisterRemovesConnectionFromRoom(t *testing.T) {
	hub := NewHub()
	a, b := &fakeConn{}, &fakeConn{}

	hub.Register("u1", "c1", a)
	hub.Register("u2", "c2", b)
	room := RoomID("u1", "u2")
	hub.Join(room, "c1")
	hub.Join(room, "c2")

	hub.Unregister("c1")
	hub.Broadcast(room, map[string]string{"event": "messageReceived"})

	assert.Empty(t, a.received())
	assert.Len(t, b.received(), 1)
}
