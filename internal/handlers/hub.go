package handlers

import (
	"sync"

	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog/log"
)

// Conn is the write side of a transport connection. *websocket.Conn is
// wrapped in a lockedConn before entering the hub because fiber's
// websocket implementation is not safe for concurrent writers.
type Conn interface {
	WriteJSON(v interface{}) error
}

type lockedConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func NewLockedConn(c *websocket.Conn) Conn {
	return &lockedConn{conn: c}
}

func (l *lockedConn) WriteJSON(v interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteJSON(v)
}

type hubConn struct {
	userID string
	conn   Conn
	room   string
}

// Hub is the connection registry and room router in one process-local
// structure: which connections belong to which user, and which room each
// connection is subscribed to. It is constructed once per server instance
// and passed to whatever needs it; it holds no global state. Lost on
// restart, which is fine — presence is reconstructible from reconnects.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*hubConn            // connID -> connection
	users map[string]map[string]struct{} // userID -> set of connIDs
	rooms map[string]map[string]Conn     // roomID -> connID -> conn
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]*hubConn),
		users: make(map[string]map[string]struct{}),
		rooms: make(map[string]map[string]Conn),
	}
}

// Register adds a connection to the user's set and reports whether it was
// the user's first, i.e. the user just came online. Registering the same
// pair twice is a no-op.
func (h *Hub) Register(userID, connID string, c Conn) (first bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connID]; !ok {
		h.conns[connID] = &hubConn{userID: userID, conn: c}
	}

	set, ok := h.users[userID]
	if !ok {
		set = make(map[string]struct{})
		h.users[userID] = set
	}
	if _, ok := set[connID]; ok {
		return false
	}
	first = len(set) == 0
	set[connID] = struct{}{}
	return first
}

// Unregister removes a connection from its user's set and from its room.
// It reports the owning user and whether this was the user's last
// connection, i.e. the user is now fully offline. Unknown connections are
// a no-op: disconnect ordering is not guaranteed relative to join.
func (h *Hub) Unregister(connID string) (userID string, last bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	hc, ok := h.conns[connID]
	if !ok {
		return "", false
	}
	delete(h.conns, connID)

	if hc.room != "" {
		h.leaveRoom(hc.room, connID)
	}

	set := h.users[hc.userID]
	delete(set, connID)
	if len(set) == 0 {
		delete(h.users, hc.userID)
		return hc.userID, true
	}
	return hc.userID, false
}

// Join subscribes a registered connection to a room. A connection occupies
// at most one room at a time; joining a new room leaves the previous one.
// Joining the current room again is a no-op.
func (h *Hub) Join(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	hc, ok := h.conns[connID]
	if !ok {
		return
	}
	if hc.room == roomID {
		return
	}
	if hc.room != "" {
		h.leaveRoom(hc.room, connID)
	}

	room, ok := h.rooms[roomID]
	if !ok {
		room = make(map[string]Conn)
		h.rooms[roomID] = room
	}
	room[connID] = hc.conn
	hc.room = roomID
}

func (h *Hub) leaveRoom(roomID, connID string) {
	if room, ok := h.rooms[roomID]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Broadcast pushes a payload to every connection currently subscribed to
// the room. Membership is snapshotted under the read lock and writes
// happen outside it so a slow client cannot stall registry mutations.
func (h *Hub) Broadcast(roomID string, payload interface{}) {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.rooms[roomID]))
	for _, c := range h.rooms[roomID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.WriteJSON(payload); err != nil {
			log.Warn().Err(err).Str("room", roomID).Msg("broadcast write failed")
		}
	}
}

// IsOnline reports whether the user has at least one registered connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// ConnCount returns the number of registered connections for a user.
func (h *Hub) ConnCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}
