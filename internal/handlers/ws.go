package handlers

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"guidena-backend/internal/metrics"
	"guidena-backend/internal/models"
	"guidena-backend/internal/services"
)

// ChatDeps bundles the collaborators of the websocket chat protocol.
type ChatDeps struct {
	Hub      *Hub
	Store    services.ConversationStore
	Presence *services.PresenceTracker
	Authz    services.ConnectionChecker
	Log      zerolog.Logger
}

// session is the per-connection protocol state machine: Connected until a
// successful joinChat, Joined while subscribed to a room, Closed when the
// read loop exits. A session handles one frame at a time, which is what
// guarantees a single sender's messages are persisted in emission order.
type session struct {
	deps ChatDeps

	conn      Conn
	connID    string
	userID    string
	firstName string

	registered bool
	room       string
	peerID     string
}

func newSession(deps ChatDeps, conn Conn, userID, firstName string) *session {
	return &session{
		deps:      deps,
		conn:      conn,
		connID:    uuid.New().String(),
		userID:    userID,
		firstName: firstName,
	}
}

// WebSocketHandler upgrades the connection and runs the protocol read
// loop until the client goes away. Identity comes from the auth
// middleware, never from the frames themselves.
func WebSocketHandler(deps ChatDeps) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		userID, _ := c.Locals("user_id").(string)
		firstName, _ := c.Locals("first_name").(string)

		s := newSession(deps, NewLockedConn(c), userID, firstName)
		defer s.close()

		for {
			msgType, msg, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					deps.Log.Warn().Err(err).Str("user_id", userID).Msg("websocket read error")
				}
				return
			}
			if msgType != websocket.TextMessage {
				continue
			}
			s.dispatch(context.Background(), msg)
		}
	})
}

func (s *session) dispatch(ctx context.Context, raw []byte) {
	var ev models.WSEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		s.deps.Log.Debug().Err(err).Msg("dropping unparseable frame")
		return
	}

	switch ev.Event {
	case models.EventJoinChat:
		s.handleJoin(ctx, ev)
	case models.EventSendMessage:
		s.handleSend(ctx, ev)
	default:
		s.deps.Log.Debug().Str("event", ev.Event).Msg("unknown event")
	}
}

// handleJoin subscribes the connection to the conversation room derived
// from the pair and marks the user online if this is their first
// connection. Malformed joins are silently ignored; joins between users
// without an accepted mentorship connection are refused.
func (s *session) handleJoin(ctx context.Context, ev models.WSEvent) {
	if ev.UserID == "" || ev.ReceiverID == "" {
		return
	}
	if ev.UserID != s.userID {
		// Client claiming someone else's identity; same treatment as a
		// malformed join.
		s.deps.Log.Warn().Str("claimed", ev.UserID).Str("actual", s.userID).Msg("join identity mismatch")
		return
	}

	ok, err := s.deps.Authz.HasAcceptedConnection(ctx, s.userID, ev.ReceiverID)
	if err != nil {
		s.deps.Log.Error().Err(err).Msg("mentorship check failed")
		s.sendError("Unable to verify mentorship connection")
		return
	}
	if !ok {
		s.sendError("No accepted mentorship connection with this user")
		return
	}

	first := s.deps.Hub.Register(s.userID, s.connID, s.conn)
	if !s.registered {
		s.registered = true
		metrics.WSConnections.Inc()
	}

	roomID := RoomID(s.userID, ev.ReceiverID)
	s.deps.Hub.Join(roomID, s.connID)
	s.room = roomID
	s.peerID = ev.ReceiverID

	if first {
		metrics.OnlineUsers.Inc()
		s.deps.Presence.MarkOnline(ctx, s.userID)
	}

	s.deps.Log.Info().Str("user_id", s.userID).Str("room", roomID).Msg("user joined room")
}

// handleSend persists the message and only then fans it out to the room.
// Any failure before the durable append produces a single errorMessage to
// the sender, zero broadcasts, and leaves the session in its room.
func (s *session) handleSend(ctx context.Context, ev models.WSEvent) {
	if s.room == "" {
		s.sendError("Join a chat before sending messages")
		metrics.MessageSendFailures.Inc()
		return
	}
	if ev.UserID == "" || ev.ReceiverID == "" || ev.UserID != s.userID || ev.Message == "" {
		s.sendError("Failed to send message")
		metrics.MessageSendFailures.Inc()
		return
	}
	if ev.ReceiverID != s.peerID {
		// The persisted conversation and the broadcast room must agree;
		// the client has to rejoin before messaging a different peer.
		s.sendError("Failed to send message")
		metrics.MessageSendFailures.Inc()
		return
	}

	conv, err := s.deps.Store.FindOrCreate(ctx, s.userID, ev.ReceiverID)
	if err != nil {
		s.deps.Log.Error().Err(err).Str("room", s.room).Msg("find-or-create failed")
		s.sendError("Failed to send message")
		metrics.MessageSendFailures.Inc()
		return
	}

	msg, err := s.deps.Store.Append(ctx, conv.ID, s.userID, ev.Message)
	if err != nil {
		s.deps.Log.Error().Err(err).Str("room", s.room).Msg("message append failed")
		s.sendError("Failed to send message")
		metrics.MessageSendFailures.Inc()
		return
	}

	firstName := ev.FirstName
	if firstName == "" {
		firstName = s.firstName
	}

	s.deps.Hub.Broadcast(s.room, models.MessageReceived{
		Event:     models.EventMessageReceived,
		Message:   msg.Body,
		FirstName: firstName,
		SenderID:  s.userID,
		Timestamp: msg.CreatedAt.UnixMilli(),
	})
	metrics.MessagesSent.Inc()
}

// close runs on transport disconnect. If this connection never joined, the
// hub has never seen it and Unregister is a no-op.
func (s *session) close() {
	userID, last := s.deps.Hub.Unregister(s.connID)
	if s.registered {
		metrics.WSConnections.Dec()
	}
	if last && userID != "" {
		metrics.OnlineUsers.Dec()
		s.deps.Presence.MarkOffline(context.Background(), userID)
	}
}

func (s *session) sendError(msg string) {
	if err := s.conn.WriteJSON(models.NewErrorEvent(msg)); err != nil {
		s.deps.Log.Warn().Err(err).Msg("failed to deliver error event")
	}
}
