package models

import "time"

// Conversation is the durable record of all messages exchanged between
// exactly two users. Participants is always length two and held in
// normalized (sorted) order; at most one conversation exists per pair.
type Conversation struct {
	ID           string    `json:"id"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}

// Message is an append-only entry in a conversation. Once stored it is
// immutable except for the Seen flag, which is reserved for a future
// read-receipt path and currently never flips.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Body           string    `json:"body"`
	Seen           bool      `json:"seen"`
	CreatedAt      time.Time `json:"created_at"`
}

// HistoryMessage is a stored message with its sender resolved to public
// profile fields, as served by GET /api/chat/:receiverId. Timestamp is
// unix milliseconds so clients can merge history with live
// messageReceived events without unit juggling.
type HistoryMessage struct {
	ID        int64         `json:"id"`
	Message   string        `json:"message"`
	Sender    SenderProfile `json:"sender"`
	Seen      bool          `json:"seen"`
	Timestamp int64         `json:"timestamp"`
}

// ChatResponse is the payload of the history endpoint. For a pair that
// has never exchanged a message it carries the pair and an empty list;
// fetching history never creates a conversation.
type ChatResponse struct {
	Participants []string         `json:"participants"`
	Messages     []HistoryMessage `json:"messages"`
}

// Websocket event names. Client-to-server intents are joinChat and
// sendMessage; the server emits messageReceived to a room and
// errorMessage to a single connection.
const (
	EventJoinChat        = "joinChat"
	EventSendMessage     = "sendMessage"
	EventMessageReceived = "messageReceived"
	EventError           = "errorMessage"
)

// WSEvent is the envelope for client-to-server frames.
type WSEvent struct {
	Event      string `json:"event"`
	UserID     string `json:"userId,omitempty"`
	ReceiverID string `json:"receiverId,omitempty"`
	Message    string `json:"message,omitempty"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
}

// MessageReceived is fanned out to every connection subscribed to the
// conversation room after the message has been durably stored.
type MessageReceived struct {
	Event     string `json:"event"`
	Message   string `json:"message"`
	FirstName string `json:"firstName"`
	SenderID  string `json:"senderId"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorEvent is sent to the originating connection only. No error at
// this layer ever closes the transport.
type ErrorEvent struct {
	Event string `json:"event"`
	Error string `json:"error"`
}

func NewErrorEvent(msg string) ErrorEvent {
	return ErrorEvent{Event: EventError, Error: msg}
}
