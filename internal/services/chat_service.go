package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"guidena-backend/internal/models"
)

var (
	// ErrEmptyMessage rejects appends with no body before they reach the store.
	ErrEmptyMessage = errors.New("message body must not be empty")

	// ErrConversationNotFound signals an append against a conversation id
	// that was never created.
	ErrConversationNotFound = errors.New("conversation not found")
)

// ConversationStore is the durable, query-able log of messages between a
// participant pair. PgConversationStore backs production;
// MemoryConversationStore backs tests.
type ConversationStore interface {
	// FindOrCreate returns the single conversation for the unordered pair
	// {userA, userB}, creating it if this is first contact. Safe under
	// concurrent first-contact sends.
	FindOrCreate(ctx context.Context, userA, userB string) (*models.Conversation, error)

	// Append durably stores a new message and returns it with the
	// store-assigned id and timestamp, so callers broadcast exactly what
	// was persisted.
	Append(ctx context.Context, conversationID, senderID, body string) (*models.Message, error)

	// History returns the full ordered message log for the pair with each
	// sender resolved to minimal public profile fields. A pair with no
	// conversation yields an empty message list; history never creates.
	History(ctx context.Context, userA, userB string) (*models.ChatResponse, error)
}

// normalizePair sorts two identities so the pair has one canonical
// representation. Storage, lookup and the room id all share this order,
// which is why a single-keyed query covers both orderings of the input.
func normalizePair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

type PgConversationStore struct {
	pool *pgxpool.Pool
}

func NewPgConversationStore(pool *pgxpool.Pool) *PgConversationStore {
	return &PgConversationStore{pool: pool}
}

func (s *PgConversationStore) FindOrCreate(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	a, b := normalizePair(userA, userB)

	conv, err := s.lookup(ctx, a, b)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// First contact. The UNIQUE (user_a, user_b) constraint arbitrates
	// concurrent creators: the loser's insert returns no row and we read
	// the winner back instead.
	conv = &models.Conversation{}
	var ua, ub string
	err = s.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, user_a, user_b) VALUES ($1, $2, $3)
		ON CONFLICT (user_a, user_b) DO NOTHING
		RETURNING id, user_a, user_b, created_at
	`, uuid.New().String(), a, b).Scan(&conv.ID, &ua, &ub, &conv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.lookup(ctx, a, b)
	}
	if err != nil {
		return nil, err
	}
	conv.Participants = []string{ua, ub}
	return conv, nil
}

func (s *PgConversationStore) lookup(ctx context.Context, a, b string) (*models.Conversation, error) {
	conv := &models.Conversation{}
	var ua, ub string
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_a, user_b, created_at FROM conversations
		WHERE user_a = $1 AND user_b = $2
	`, a, b).Scan(&conv.ID, &ua, &ub, &conv.CreatedAt)
	if err != nil {
		return nil, err
	}
	conv.Participants = []string{ua, ub}
	return conv, nil
}

func (s *PgConversationStore) Append(ctx context.Context, conversationID, senderID, body string) (*models.Message, error) {
	if body == "" {
		return nil, ErrEmptyMessage
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, sender_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, seen, created_at
	`, conversationID, senderID, body).Scan(&msg.ID, &msg.Seen, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *PgConversationStore) History(ctx context.Context, userA, userB string) (*models.ChatResponse, error) {
	a, b := normalizePair(userA, userB)

	resp := &models.ChatResponse{
		Participants: []string{a, b},
		Messages:     []models.HistoryMessage{},
	}

	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.body, m.seen, m.created_at,
		       u.id, u.first_name, u.last_name, u.avatar
		FROM conversations c
		JOIN messages m ON m.conversation_id = c.id
		JOIN users u ON u.id = m.sender_id
		WHERE c.user_a = $1 AND c.user_b = $2
		ORDER BY m.id
	`, a, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item models.HistoryMessage
		var createdAt time.Time
		if err := rows.Scan(&item.ID, &item.Message, &item.Seen, &createdAt,
			&item.Sender.ID, &item.Sender.FirstName, &item.Sender.LastName, &item.Sender.Avatar); err != nil {
			return nil, err
		}
		item.Timestamp = createdAt.UnixMilli()
		resp.Messages = append(resp.Messages, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}
