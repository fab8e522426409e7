package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"guidena-backend/internal/models"
)

// MemoryConversationStore is an in-memory ConversationStore used by tests
// and local development without a database. It enforces the same
// uniqueness-per-pair guarantee as the Postgres store, just with a mutex
// instead of a constraint.
type MemoryConversationStore struct {
	mu       sync.Mutex
	convs    map[string]*memoryConversation // normalized "a|b" -> conversation
	byID     map[string]*memoryConversation
	profiles map[string]models.SenderProfile
	nextID   int64
}

type memoryConversation struct {
	conv     models.Conversation
	messages []models.Message
}

func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{
		convs:    make(map[string]*memoryConversation),
		byID:     make(map[string]*memoryConversation),
		profiles: make(map[string]models.SenderProfile),
	}
}

// SeedProfile registers the public profile returned for senderID in
// History results. Unknown senders fall back to a bare id.
func (s *MemoryConversationStore) SeedProfile(p models.SenderProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

func (s *MemoryConversationStore) FindOrCreate(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	a, b := normalizePair(userA, userB)
	key := a + "|" + b

	s.mu.Lock()
	defer s.mu.Unlock()

	mc, ok := s.convs[key]
	if !ok {
		mc = &memoryConversation{
			conv: models.Conversation{
				ID:           uuid.New().String(),
				Participants: []string{a, b},
				CreatedAt:    time.Now(),
			},
		}
		s.convs[key] = mc
		s.byID[mc.conv.ID] = mc
	}

	conv := mc.conv
	conv.Participants = append([]string(nil), mc.conv.Participants...)
	return &conv, nil
}

func (s *MemoryConversationStore) Append(ctx context.Context, conversationID, senderID, body string) (*models.Message, error) {
	if body == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mc, ok := s.byID[conversationID]
	if !ok {
		return nil, ErrConversationNotFound
	}

	s.nextID++
	msg := models.Message{
		ID:             s.nextID,
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		Seen:           false,
		CreatedAt:      time.Now(),
	}
	mc.messages = append(mc.messages, msg)

	out := msg
	return &out, nil
}

func (s *MemoryConversationStore) History(ctx context.Context, userA, userB string) (*models.ChatResponse, error) {
	a, b := normalizePair(userA, userB)

	s.mu.Lock()
	defer s.mu.Unlock()

	resp := &models.ChatResponse{
		Participants: []string{a, b},
		Messages:     []models.HistoryMessage{},
	}

	mc, ok := s.convs[a+"|"+b]
	if !ok {
		return resp, nil
	}

	for _, m := range mc.messages {
		sender, ok := s.profiles[m.SenderID]
		if !ok {
			sender = models.SenderProfile{ID: m.SenderID}
		}
		resp.Messages = append(resp.Messages, models.HistoryMessage{
			ID:        m.ID,
			Message:   m.Body,
			Sender:    sender,
			Seen:      m.Seen,
			Timestamp: m.CreatedAt.UnixMilli(),
		})
	}
	return resp, nil
}
