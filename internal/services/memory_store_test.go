package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guidena-backend/internal/models"
)

func TestFindOrCreateIsOrderIndependent(t *testing.T) {
	store := NewMemoryConversationStore()
	ctx := context.Background()

	first, err := store.FindOrCreate(ctx, "u2", "u1")
	require.NoError(t, err)
	second, err := store.FindOrCreate(ctx, "u1", "u2")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "both orderings of the pair resolve to one conversation")
	assert.Equal(t, []string{"u1", "u2"}, first.Participants)
}

func TestAppendThenHistory(t *testing.T) {
	store := NewMemoryConversationStore()
	store.SeedProfile(models.SenderProfile{ID: "u1", FirstName: "Alice", Avatar: "a.png"})
	ctx := context.Background()

	conv, err := store.FindOrCreate(ctx, "u1", "u2")
	require.NoError(t, err)

	before := time.Now()
	msg, err := store.Append(ctx, conv.ID, "u1", "hello")
	require.NoError(t, err)
	assert.False(t, msg.Seen, "messages start unseen")
	assert.False(t, msg.CreatedAt.Before(before))

	hist, err := store.History(ctx, "u2", "u1")
	require.NoError(t, err)
	require.Len(t, hist.Messages, 1)
	assert.Equal(t, "hello", hist.Messages[0].Message)
	assert.Equal(t, "Alice", hist.Messages[0].Sender.FirstName)
	assert.GreaterOrEqual(t, hist.Messages[0].Timestamp, before.UnixMilli())
}

func TestAppendRejectsEmptyBody(t *testing.T) {
	store := NewMemoryConversationStore()
	conv, err := store.FindOrCreate(context.Background(), "u1", "u2")
	require.NoError(t, err)

	_, err = store.Append(context.Background(), conv.ID, "u1", "")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestAppendUnknownConversation(t *testing.T) {
	store := NewMemoryConversationStore()
	_, err := store.Append(context.Background(), "missing", "u1", "hello")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestHistoryNeverCreatesConversation(t *testing.T) {
	store := NewMemoryConversationStore()

	hist, err := store.History(context.Background(), "u2", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, hist.Participants)
	assert.Empty(t, hist.Messages)

	// Still no conversation afterward: a later first message creates it.
	hist, err = store.History(context.Background(), "u1", "u2")
	require.NoError(t, err)
	assert.Empty(t, hist.Messages)
}

func TestConcurrentFirstContactConvergesOnOneConversation(t *testing.T) {
	store := NewMemoryConversationStore()
	ctx := context.Background()

	// Both participants send their first message at the same moment, each
	// with their own ordering of the pair.
	var wg sync.WaitGroup
	errs := make(chan error, 4)
	send := func(sender, receiver, body string) {
		defer wg.Done()
		conv, err := store.FindOrCreate(ctx, sender, receiver)
		if err != nil {
			errs <- err
			return
		}
		if _, err := store.Append(ctx, conv.ID, sender, body); err != nil {
			errs <- err
		}
	}

	wg.Add(2)
	go send("u1", "u2", "hi from u1")
	go send("u2", "u1", "hi from u2")
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	hist, err := store.History(ctx, "u1", "u2")
	require.NoError(t, err)
	require.Len(t, hist.Messages, 2, "both first-contact messages land in the single conversation")

	// Store-assigned order is deterministic: ids are strictly increasing.
	assert.Less(t, hist.Messages[0].ID, hist.Messages[1].ID)

	senders := map[string]bool{}
	for _, m := range hist.Messages {
		senders[m.Sender.ID] = true
	}
	assert.Len(t, senders, 2)
}

func TestPerSenderOrderIsAppendOrder(t *testing.T) {
	store := NewMemoryConversationStore()
	ctx := context.Background()

	conv, err := store.FindOrCreate(ctx, "u1", "u2")
	require.NoError(t, err)

	bodies := []string{"one", "two", "three"}
	for _, b := range bodies {
		_, err := store.Append(ctx, conv.ID, "u1", b)
		require.NoError(t, err)
	}

	hist, err := store.History(ctx, "u1", "u2")
	require.NoError(t, err)
	require.Len(t, hist.Messages, 3)
	for i, b := range bodies {
		assert.Equal(t, b, hist.Messages[i].Message)
	}
}
