package services

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PresenceStore persists online/offline transitions to the user record.
type PresenceStore interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string, lastSeen time.Time) error
}

type PgPresenceStore struct {
	pool *pgxpool.Pool
}

func NewPgPresenceStore(pool *pgxpool.Pool) *PgPresenceStore {
	return &PgPresenceStore{pool: pool}
}

func (s *PgPresenceStore) SetOnline(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET is_online = TRUE WHERE id = $1`, userID)
	return err
}

func (s *PgPresenceStore) SetOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET is_online = FALSE, last_seen = $2 WHERE id = $1`, userID, lastSeen)
	return err
}

// PresenceTracker reflects connection-registry occupancy into the durable
// user record. Presence is a soft signal: a failed write is logged and
// swallowed so it can never block or fail message delivery.
type PresenceTracker struct {
	store PresenceStore
	log   zerolog.Logger
}

func NewPresenceTracker(store PresenceStore, log zerolog.Logger) *PresenceTracker {
	return &PresenceTracker{store: store, log: log}
}

// MarkOnline is called when a user's first connection joins.
func (t *PresenceTracker) MarkOnline(ctx context.Context, userID string) {
	if err := t.store.SetOnline(ctx, userID); err != nil {
		t.log.Warn().Err(err).Str("user_id", userID).Msg("failed to mark user online")
	}
}

// MarkOffline is called when a user's last connection closes. It records
// the moment of that closure as last-seen.
func (t *PresenceTracker) MarkOffline(ctx context.Context, userID string) {
	if err := t.store.SetOffline(ctx, userID, time.Now()); err != nil {
		t.log.Warn().Err(err).Str("user_id", userID).Msg("failed to mark user offline")
	}
}
