package services

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnectionChecker answers whether two users are allowed to chat. The
// mentorship request workflow that writes these rows lives outside this
// service; the chat layer only consults the outcome, on both the history
// endpoint and the real-time join path.
type ConnectionChecker interface {
	HasAcceptedConnection(ctx context.Context, userA, userB string) (bool, error)
}

type PgMentorshipService struct {
	pool *pgxpool.Pool
}

func NewPgMentorshipService(pool *pgxpool.Pool) *PgMentorshipService {
	return &PgMentorshipService{pool: pool}
}

func (s *PgMentorshipService) HasAcceptedConnection(ctx context.Context, userA, userB string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM mentorships
			WHERE status = 'accepted'
			AND ((mentor_id = $1 AND mentee_id = $2) OR (mentor_id = $2 AND mentee_id = $1))
		)
	`, userA, userB).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
