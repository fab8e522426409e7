package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type stubPresenceStore struct {
	onlineCalls  int
	offlineCalls int
	lastSeen     time.Time
	err          error
}

func (s *stubPresenceStore) SetOnline(context.Context, string) error {
	s.onlineCalls++
	return s.err
}

func (s *stubPresenceStore) SetOffline(_ context.Context, _ string, lastSeen time.Time) error {
	s.offlineCalls++
	s.lastSeen = lastSeen
	return s.err
}

func TestMarkOfflineRecordsLastSeen(t *testing.T) {
	store := &stubPresenceStore{}
	tracker := NewPresenceTracker(store, zerolog.Nop())

	before := time.Now()
	tracker.MarkOffline(context.Background(), "u1")

	if store.offlineCalls != 1 {
		t.Fatalf("offline calls = %d, want 1", store.offlineCalls)
	}
	if store.lastSeen.Before(before) {
		t.Errorf("last seen %v is before the disconnect at %v", store.lastSeen, before)
	}
}

func TestPresenceWriteFailuresAreSwallowed(t *testing.T) {
	store := &stubPresenceStore{err: errors.New("store unavailable")}
	tracker := NewPresenceTracker(store, zerolog.Nop())

	// Neither call may panic or propagate the error; presence is
	// best-effort by contract.
	tracker.MarkOnline(context.Background(), "u1")
	tracker.MarkOffline(context.Background(), "u1")

	if store.onlineCalls != 1 || store.offlineCalls != 1 {
		t.Errorf("store calls = (%d, %d), want (1, 1)", store.onlineCalls, store.offlineCalls)
	}
}
