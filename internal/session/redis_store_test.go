package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"renoquote/api/internal/quote"
	"renoquote/api/internal/store"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	rs, err := NewRedisStore("redis://"+s.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return rs, s
}

func TestNewRedisStore(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	rs, err := NewRedisStore("redis://"+s.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer rs.Close()

	ctx := context.Background()
	if err := rs.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestSaveAndLookupSession(t *testing.T) {
	rs, s := setupTestRedis(t)
	defer rs.Close()
	defer s.Close()

	ctx := context.Background()
	sess := quote.ReviewSession{
		QuoteID:        "qt_abc123",
		ContractorID:   "ct_1",
		ThreadID:       "thread-42",
		State:          quote.StateReviewing,
		CurrentVersion: 1,
	}

	if err := rs.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	got, err := rs.ActiveSessionByThread(ctx, "thread-42")
	if err != nil {
		t.Fatalf("ActiveSessionByThread failed: %v", err)
	}
	if got.QuoteID != "qt_abc123" {
		t.Errorf("expected quote qt_abc123, got %s", got.QuoteID)
	}
	if got.State != quote.StateReviewing {
		t.Errorf("expected state %s, got %s", quote.StateReviewing, got.State)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set on save")
	}
}

func TestPendingChangesRoundTrip(t *testing.T) {
	rs, s := setupTestRedis(t)
	defer rs.Close()
	defer s.Close()

	ctx := context.Background()
	sess := quote.ReviewSession{
		QuoteID:        "qt_abc123",
		ThreadID:       "thread-42",
		State:          quote.StateConfirming,
		CurrentVersion: 2,
		PendingChanges: []quote.EditCommand{
			{Type: quote.CommandChangePrice, Target: "toilet", NewPrice: 650, Confidence: 0.95},
		},
	}

	if err := rs.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	got, err := rs.ActiveSessionByThread(ctx, "thread-42")
	if err != nil {
		t.Fatalf("ActiveSessionByThread failed: %v", err)
	}
	if len(got.PendingChanges) != 1 {
		t.Fatalf("expected 1 pending change, got %d", len(got.PendingChanges))
	}
	if got.PendingChanges[0].NewPrice != 650 {
		t.Errorf("expected new price 650, got %v", got.PendingChanges[0].NewPrice)
	}
}

func TestExpiredSession(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	rs, err := NewRedisStore("redis://"+s.Addr(), time.Millisecond)
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer rs.Close()

	ctx := context.Background()
	sess := quote.ReviewSession{QuoteID: "qt_x", ThreadID: "stale-thread", State: quote.StateReviewing}
	if err := rs.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	// Fast-forward time in miniredis
	s.FastForward(2 * time.Millisecond)

	_, err = rs.ActiveSessionByThread(ctx, "stale-thread")
	if !errors.Is(err, store.ErrNoActiveSession) {
		t.Errorf("expected ErrNoActiveSession for expired session, got %v", err)
	}
}

func TestLookupNonExistentSession(t *testing.T) {
	rs, s := setupTestRedis(t)
	defer rs.Close()
	defer s.Close()

	_, err := rs.ActiveSessionByThread(context.Background(), "no-such-thread")
	if !errors.Is(err, store.ErrNoActiveSession) {
		t.Errorf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestFinalizeSession(t *testing.T) {
	rs, s := setupTestRedis(t)
	defer rs.Close()
	defer s.Close()

	ctx := context.Background()
	sess := quote.ReviewSession{
		QuoteID:        "qt_abc123",
		ThreadID:       "thread-done",
		State:          quote.StateConfirming,
		CurrentVersion: 3,
		PendingChanges: []quote.EditCommand{{Type: quote.CommandRemoveItem, Target: "vanity"}},
	}
	if err := rs.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	if err := rs.FinalizeSession(ctx, "thread-done"); err != nil {
		t.Fatalf("FinalizeSession failed: %v", err)
	}

	_, err := rs.ActiveSessionByThread(ctx, "thread-done")
	if !errors.Is(err, store.ErrNoActiveSession) {
		t.Errorf("expected ErrNoActiveSession after finalize, got %v", err)
	}

	// Finalizing twice reports no active session.
	if err := rs.FinalizeSession(ctx, "thread-done"); !errors.Is(err, store.ErrNoActiveSession) {
		t.Errorf("expected ErrNoActiveSession on double finalize, got %v", err)
	}
}
