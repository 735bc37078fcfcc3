// Package session provides storage backends for active quote review sessions.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"renoquote/api/internal/quote"
	"renoquote/api/internal/store"
)

// RedisStore keeps review sessions in Redis keyed by conversation thread.
// Sessions expire after the configured TTL so an abandoned review does not
// block the thread forever.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a new Redis-backed review session store
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{
		client: client,
		prefix: "review:",
		ttl:    ttl,
	}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "review:",
		ttl:    ttl,
	}
}

func (s *RedisStore) key(threadID string) string {
	return s.prefix + threadID
}

// SaveSession stores the session for its thread, refreshing the TTL.
func (s *RedisStore) SaveSession(ctx context.Context, sess quote.ReviewSession) error {
	sess.UpdatedAt = time.Now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = sess.UpdatedAt
	}

	jsonData, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := s.ttl
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	if err := s.client.Set(ctx, s.key(sess.ThreadID), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// ActiveSessionByThread returns the non-finalized session for a thread.
// Expired or finalized sessions report store.ErrNoActiveSession.
func (s *RedisStore) ActiveSessionByThread(ctx context.Context, threadID string) (quote.ReviewSession, error) {
	jsonData, err := s.client.Get(ctx, s.key(threadID)).Result()
	if err == redis.Nil {
		return quote.ReviewSession{}, store.ErrNoActiveSession
	}
	if err != nil {
		return quote.ReviewSession{}, fmt.Errorf("lookup session: %w", err)
	}

	var sess quote.ReviewSession
	if err := json.Unmarshal([]byte(jsonData), &sess); err != nil {
		return quote.ReviewSession{}, fmt.Errorf("unmarshal session: %w", err)
	}
	if sess.State == quote.StateFinalized {
		return quote.ReviewSession{}, store.ErrNoActiveSession
	}
	return sess, nil
}

// FinalizeSession marks the session finalized. The record is kept until its
// TTL runs out so a late "thanks" in the thread does not start a new review.
func (s *RedisStore) FinalizeSession(ctx context.Context, threadID string) error {
	sess, err := s.ActiveSessionByThread(ctx, threadID)
	if err != nil {
		return err
	}
	sess.State = quote.StateFinalized
	sess.PendingChanges = nil
	return s.SaveSession(ctx, sess)
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
