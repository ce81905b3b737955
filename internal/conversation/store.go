// Package conversation persists per-session chat history in Redis.
//
// A session is an opaque caller-supplied id with no existence record beyond
// its message log: the first append creates it, every append refreshes its
// TTL (sliding-window expiry), and a missing or expired session reads back
// as an empty history.
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Message roles.
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// DefaultSessionTTL is the inactivity window after which a session expires.
const DefaultSessionTTL = 24 * time.Hour

const keyPrefix = "chat:"

// Message is a single chat turn in a session's log.
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// NewMessage builds a message stamped with the current wall clock.
func NewMessage(role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Store is the capability the orchestrator needs from a conversation log.
type Store interface {
	Append(ctx context.Context, sessionID string, msg Message) error
	History(ctx context.Context, sessionID string) ([]Message, error)
	Clear(ctx context.Context, sessionID string) error
}

// RedisStore implements Store on a Redis list per session.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a store from a Redis URL
// (e.g. redis://localhost:6379).
func NewRedisStore(url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return NewRedisStoreWithClient(redis.NewClient(opts), ttl), nil
}

// NewRedisStoreWithClient wraps an existing client. Useful in tests.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Ping verifies the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Append appends msg to the session's log and resets the log's expiry to the
// full TTL. Every append slides the expiry window forward.
func (s *RedisStore) Append(ctx context.Context, sessionID string, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	key := keyPrefix + sessionID
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, raw)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("appending to session %s: %w", sessionID, err)
	}
	return nil
}

// History returns the session's messages oldest first. A missing or expired
// session yields an empty slice, never an error.
func (s *RedisStore) History(ctx context.Context, sessionID string) ([]Message, error) {
	raw, err := s.client.LRange(ctx, keyPrefix+sessionID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading session %s: %w", sessionID, err)
	}

	messages := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decoding message in session %s: %w", sessionID, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Clear deletes the session's log. Clearing a nonexistent session is not an
// error.
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("clearing session %s: %w", sessionID, err)
	}
	return nil
}
