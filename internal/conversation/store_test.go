package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStoreWithClient(client, ttl), mr
}

func TestAppendAndHistoryOrder(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	msgs := []Message{
		{Role: RoleUser, Content: "first", Timestamp: 1},
		{Role: RoleBot, Content: "second", Timestamp: 2},
		{Role: RoleUser, Content: "third", Timestamp: 3},
	}
	for _, m := range msgs {
		require.NoError(t, store.Append(ctx, "s1", m))
	}

	history, err := store.History(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, msgs, history)
}

func TestHistoryMissingSession(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)

	history, err := store.History(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSessionsAreIsolated(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "alice", NewMessage(RoleUser, "hi")))
	require.NoError(t, store.Append(ctx, "bob", NewMessage(RoleUser, "yo")))

	aliceHistory, err := store.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, aliceHistory, 1)
	assert.Equal(t, "hi", aliceHistory[0].Content)
}

func TestAppendRefreshesTTL(t *testing.T) {
	store, mr := newTestStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", NewMessage(RoleUser, "hello")))

	// Just before expiry another append must slide the window forward.
	mr.FastForward(59 * time.Minute)
	require.NoError(t, store.Append(ctx, "s1", NewMessage(RoleBot, "hi there")))

	// Past the original expiry the session is still alive.
	mr.FastForward(30 * time.Minute)
	history, err := store.History(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	// A full idle TTL after the last append, it is gone.
	mr.FastForward(time.Hour)
	history, err = store.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestClear(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", NewMessage(RoleUser, "hello")))
	require.NoError(t, store.Clear(ctx, "s1"))

	history, err := store.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history)

	// Idempotent on a session that no longer exists.
	require.NoError(t, store.Clear(ctx, "s1"))
}

func TestNewRedisStoreBadURL(t *testing.T) {
	_, err := NewRedisStore("not-a-url", time.Hour)
	require.Error(t, err)
}
