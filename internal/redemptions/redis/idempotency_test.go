package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a Redis client backed by miniredis
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, client.Ping(context.Background()).Err())

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestRemember_FirstWriterWins(t *testing.T) {
	client, _ := setupTestRedis(t)
	s := NewIdempotencyStore(client, time.Hour)
	ctx := context.Background()

	ok, err := s.Remember(ctx, "key-1", "ABCDE")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Remember(ctx, "key-1", "ZZZZZ")
	require.NoError(t, err)
	assert.False(t, ok)

	code, err := s.Lookup(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "ABCDE", code)
}

func TestLookup_UnknownKey(t *testing.T) {
	client, _ := setupTestRedis(t)
	s := NewIdempotencyStore(client, time.Hour)

	code, err := s.Lookup(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, code)
}

func TestRemember_KeyExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	s := NewIdempotencyStore(client, time.Minute)
	ctx := context.Background()

	_, err := s.Remember(ctx, "key-1", "ABCDE")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	code, err := s.Lookup(ctx, "key-1")
	require.NoError(t, err)
	assert.Empty(t, code)
}

func TestLookup_ServerDownIsUnexpected(t *testing.T) {
	client, mr := setupTestRedis(t)
	s := NewIdempotencyStore(client, time.Minute)
	mr.Close()

	_, err := s.Lookup(context.Background(), "key-1")
	assert.Error(t, err)
}
