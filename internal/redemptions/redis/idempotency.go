package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-deals/internal/errs"
)

const keyPrefix = "confirm_idem:"

// IdempotencyStore remembers which code a confirm Idempotency-Key was used for.
type IdempotencyStore struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{Client: client, TTL: ttl}
}

// Remember binds key to code unless the key is already bound. It reports whether this call set it.
func (s *IdempotencyStore) Remember(ctx context.Context, key, code string) (bool, error) {
	ok, err := s.Client.SetNX(ctx, keyPrefix+key, code, s.TTL).Result()
	if err != nil {
		return false, errs.Unexpected(err, "remember idempotency key")
	}
	return ok, nil
}

// Lookup returns the code bound to key, or "" when the key is unknown or expired.
func (s *IdempotencyStore) Lookup(ctx context.Context, key string) (string, error) {
	code, err := s.Client.Get(ctx, keyPrefix+key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", errs.Unexpected(err, "lookup idempotency key")
	}
	return code, nil
}
