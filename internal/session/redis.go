package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rental-agent/internal/redisx"
)

// RedisStore is the production session store. Expiry is the store's
// eviction policy: every Put refreshes the TTL.
type RedisStore struct {
	RDB *redis.Client
	TTL time.Duration
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	key := fmt.Sprintf(redisx.KeySession, id)
	raw, err := r.RDB.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(id), nil
	}
	if err != nil {
		return nil, fmt.Errorf("session get: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		// Corrupt state is dropped, not fatal; the conversation restarts.
		return New(id), nil
	}
	return &s, nil
}

func (r *RedisStore) Put(ctx context.Context, s *Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session marshal: %w", err)
	}
	key := fmt.Sprintf(redisx.KeySession, s.ID)
	if err := r.RDB.Set(ctx, key, b, r.TTL).Err(); err != nil {
		return fmt.Errorf("session put: %w", err)
	}
	return nil
}
