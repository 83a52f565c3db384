package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix    = "larder:idempotency:"
	pendingValue = "pending"
)

// IdempotencyStore remembers which order a client request key produced.
// Acquire claims a key; the first caller gets ok=true and must later call
// Complete or Release. Later callers see the stored order ID, or 0 while the
// first request is still running.
type IdempotencyStore interface {
	Acquire(ctx context.Context, key string) (orderID uint, ok bool, err error)
	Complete(ctx context.Context, key string, orderID uint) error
	Release(ctx context.Context, key string) error
}

type RedisIdempotencyStore struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewIdempotencyStore(client *goredis.Client, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

func (s *RedisIdempotencyStore) Acquire(ctx context.Context, key string) (uint, bool, error) {
	acquired, err := s.client.SetNX(ctx, keyPrefix+key, pendingValue, s.ttl).Result()
	if err != nil {
		return 0, false, fmt.Errorf("claiming idempotency key: %w", err)
	}
	if acquired {
		return 0, true, nil
	}

	value, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		// Expired between SETNX and GET; treat as still in flight.
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading idempotency key: %w", err)
	}
	if value == pendingValue {
		return 0, false, nil
	}

	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt idempotency value %q: %w", value, err)
	}
	return uint(id), false, nil
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, key string, orderID uint) error {
	value := strconv.FormatUint(uint64(orderID), 10)
	if err := s.client.Set(ctx, keyPrefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("storing idempotency result: %w", err)
	}
	return nil
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("releasing idempotency key: %w", err)
	}
	return nil
}

// NoopIdempotencyStore is used when redis is disabled. Every request is
// treated as new; the orders.idempotency_key unique index still rejects
// replays.
type NoopIdempotencyStore struct{}

func (NoopIdempotencyStore) Acquire(context.Context, string) (uint, bool, error) { return 0, true, nil }
func (NoopIdempotencyStore) Complete(context.Context, string, uint) error { return nil }
func (NoopIdempotencyStore) Release(context.Context, string) error { return nil }
