package grant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"faucetd/internal/faucet"
	"faucetd/pkg/platform/sentinel"
)

const grantKeyPrefix = "faucet:grant:"

// RedisStore keeps claim grants as TTL'd keys. The key expires after the
// claim window, so a missing key means "outside the window" and reads plus
// the window check converge naturally across instances. The recorded value is the
// grant timestamp (RFC 3339 nanos) so callers still get exact times while the
// key lives.
type RedisStore struct {
	client *redis.Client
	window time.Duration
}

// NewRedis constructs a Redis-backed grant store. window is the claim window;
// records expire once they can no longer deny a claim.
func NewRedis(client *redis.Client, window time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if window <= 0 {
		return nil, fmt.Errorf("claim window must be positive")
	}
	return &RedisStore{client: client, window: window}, nil
}

func (s *RedisStore) LastGrant(ctx context.Context, addr faucet.Address) (*time.Time, error) {
	val, err := s.client.Get(ctx, grantKeyPrefix+addr.String()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last grant: %w: %w", sentinel.ErrUnavailable, err)
	}
	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return nil, fmt.Errorf("parse stored grant time: %w", err)
	}
	return &t, nil
}

func (s *RedisStore) RecordGrant(ctx context.Context, addr faucet.Address, grantedAt time.Time) error {
	key := grantKeyPrefix + addr.String()
	if err := s.client.Set(ctx, key, grantedAt.Format(time.RFC3339Nano), s.window).Err(); err != nil {
		return fmt.Errorf("record grant: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) PurgeGrant(ctx context.Context, addr faucet.Address) error {
	deleted, err := s.client.Del(ctx, grantKeyPrefix+addr.String()).Result()
	if err != nil {
		return fmt.Errorf("purge grant: %w: %w", sentinel.ErrUnavailable, err)
	}
	if deleted == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
