package notify

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard makes the email leg at-most-once per key across retries.
type Guard interface {
	// Acquire returns false when key was already taken.
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

const guardPrefix = "email-sent:"

type RedisGuard struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisGuard(client redis.Cmdable, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (bool, error) {
	return g.client.SetNX(ctx, guardPrefix+key, "1", g.ttl).Result()
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	return g.client.Del(ctx, guardPrefix+key).Err()
}
