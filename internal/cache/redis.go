package cache

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "travelbuddy:throttle:"

// RedisThrottle is a Throttle shared across replicas through SET NX PX.
type RedisThrottle struct {
	client *redis.Client
}

var _ Throttle = (*RedisThrottle)(nil)

// NewRedisThrottle connects to the Redis instance at url and verifies it with a ping.
func NewRedisThrottle(ctx context.Context, url string) (*RedisThrottle, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RedisThrottle{client: c}, nil
}

func (r *RedisThrottle) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}
	ok, err := r.client.SetNX(ctx, keyPrefix+key, 1, window).Result()
	if err != nil {
		return false, fmt.Errorf("redis: setnx %s: %w", key, err)
	}
	return ok, nil
}

func (r *RedisThrottle) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis: del %s: %w", key, err)
	}
	return nil
}

func (r *RedisThrottle) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisThrottle) Close() error {
	return r.client.Close()
}
