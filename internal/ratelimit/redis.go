package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares the submit window between server instances. A key exists for
// Gap after an accepted attempt; SET NX fails while it is present.
type Redis struct {
	Client *redis.Client
	Gap    time.Duration
	Prefix string
}

func NewRedis(addr, password string, db int, gap time.Duration) *Redis {
	return &Redis{
		Client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		Gap:    gap,
		Prefix: "citifix:submit:",
	}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	if r.Gap <= 0 {
		return true, nil
	}
	ok, err := r.Client.SetNX(ctx, r.Prefix+key, time.Now().UnixMilli(), r.Gap).Result()
	if err != nil {
		return false, fmt.Errorf("redis limiter: %w", err)
	}
	return ok, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.Client.Close()
}
