package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"companydir/internal/config"
)

// NewRedis opens a Redis client and pings it. The caller owns the client.
func NewRedis(ctx context.Context, c config.RedisConfig, timeout time.Duration) (*redis.Client, error) {
	if c.Addr == "" {
		return nil, fmt.Errorf("invalid redis config: addr is required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return rdb, nil
}
