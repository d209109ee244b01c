package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/TopThisHat/storytopia-api/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates a Redis client with sensible defaults and
// verifies the connection before returning it.
func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	opt := &redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}

	return client, nil
}
