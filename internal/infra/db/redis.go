package db

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/config"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis は REDIS_ADDR のクライアントを作り、PINGで疎通を確認する。
func ConnectRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}
