package config

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// InitRedis اتصال به Redis را راه‌اندازی می‌کند
func InitRedis(ctx context.Context, cfg *Config, log *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// بررسی اتصال به Redis
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
	}
	log.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))
	return client, nil
}
