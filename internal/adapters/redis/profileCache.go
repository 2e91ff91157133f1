package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chirp/internal/core/profile"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ProfileCacheRedis keeps resolved author profiles as JSON strings.
type ProfileCacheRedis struct {
	Client *redis.Client
	Prefix string
	Logger *zap.Logger
}

func NewProfileCacheRedis(client *redis.Client, logger *zap.Logger) *ProfileCacheRedis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileCacheRedis{Client: client, Prefix: "profile:", Logger: logger}
}

func (c *ProfileCacheRedis) GetMany(ctx context.Context, ids []string) (map[string]profile.AuthorProfile, error) {
	out := make(map[string]profile.AuthorProfile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.Prefix + id
	}

	vals, err := c.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("profile cache mget: %w", err)
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var p profile.AuthorProfile
		if err := json.Unmarshal([]byte(s), &p); err != nil || p.ID != ids[i] {
			c.Logger.Warn("discarding corrupt profile cache entry", zap.String("key", keys[i]))
			continue
		}
		out[ids[i]] = p
	}
	return out, nil
}

func (c *ProfileCacheRedis) SetMany(ctx context.Context, profiles []profile.AuthorProfile, ttl time.Duration) error {
	if len(profiles) == 0 {
		return nil
	}
	_, err := c.Client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range profiles {
			b, err := json.Marshal(p)
			if err != nil {
				return err
			}
			pipe.Set(ctx, c.Prefix+p.ID, b, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("profile cache set: %w", err)
	}
	return nil
}
