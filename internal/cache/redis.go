package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tablewise/backend/internal/models"
)

// Redis backs the result cache with a shared Redis instance so that multiple
// replicas see the same entries and a single invalidation. Values are JSON;
// expiry rides on the key TTL. Redis errors degrade to cache misses, never
// to query failures.
type Redis struct {
	Client *redis.Client
	TTL    time.Duration
	Prefix string
	Logger zerolog.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Redis {
	return &Redis{Client: client, TTL: ttl, Prefix: "tablewise:", Logger: logger}
}

func (r *Redis) Get(ctx context.Context, key string) (models.AggregatedMetrics, bool) {
	b, err := r.Client.Get(ctx, r.Prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.Logger.Warn().Err(err).Msg("redis cache read failed")
		}
		return models.AggregatedMetrics{}, false
	}
	var value models.AggregatedMetrics
	if err := json.Unmarshal(b, &value); err != nil {
		r.Logger.Warn().Err(err).Str("key", key).Msg("redis cache entry corrupt, dropping")
		_ = r.Client.Del(ctx, r.Prefix+key).Err()
		return models.AggregatedMetrics{}, false
	}
	return value, true
}

func (r *Redis) Set(ctx context.Context, key string, value models.AggregatedMetrics) {
	b, err := json.Marshal(value)
	if err != nil {
		r.Logger.Warn().Err(err).Msg("redis cache marshal failed")
		return
	}
	if err := r.Client.Set(ctx, r.Prefix+key, b, r.TTL).Err(); err != nil {
		r.Logger.Warn().Err(err).Msg("redis cache write failed")
	}
}

// Invalidate deletes every key under the prefix. SCAN keeps the operation
// incremental on large keyspaces.
func (r *Redis) Invalidate(ctx context.Context) {
	iter := r.Client.Scan(ctx, 0, r.Prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.Client.Del(ctx, iter.Val()).Err(); err != nil {
			r.Logger.Warn().Err(err).Str("key", iter.Val()).Msg("redis cache delete failed")
		}
	}
	if err := iter.Err(); err != nil {
		r.Logger.Warn().Err(err).Msg("redis cache scan failed")
	}
}
