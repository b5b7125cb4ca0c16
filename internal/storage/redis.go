package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/strava-board/internal/config"
	"github.com/strava-board/internal/types"
)

// RedisCache wraps the Redis client and provides leaderboard caching
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a new Redis cache connection
func NewRedisCache(cfg *config.RedisConfig, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.MaxConnections,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

// NewRedisCacheWithClient wraps an existing client. Used by tests with an
// in-memory Redis.
func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Client returns the underlying Redis client
func (r *RedisCache) Client() *redis.Client {
	return r.client
}

// Ping checks if Redis is reachable
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Set sets a key-value pair with the configured TTL
func (r *RedisCache) Set(ctx context.Context, key string, value interface{}) error {
	return r.client.Set(ctx, key, value, r.ttl).Err()
}

// Get retrieves a value by key
func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

// Del deletes one or more keys
func (r *RedisCache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// leaderboardKey builds the cache key for one club-year leaderboard
func leaderboardKey(clubSlug string, year int) string {
	return fmt.Sprintf("leaderboard:%s:%d", clubSlug, year)
}

// GetLeaderboard retrieves a cached leaderboard. The second return value is
// false on a cache miss.
func (r *RedisCache) GetLeaderboard(ctx context.Context, clubSlug string, year int) ([]types.MonthLeaderboard, bool, error) {
	data, err := r.client.Get(ctx, leaderboardKey(clubSlug, year)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached leaderboard: %w", err)
	}

	var board []types.MonthLeaderboard
	if err := json.Unmarshal(data, &board); err != nil {
		// Drop an unreadable entry rather than serving it
		_ = r.Del(ctx, leaderboardKey(clubSlug, year))
		return nil, false, nil
	}

	return board, true, nil
}

// SetLeaderboard caches a computed leaderboard, month blocks oldest first
func (r *RedisCache) SetLeaderboard(ctx context.Context, clubSlug string, year int, board []types.MonthLeaderboard) error {
	data, err := json.Marshal(board)
	if err != nil {
		return fmt.Errorf("failed to marshal leaderboard: %w", err)
	}
	return r.client.Set(ctx, leaderboardKey(clubSlug, year), data, r.ttl).Err()
}

// InvalidateLeaderboards drops every cached leaderboard. Called after a sync
// or reclassification changes the underlying runs.
func (r *RedisCache) InvalidateLeaderboards(ctx context.Context) error {
	keys, err := r.client.Keys(ctx, "leaderboard:*").Result()
	if err != nil {
		return fmt.Errorf("failed to list leaderboard keys: %w", err)
	}
	return r.Del(ctx, keys...)
}
