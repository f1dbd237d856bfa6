package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campus-forum/internal/config"
	"github.com/campus-forum/internal/domain"
)

// FeedCache stores ranked post ids per category and strategy
type FeedCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewFeedCache creates a new Redis feed cache
func NewFeedCache(cfg *config.RedisConfig, logger *slog.Logger) (*FeedCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewFeedCacheWithClient(client, logger), nil
}

// NewFeedCacheWithClient wraps an existing client
func NewFeedCacheWithClient(client *redis.Client, logger *slog.Logger) *FeedCache {
	return &FeedCache{
		client: client,
		logger: logger,
	}
}

// Close closes the Redis connection
func (c *FeedCache) Close() error {
	return c.client.Close()
}

// Ping checks that Redis is reachable
func (c *FeedCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// feedKey returns the Redis key for a ranked feed list
func feedKey(category string, strategy domain.SortStrategy) string {
	return fmt.Sprintf("feed:%s:%s:ranked", category, strategy)
}

// metaKey returns the Redis key for feed metadata
func metaKey(category string, strategy domain.SortStrategy) string {
	return fmt.Sprintf("feed:%s:%s:meta", category, strategy)
}

// StoreFeed atomically replaces the cached ranking for a feed
func (c *FeedCache) StoreFeed(ctx context.Context, category string, strategy domain.SortStrategy, ids []string, generatedAt time.Time, ttl time.Duration) error {
	key := feedKey(category, strategy)
	meta := metaKey(category, strategy)

	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(members) > 0 {
			pipe.RPush(ctx, key, members...)
			pipe.Expire(ctx, key, ttl)
		}
		pipe.HSet(ctx, meta,
			"generated_at", generatedAt.UnixMilli(),
			"size", len(ids),
		)
		pipe.Expire(ctx, meta, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing feed: %w", err)
	}
	return nil
}

// CachedFeed is a window of a cached ranking
type CachedFeed struct {
	IDs         []string
	Total       int
	GeneratedAt time.Time
}

// GetFeed returns ids in [offset, offset+limit) of a cached feed, or
// domain.ErrFeedNotCached when the feed is absent or expired
func (c *FeedCache) GetFeed(ctx context.Context, category string, strategy domain.SortStrategy, offset, limit int) (*CachedFeed, error) {
	key := feedKey(category, strategy)
	meta := metaKey(category, strategy)

	pipe := c.client.Pipeline()
	metaCmd := pipe.HGetAll(ctx, meta)
	rangeCmd := pipe.LRange(ctx, key, int64(offset), int64(offset+limit-1))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("getting feed: %w", err)
	}

	fields, err := metaCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("getting feed meta: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrFeedNotCached
	}

	size, _ := strconv.Atoi(fields["size"])
	generated, _ := strconv.ParseInt(fields["generated_at"], 10, 64)

	ids, err := rangeCmd.Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("getting feed range: %w", err)
	}
	if size > 0 && len(ids) == 0 && offset < size {
		// list expired ahead of its metadata
		return nil, domain.ErrFeedNotCached
	}

	return &CachedFeed{
		IDs:         ids,
		Total:       size,
		GeneratedAt: time.UnixMilli(generated),
	}, nil
}

// InvalidateCategory drops every cached ranking of a category and of the
// combined feed
func (c *FeedCache) InvalidateCategory(ctx context.Context, category string) error {
	var keys []string
	for _, cat := range []string{category, domain.CategoryAll} {
		for _, s := range domain.SortStrategies {
			keys = append(keys, feedKey(cat, s), metaKey(cat, s))
		}
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidating feeds: %w", err)
	}
	return nil
}
