// Package cache keeps the reporting cache consistent with the ledger. Reports
// built from the ledger are cached under a common prefix that must be dropped
// whenever documents are booked or the ledger is reset.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/config"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	scanBatchSize = 100
	defaultPrefix = "reports:"
	lastRunKey    = "ledger:run:last"
)

type ReportCache interface {
	// InvalidateAll drops every cached report.
	InvalidateAll(ctx context.Context) error
	// PutLastRun stores the run record under a fixed key, outside the report prefix.
	PutLastRun(ctx context.Context, run *domain.Run) error
	LastRun(ctx context.Context) (*domain.Run, bool, error)
}

type redisReportCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type noopReportCache struct{}

// NewReportCache returns a Redis backed cache, or a noop cache when caching is disabled.
func NewReportCache(cfg config.CacheConfig) (ReportCache, error) {
	if !cfg.Enabled {
		return &noopReportCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	prefix := cfg.ReportPrefix
	if prefix == "" {
		prefix = defaultPrefix
	}

	return &redisReportCache{client: client, prefix: prefix, ttl: ttl}, nil
}

func NewNoopReportCache() ReportCache {
	return &noopReportCache{}
}

func (c *redisReportCache) InvalidateAll(ctx context.Context) error {
	deleted, err := deleteKeysWithPrefix(ctx, c.client, c.prefix, scanBatchSize)
	if err != nil {
		return err
	}
	log.Debug().Str("prefix", c.prefix).Int("keys", deleted).Msg("report cache invalidated")
	return nil
}

func (c *redisReportCache) PutLastRun(ctx context.Context, run *domain.Run) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	if err := c.client.Set(ctx, lastRunKey, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisReportCache) LastRun(ctx context.Context) (*domain.Run, bool, error) {
	payload, err := c.client.Get(ctx, lastRunKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var run domain.Run
	if err := json.Unmarshal(payload, &run); err != nil {
		return nil, false, fmt.Errorf("unmarshal run: %w", err)
	}
	return &run, true, nil
}

func (n *noopReportCache) InvalidateAll(context.Context) error {
	return nil
}

func (n *noopReportCache) PutLastRun(context.Context, *domain.Run) error {
	return nil
}

func (n *noopReportCache) LastRun(context.Context) (*domain.Run, bool, error) {
	return nil, false, nil
}
