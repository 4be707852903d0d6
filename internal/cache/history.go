// Package cache keeps reduced history series in redis. Entries are keyed by a
// per-company version so a new snapshot invalidates every cached series at once.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/revlens/internal/config"
	snapshotdomain "github.com/smallbiznis/revlens/internal/snapshot/domain"
)

const (
	keyHistoryVersion = "revlens:history:version:%s"
	keyHistorySeries  = "revlens:history:%s:v%d:%s:%d"
)

type HistoryCache interface {
	Get(ctx context.Context, companyID string, g snapshotdomain.Granularity, lookback int) ([]snapshotdomain.Row, bool, error)
	Set(ctx context.Context, companyID string, g snapshotdomain.Granularity, lookback int, rows []snapshotdomain.Row) error
	// Invalidate drops every cached series of the company.
	Invalidate(ctx context.Context, companyID string) error
}

type redisHistoryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewHistoryCache returns a redis-backed cache, or a no-op cache when ttl is not positive.
func NewHistoryCache(client *redis.Client, ttl time.Duration) HistoryCache {
	if client == nil || ttl <= 0 {
		return noopHistoryCache{}
	}
	return &redisHistoryCache{client: client, ttl: ttl}
}

func ProvideHistoryCache(client *redis.Client, cfg config.Config) HistoryCache {
	return NewHistoryCache(client, cfg.HistoryCacheTTL)
}

func (c *redisHistoryCache) Get(ctx context.Context, companyID string, g snapshotdomain.Granularity, lookback int) ([]snapshotdomain.Row, bool, error) {
	key, err := c.seriesKey(ctx, companyID, g, lookback)
	if err != nil {
		return nil, false, err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var rows []snapshotdomain.Row
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, false, fmt.Errorf("decode cached history: %w", err)
	}
	return rows, true, nil
}

func (c *redisHistoryCache) Set(ctx context.Context, companyID string, g snapshotdomain.Granularity, lookback int, rows []snapshotdomain.Row) error {
	key, err := c.seriesKey(ctx, companyID, g, lookback)
	if err != nil {
		return err
	}
	if rows == nil {
		rows = []snapshotdomain.Row{}
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return c.client.Set(ctx, key, payload, c.ttl).Err()
}

func (c *redisHistoryCache) Invalidate(ctx context.Context, companyID string) error {
	return c.client.Incr(ctx, fmt.Sprintf(keyHistoryVersion, strings.TrimSpace(companyID))).Err()
}

func (c *redisHistoryCache) seriesKey(ctx context.Context, companyID string, g snapshotdomain.Granularity, lookback int) (string, error) {
	companyID = strings.TrimSpace(companyID)
	version, err := c.client.Get(ctx, fmt.Sprintf(keyHistoryVersion, companyID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf(keyHistorySeries, companyID, version, g, lookback), nil
}

type noopHistoryCache struct{}

func (noopHistoryCache) Get(context.Context, string, snapshotdomain.Granularity, int) ([]snapshotdomain.Row, bool, error) {
	return nil, false, nil
}

func (noopHistoryCache) Set(context.Context, string, snapshotdomain.Granularity, int, []snapshotdomain.Row) error {
	return nil
}

func (noopHistoryCache) Invalidate(context.Context, string) error { return nil }
