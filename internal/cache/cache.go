// Copyright 2025 James Ross
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/arjaygg/ado-flow-metrics/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	reportKey     = "ado-flow-metrics:report:latest"
	lastFetchKey  = "ado-flow-metrics:last_fetch"
)

// New returns a configured go-redis client with pooling sized off CPU
// count, the same shape the teacher's v8 client factory used.
func New(cfg *config.Config) *redis.Client {
	poolSize := 10 * runtime.NumCPU()
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Cache.RedisAddr,
		PoolSize:     poolSize,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
	})
}

// ReportCache wraps a redis client with the report-snapshot operations the
// HTTP read API and refresh handler need. A miss is not an error: it means
// no cached report exists yet (GetReport returns ok=false).
type ReportCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewReportCache builds a ReportCache. A zero ttl disables expiry.
func NewReportCache(rdb *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{rdb: rdb, ttl: ttl}
}

// PutReport caches the serialized report and records the fetch time.
func (c *ReportCache) PutReport(ctx context.Context, report interface{}, fetchedAt time.Time) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report for cache: %w", err)
	}
	if err := c.rdb.Set(ctx, reportKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache report: %w", err)
	}
	return c.rdb.Set(ctx, lastFetchKey, fetchedAt.UTC().Format(time.RFC3339), c.ttl).Err()
}

// GetReport returns the cached report bytes, ok=false on a cache miss.
func (c *ReportCache) GetReport(ctx context.Context) ([]byte, bool, error) {
	data, err := c.rdb.Get(ctx, reportKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached report: %w", err)
	}
	return data, true, nil
}

// LastFetch returns when the cached report was produced, ok=false if no
// report has ever been cached.
func (c *ReportCache) LastFetch(ctx context.Context) (time.Time, bool, error) {
	s, err := c.rdb.Get(ctx, lastFetchKey).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read last fetch marker: %w", err)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last fetch marker: %w", err)
	}
	return t, true, nil
}
