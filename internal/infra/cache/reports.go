package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"a11y-gateway/internal/infra/logging"
)

// ReportCache stores accessibility reports in Redis keyed by the checked
// PDF's content hash.
type ReportCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewReportCache wraps rdb. A non-positive ttl means one minute.
func NewReportCache(rdb *redis.Client, ttl time.Duration) *ReportCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ReportCache{rdb: rdb, ttl: ttl}
}

// Key derives the cache key for a PDF.
func Key(kind string, pdf []byte) string {
	sum := sha256.Sum256(pdf)
	return "reportcache:" + kind + ":" + hex.EncodeToString(sum[:])
}

// Get returns the cached report; ok is false on a miss.
func (c *ReportCache) Get(ctx context.Context, key string) (report []byte, ok bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		logging.Warn("Redis read failed", "error", err)
		return nil, false, err
	}
	logging.Info("Report cache hit", "key", key)
	return b, true, nil
}

// Set stores a report; failures are logged and otherwise ignored.
func (c *ReportCache) Set(ctx context.Context, key string, report []byte) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := c.rdb.Set(ctx, key, report, c.ttl).Err(); err != nil {
		logging.Warn("Redis write failed", "error", err)
	}
}
