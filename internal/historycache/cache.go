// Package historycache is an opportunistic Redis-backed cache of raw
// exchange bar pages in front of the history service's REST pulls, so that
// concurrent warmups for the same pair (e.g. after a reboot storm hits
// several pairs at once) don't refetch identical REST pages. It caches raw
// bar pages only, never computed indicator values.
package historycache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"candledash/internal/model"
	"candledash/internal/timeframe"
)

// Cache wraps a redis client. A nil *Cache is valid and behaves as an
// always-miss cache, so callers can wire historycache in without making
// Redis a hard dependency of the History Service.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New builds a Cache. ttl defaults to 30s, long enough to absorb a Reboot
// storm's duplicate requests without serving meaningfully stale pages.
func New(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

func key(pair model.Pair, tf timeframe.Timeframe, startTime int64) string {
	return fmt.Sprintf("candledash:hist:%s:%s:%d", pair, tf.Tag(), startTime)
}

// Get returns a cached page, if present and not expired.
func (c *Cache) Get(ctx context.Context, pair model.Pair, tf timeframe.Timeframe, startTime int64) ([]model.Bar, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, key(pair, tf, startTime)).Bytes()
	if err != nil {
		return nil, false
	}
	var bars []model.Bar
	if err := json.Unmarshal(raw, &bars); err != nil {
		return nil, false
	}
	return bars, true
}

// Set stores a fetched page with the cache's TTL. Failures are swallowed —
// this is an optimization, not a correctness requirement.
func (c *Cache) Set(ctx context.Context, pair model.Pair, tf timeframe.Timeframe, startTime int64, bars []model.Bar) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(bars)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, key(pair, tf, startTime), raw, c.ttl)
}
