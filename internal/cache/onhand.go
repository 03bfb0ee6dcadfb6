// Package cache holds the redis-backed read-path caches. The ledger is always
// the source of truth; everything here may be dropped at any time and rebuilt
// from a re-sum.
package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	onHandKeyPrefix = "onhand:"
	onHandTTL       = 30 * time.Minute
)

// OnHandCache caches per-SKU on-hand totals. Mutating operations invalidate
// the key instead of updating it — the next read repopulates from the ledger
// sum, so the cache can never serve a total the ledger does not back.
type OnHandCache struct {
	rdb *redis.Client
}

func NewOnHandCache(rdb *redis.Client) *OnHandCache { return &OnHandCache{rdb: rdb} }

// Get returns the cached total and whether it was present.
func (c *OnHandCache) Get(ctx context.Context, sku string) (int64, bool) {
	if c == nil || c.rdb == nil {
		return 0, false
	}
	val, err := c.rdb.Get(ctx, onHandKeyPrefix+sku).Result()
	if err != nil {
		return 0, false
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Set stores a freshly computed total.
func (c *OnHandCache) Set(ctx context.Context, sku string, onHand int64) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, onHandKeyPrefix+sku, onHand, onHandTTL).Err(); err != nil {
		log.Warn().Err(err).Str("sku", sku).Msg("onhand cache set failed")
	}
}

// Invalidate drops the cached total after a ledger append. Best-effort: a
// failed delete only means one stale read before the TTL expires, and the
// reconciliation sweep repairs any drift.
func (c *OnHandCache) Invalidate(ctx context.Context, sku string) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, onHandKeyPrefix+sku).Err(); err != nil {
		log.Warn().Err(err).Str("sku", sku).Msg("onhand cache invalidate failed")
	}
}
