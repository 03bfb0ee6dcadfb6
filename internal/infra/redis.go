package infra

import (
	"context"
	"time"

	"invcore/internal/config"

	"github.com/redis/go-redis/v9"
)

// NewRedis connects the client backing the on-hand cache and the low-stock
// job queue. Pool sizing comes from config: the BRPOP workers each pin a
// connection, so the pool must be at least WORKER_POOL_SIZE + headroom for
// request-path cache traffic.
func NewRedis(cfg *config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	opts.PoolSize = cfg.RedisPoolSize
	opts.MinIdleConns = cfg.RedisMinIdleConns

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}
