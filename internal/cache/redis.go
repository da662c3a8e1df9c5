// internal/cache/redis.go
// Package cache provides a Redis-backed read cache for catalog products.
// Reads go cache-aside: the HTTP layer checks here first, falls through to
// storage on a miss, and admin writes invalidate.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/novamarket/novamarket-go/internal/model"
)

// DefaultTTL bounds staleness for cached products. Invalidation on admin
// writes handles the common case; the TTL covers out-of-band changes.
const DefaultTTL = 5 * time.Minute

// ProductCache is the read-cache port. The noop implementation is used when
// Redis is not configured.
type ProductCache interface {
	GetProduct(ctx context.Context, id string) (*model.Product, bool)
	SetProduct(ctx context.Context, product model.Product)
	InvalidateProduct(ctx context.Context, id string)
	Close() error
}

// noop satisfies ProductCache without caching anything.
type noop struct{}

func (n *noop) GetProduct(ctx context.Context, id string) (*model.Product, bool) { return nil, false }
func (n *noop) SetProduct(ctx context.Context, product model.Product)            {}
func (n *noop) InvalidateProduct(ctx context.Context, id string)                 {}
func (n *noop) Close() error                                                     { return nil }

// NewNoop returns the no-op cache.
func NewNoop() ProductCache { return &noop{} }

// redisCache implements ProductCache on go-redis. Cache failures degrade to
// misses; they are logged and never surface to the request.
type redisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedis connects to Redis at addr. When the connection cannot be
// established the no-op cache is returned, mirroring the event publisher's
// degrade-to-noop behavior.
func NewRedis(addr string, logger *slog.Logger) ProductCache {
	if addr == "" {
		return &noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis connect failed, product cache disabled", "addr", addr, "error", err)
		client.Close()
		return &noop{}
	}

	return &redisCache{client: client, ttl: DefaultTTL, logger: logger}
}

// key namespaces cached products.
func key(id string) string {
	return "nova:product:" + id
}

func (r *redisCache) GetProduct(ctx context.Context, id string) (*model.Product, bool) {
	data, err := r.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("product cache read failed", "id", id, "error", err)
		}
		return nil, false
	}

	var product model.Product
	if err := json.Unmarshal(data, &product); err != nil {
		r.logger.Warn("product cache entry corrupt, dropping", "id", id, "error", err)
		r.client.Del(ctx, key(id))
		return nil, false
	}
	return &product, true
}

func (r *redisCache) SetProduct(ctx context.Context, product model.Product) {
	data, err := json.Marshal(product)
	if err != nil {
		r.logger.Warn("product cache marshal failed", "id", product.ID, "error", err)
		return
	}
	if err := r.client.Set(ctx, key(product.ID), data, r.ttl).Err(); err != nil {
		r.logger.Warn("product cache write failed", "id", product.ID, "error", err)
	}
}

func (r *redisCache) InvalidateProduct(ctx context.Context, id string) {
	if err := r.client.Del(ctx, key(id)).Err(); err != nil {
		r.logger.Warn("product cache invalidation failed", "id", id, "error", err)
	}
}

func (r *redisCache) Close() error {
	return r.client.Close()
}
