package apiclient

import (
	"context"
	"crypto/sha1"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// cacheStore is the part of *redis.Client the browse cache uses.
type cacheStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetEx(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// BrowseCache keeps raw 2xx bodies of catalog reads (theaters, movies) in
// Redis.  Seat maps, bookings and payments are never cached.  A nil
// *BrowseCache is valid and caches nothing.
type BrowseCache struct {
	rdb    cacheStore
	ttl    time.Duration
	prefix string
}

// NewBrowseCache returns nil when rdb is nil so the client falls back to
// uncached reads.
func NewBrowseCache(rdb *redis.Client, ttl time.Duration, prefix string) *BrowseCache {
	if rdb == nil {
		return nil
	}
	return newBrowseCache(rdb, ttl, prefix)
}

func newBrowseCache(store cacheStore, ttl time.Duration, prefix string) *BrowseCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if prefix == "" {
		prefix = "filmpass:browse"
	}
	return &BrowseCache{rdb: store, ttl: ttl, prefix: prefix}
}

// key hashes the request path so arbitrary query strings stay short.
func (bc *BrowseCache) key(path string) string {
	sum := sha1.Sum([]byte("GET:" + path))
	return fmt.Sprintf("%s:%x", bc.prefix, sum[:])
}

func (bc *BrowseCache) get(ctx context.Context, path string) ([]byte, bool) {
	if bc == nil {
		return nil, false
	}
	bs, err := bc.rdb.Get(ctx, bc.key(path)).Bytes()
	if err != nil || len(bs) == 0 {
		return nil, false
	}
	return bs, true
}

func (bc *BrowseCache) set(ctx context.Context, path string, body []byte) {
	if bc == nil || len(body) == 0 {
		return
	}
	_ = bc.rdb.SetEx(ctx, bc.key(path), body, bc.ttl).Err()
}

// cachedGet serves path from the browse cache or the backend and hands
// the body to decode.  Only bodies decode accepts are cached; a cached
// body it rejects is refetched.
func (c *Client) cachedGet(ctx context.Context, op, path string, decode func([]byte) error) error {
	if bs, ok := c.cache.get(ctx, path); ok {
		if err := decode(bs); err == nil {
			c.log.Debug("browse cache hit", zap.String("path", path))
			return nil
		}
		c.log.Warn("dropping undecodable browse cache entry", zap.String("path", path))
	}
	body, _, err := c.do(ctx, call{op: op, method: "GET", path: path})
	if err != nil {
		return err
	}
	if err := decode(body); err != nil {
		return err
	}
	c.cache.set(ctx, path, body)
	return nil
}
