// Package redis provides an optional, shared second-tier cache for
// resolved blob content and serialized decks, keyed by content hash, so
// multiple processes reading the same repository file can skip
// re-materializing delta chains the blob store already reconstructed
// for another process (§3.5, §4.5). Grounded on the teacher's
// internal/cache/redis.Client/Cache wrapper shape (go-redis/v9,
// Ping-on-connect, DeletePattern via SCAN), repurposed from
// object-metadata caching to hash-addressed blob/deck byte caching.
//
// This tier is purely an accelerator: the blob store (and, beneath it,
// the storage backend) is always the authoritative source. Losing this
// cache — Redis down, evicted, never configured — degrades silently to
// the in-process deckcache.Cache plus direct blobstore.Get calls.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fslcore/fsl/internal/corecontext"
)

// Config configures the optional Redis-backed cache tier.
type Config struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

// Client wraps a go-redis client with repository-scoped logging.
type Client struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewClient dials cfg.Addr and verifies connectivity with a Ping.
func NewClient(ctx context.Context, cfg Config, logger zerolog.Logger) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, corecontext.Wrap(corecontext.KindIO, "ping redis", err)
	}

	logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("connected to redis cache tier")
	return &Client{client: client, logger: logger}, nil
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	c.logger.Info().Msg("closing redis cache tier connection")
	return c.client.Close()
}

// Health checks the connection's liveness.
func (c *Client) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

const (
	prefixBlob = "blob:"
	prefixDeck = "deck:"
)

const defaultTTL = 10 * time.Minute

// Cache stores resolved blob content and serialized decks in Redis,
// keyed by the artifact's content hash.
type Cache struct {
	client *Client
	ttl    time.Duration
}

// NewCache wraps client with ttl (defaultTTL if <= 0) for every entry.
func NewCache(client *Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// GetBlob returns the cached content for hash, or
// corecontext.KindNotFound on a cache miss.
func (c *Cache) GetBlob(ctx context.Context, hash string) ([]byte, error) {
	val, err := c.client.client.Get(ctx, prefixBlob+hash).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, corecontext.New(corecontext.KindNotFound, "blob not cached: "+hash)
		}
		return nil, corecontext.Wrap(corecontext.KindIO, "get cached blob", err)
	}
	return val, nil
}

// PutBlob caches content under hash.
func (c *Cache) PutBlob(ctx context.Context, hash string, content []byte) error {
	if err := c.client.client.Set(ctx, prefixBlob+hash, content, c.ttl).Err(); err != nil {
		return corecontext.Wrap(corecontext.KindIO, "set cached blob", err)
	}
	return nil
}

// GetDeck returns the cached serialized deck bytes for hash, or
// corecontext.KindNotFound on a cache miss. Callers re-parse via
// deck.Parse; this tier caches bytes, not the parsed struct, since the
// parsed struct lives in the in-process deckcache.Cache instead.
func (c *Cache) GetDeck(ctx context.Context, hash string) ([]byte, error) {
	val, err := c.client.client.Get(ctx, prefixDeck+hash).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, corecontext.New(corecontext.KindNotFound, "deck not cached: "+hash)
		}
		return nil, corecontext.Wrap(corecontext.KindIO, "get cached deck", err)
	}
	return val, nil
}

// PutDeck caches a deck's serialized bytes under hash.
func (c *Cache) PutDeck(ctx context.Context, hash string, raw []byte) error {
	if err := c.client.client.Set(ctx, prefixDeck+hash, raw, c.ttl).Err(); err != nil {
		return corecontext.Wrap(corecontext.KindIO, "set cached deck", err)
	}
	return nil
}

// Invalidate removes both the blob and deck entries cached for hash,
// used by Shun to make sure a shunned artifact's bytes cannot be served
// back out of the cache after the authoritative copy is gone.
func (c *Cache) Invalidate(ctx context.Context, hash string) error {
	if err := c.client.client.Del(ctx, prefixBlob+hash, prefixDeck+hash).Err(); err != nil {
		return corecontext.Wrap(corecontext.KindIO, "invalidate cache entry", err)
	}
	return nil
}

// DeletePattern removes every cached entry whose key matches pattern
// (a redis SCAN glob), used for bulk invalidation after a reorganize
// pass rewrites many blobs' storage form.
func (c *Cache) DeletePattern(ctx context.Context, pattern string) error {
	iter := c.client.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.client.logger.Warn().Err(err).Str("key", iter.Val()).Msg("failed to delete cache key")
		}
	}
	if err := iter.Err(); err != nil {
		return corecontext.Wrap(corecontext.KindIO, "scan cache keys", err)
	}
	return nil
}
