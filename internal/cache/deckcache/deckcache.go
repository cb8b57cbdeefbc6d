// Package deckcache provides an in-process, TTL-expiring cache of parsed
// decks keyed by artifact hash, so repeated reads of the same checkin
// (scan, diff, path-tracing) avoid re-parsing the card stream (§3.5,
// §4.5). Grounded on the teacher's in-process memory cache shape
// (set/get/delete/exists, a background sweep goroutine); Get returns
// the stored value itself, not a copy. Values are stored as `any` (rather than the concrete
// *deck.Deck) so this package satisfies corecontext.DeckCache without
// corecontext needing to import deck or deckcache back.
package deckcache

import (
	"sync"
	"time"

	"github.com/fslcore/fsl/internal/corecontext"
)

// entry pairs a cached value with its absolute expiry time.
type entry struct {
	v       any
	expires time.Time
}

// Cache is a process-local, TTL-based LRU-ish cache of parsed decks. It
// is an accelerator only: a miss always falls back to blobstore.Get +
// deck.Parse, so losing the cache (restart, eviction, TTL expiry) never
// loses data.
type Cache struct {
	mu      sync.Mutex
	byHash  map[string]entry
	ttl     time.Duration
	maxSize int

	stopCh chan struct{}
	once   sync.Once
}

// defaultTTL matches the teacher's cache default; defaultMaxSize bounds
// process memory for repositories with very long timelines.
const (
	defaultTTL     = 5 * time.Minute
	defaultMaxSize = 4096
)

// New creates a deck cache with ttl (defaultTTL if <= 0) and maxSize
// (defaultMaxSize if <= 0) entries, and starts its background sweep.
func New(ttl time.Duration, maxSize int) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	c := &Cache{
		byHash:  make(map[string]entry),
		ttl:     ttl,
		maxSize: maxSize,
		stopCh:  make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Get returns the cached value for hash, or corecontext.KindNotFound if
// absent or expired. Callers type-assert the result back to *deck.Deck.
func (c *Cache) Get(hash string) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byHash[hash]
	if !ok || time.Now().After(e.expires) {
		return nil, corecontext.New(corecontext.KindNotFound, "deck not cached: "+hash)
	}
	return e.v, nil
}

// Put caches v (ordinarily a *deck.Deck) under hash, evicting an arbitrary
// entry first if the cache is already at capacity (a simple bound, not
// strict LRU: the teacher's own memory cache has no eviction policy beyond
// TTL either).
func (c *Cache) Put(hash string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.byHash) >= c.maxSize {
		for k := range c.byHash {
			delete(c.byHash, k)
			break
		}
	}
	c.byHash[hash] = entry{v: v, expires: time.Now().Add(c.ttl)}
}

// Delete removes hash's cached entry, if any.
func (c *Cache) Delete(hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byHash, hash)
}

// Exists reports whether hash has a live (non-expired) cached entry.
func (c *Cache) Exists(hash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byHash[hash]
	return ok && !time.Now().After(e.expires)
}

// Len reports the current number of cached entries, including any not
// yet swept past their TTL.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byHash)
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, e := range c.byHash {
		if now.After(e.expires) {
			delete(c.byHash, k)
		}
	}
}

// Stop halts the background sweep goroutine. Safe to call more than
// once.
func (c *Cache) Stop() {
	c.once.Do(func() { close(c.stopCh) })
}
