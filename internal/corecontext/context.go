package corecontext

import (
	"bytes"
	"sync"

	"github.com/rs/zerolog"
)

// Listener is a named crosslink hook. The crosslink package defines the
// concrete function signature it invokes; corecontext only owns the
// registry so that storage-layer and checkout-layer code can register and
// look up listeners without importing the crosslink package directly.
type Listener interface {
	Name() string
}

// DeckCache is the parsed-artifact cache contract Context relies on
// (§3.4/§3.5: "an artifact cache, a parsed-deck cache ... cached with a
// small LRU"). Values are passed as `any` so corecontext never has to
// import the deck package back — deck already imports corecontext for its
// error kinds, so a typed *deck.Deck signature here would be a cycle.
// internal/cache/deckcache.Cache satisfies this interface structurally.
type DeckCache interface {
	Get(hash string) (any, error)
	Put(hash string, v any)
}

// Context is the process-scoped handle every subsystem receives: the
// structured logger, the identity of the acting user, a reusable
// scratch-buffer pool for hashing/delta work, a named listener registry,
// and the optional parsed-deck cache. crosslink.Engine keeps its own
// listener list (AddListener) and does not read this registry.
// It deliberately does not own storage handles or configuration; callers
// wire those in separately so that corecontext stays a leaf package with
// no import-cycle risk.
type Context struct {
	Logger   zerolog.Logger
	UserName string

	mu        sync.Mutex
	listeners []Listener

	decks DeckCache

	scratch sync.Pool
}

// NewContext builds a Context bound to the given user identity, logging
// through logger. A fresh scratch-buffer pool and empty listener registry
// are allocated; the deck cache is nil until SetDeckCache is called.
func NewContext(logger zerolog.Logger, userName string) *Context {
	c := &Context{
		Logger:   logger,
		UserName: userName,
	}
	c.scratch.New = func() any { return new(bytes.Buffer) }
	return c
}

// SetDeckCache installs the parsed-deck cache subsystems consult before
// re-parsing an artifact's card stream. A nil DeckCache (the default) means
// every read falls through to deck.Parse, exactly as before this cache
// existed.
func (c *Context) SetDeckCache(dc DeckCache) {
	c.decks = dc
}

// DeckCache returns the installed parsed-deck cache, or nil if none was
// configured.
func (c *Context) DeckCache() DeckCache {
	return c.decks
}

// Sub returns a child logger tagged with component, mirroring the
// teacher's convention of deriving named sub-loggers per subsystem.
func (c *Context) Sub(component string) zerolog.Logger {
	return c.Logger.With().Str("component", component).Logger()
}

// RegisterListener installs a named crosslink listener slot, replacing any
// listener previously registered under the same name in place so
// registration order is preserved (§5: "listeners fire in registration
// order").
func (c *Context) RegisterListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.listeners {
		if existing.Name() == l.Name() {
			c.listeners[i] = l
			return
		}
	}
	c.listeners = append(c.listeners, l)
}

// UnregisterListener removes a named listener, if present.
func (c *Context) UnregisterListener(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.listeners {
		if existing.Name() == name {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			return
		}
	}
}

// Listeners returns a snapshot of the currently registered listeners, in
// registration order.
func (c *Context) Listeners() []Listener {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Listener, len(c.listeners))
	copy(out, c.listeners)
	return out
}

// GetScratch borrows a *bytes.Buffer from the pool, resetting it first.
func (c *Context) GetScratch() *bytes.Buffer {
	buf := c.scratch.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutScratch returns a *bytes.Buffer to the pool for reuse.
func (c *Context) PutScratch(buf *bytes.Buffer) {
	c.scratch.Put(buf)
}
