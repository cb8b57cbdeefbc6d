package corestore

import (
	"database/sql"
	"sync"

	"github.com/fslcore/fsl/internal/corecontext"
)

// stmtCache holds prepared statements keyed by their SQL text so hot-path
// queries (blob existence checks, vfile scans, crosslink lookups) avoid
// re-preparing on every call.
type stmtCache struct {
	mu    sync.Mutex
	store *Store
	byKey map[string]*sql.Stmt
}

func newStmtCache(s *Store) *stmtCache {
	return &stmtCache{store: s, byKey: make(map[string]*sql.Stmt)}
}

// Prepare returns a cached *sql.Stmt for query, preparing it on first use.
func (c *stmtCache) Prepare(query string) (*sql.Stmt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if stmt, ok := c.byKey[query]; ok {
		return stmt, nil
	}
	stmt, err := c.store.db.Prepare(query)
	if err != nil {
		return nil, corecontext.Wrap(corecontext.KindDB, "prepare statement", err)
	}
	c.byKey[query] = stmt
	c.store.metrics.SetStatementCacheSize(len(c.byKey))
	return stmt, nil
}

// clear closes and discards every cached statement. Called on
// Store.Close, before the database handle the statements were prepared
// against is closed.
func (c *stmtCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, stmt := range c.byKey {
		stmt.Close()
		delete(c.byKey, k)
	}
}

// Prepare is the Store-level convenience wrapper most callers use.
func (s *Store) Prepare(query string) (*sql.Stmt, error) {
	return s.stmts.Prepare(query)
}
