// Package corestore provides the embedded, single-file transactional
// storage backend: repository and checkout databases attached into one
// uniform namespace, pseudo-nested transactions, and a prepared-statement
// cache (§4.3).
package corestore

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/fslcore/fsl/internal/corecontext"
	"github.com/fslcore/fsl/internal/metrics"
)

// Schema names under which physical files are ATTACHed, giving a uniform
// namespace regardless of which physical file was opened first.
const (
	SchemaRepository = "repository"
	SchemaLocal      = "localdb"
	SchemaConfig     = "configdb"
)

// Store owns the in-memory "main" database plus whichever of the
// repository / checkout / config files have been attached to it.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger

	attached map[string]string // schema name -> physical path ("" = :memory:)

	txDepth   int
	txPoisoned bool

	stmts   *stmtCache
	metrics *metrics.Metrics
}

// SetMetrics wires an optional metrics sink. A nil argument (the
// default) disables instrumentation; every recording call already
// guards against a nil *metrics.Metrics.
func (s *Store) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Open creates the in-memory main database that repository/checkout
// files are later attached to.
func Open(logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, corecontext.Wrap(corecontext.KindDB, "open main db", err)
	}
	db.SetMaxOpenConns(1) // one connection: ATTACH state and pseudo-tx are connection-scoped.

	s := &Store{
		db:       db,
		logger:   logger.With().Str("component", "corestore").Logger(),
		attached: make(map[string]string),
	}
	s.stmts = newStmtCache(s)
	return s, nil
}

// Attach mounts the physical SQLite file at path under schema, per §4.3.
// An empty path attaches a private, in-process ":memory:" database (used
// for the transient config namespace when no global config file exists).
func (s *Store) Attach(schema, path string) error {
	if _, ok := s.attached[schema]; ok {
		return corecontext.New(corecontext.KindMisuse, "schema already attached: "+schema)
	}
	target := path
	if target == "" {
		target = ":memory:"
	}
	stmt := fmt.Sprintf("ATTACH DATABASE %s AS %s", quoteLiteral(target), schema)
	if _, err := s.db.Exec(stmt); err != nil {
		return corecontext.Wrap(corecontext.KindDB, "attach "+schema, err)
	}
	s.attached[schema] = path
	s.logger.Info().Str("schema", schema).Str("path", path).Msg("attached database")
	return nil
}

// IsAttached reports whether schema has been attached.
func (s *Store) IsAttached(schema string) bool {
	_, ok := s.attached[schema]
	return ok
}

// DB exposes the underlying *sql.DB for callers (statement-cache lookups,
// schema installation) that need raw access within this package's family.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases the statement cache and closes the main database handle,
// detaching (implicitly, via close) everything attached to it.
func (s *Store) Close() error {
	s.stmts.clear()
	if err := s.db.Close(); err != nil {
		return corecontext.Wrap(corecontext.KindDB, "close store", err)
	}
	return nil
}

func quoteLiteral(s string) string {
	// SQLite string literal: single-quoted, embedded quotes doubled.
	escaped := ""
	for _, r := range s {
		if r == '\'' {
			escaped += "''"
		} else {
			escaped += string(r)
		}
	}
	return "'" + escaped + "'"
}
