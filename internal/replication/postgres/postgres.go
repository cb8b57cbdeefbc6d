// Package postgres implements an optional crosslink listener that
// mirrors derived timeline rows into an external Postgres instance for
// fleet-wide reporting, grounded in the teacher's
// internal/repository/postgres repository pattern (pgxpool, typed row
// scans, pgx.ErrNoRows translated to a domain sentinel). Registered via
// crosslink.Engine.AddListener but inert unless a DSN is configured —
// a single-node repository never needs this, matching §5's
// single-process scheduling model.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/fslcore/fsl/internal/corecontext"
	"github.com/fslcore/fsl/internal/crosslink"
	"github.com/fslcore/fsl/internal/deck"
)

// ErrMirrorNotFound is returned by lookups against the mirrored tables
// when no matching row exists, the translated form of pgx.ErrNoRows.
var ErrMirrorNotFound = errors.New("replication/postgres: no such mirrored event")

// DB wraps a pgx connection pool, matching the teacher's DB wrapper
// shape (a thin struct around *pgxpool.Pool passed to every repository
// constructor).
type DB struct {
	Pool *pgxpool.Pool
}

// Open connects to dsn and verifies connectivity with a Ping.
func Open(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, corecontext.Wrap(corecontext.KindIO, "open postgres pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, corecontext.Wrap(corecontext.KindIO, "ping postgres", err)
	}
	return &DB{Pool: pool}, nil
}

// Close releases the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// Schema is the mirrored timeline table's DDL, applied once by the
// operator standing up the reporting instance (not run automatically:
// this package never assumes DDL privileges on a shared Postgres).
const Schema = `
CREATE TABLE IF NOT EXISTS mirrored_events (
	rid         BIGINT PRIMARY KEY,
	event_type  TEXT NOT NULL,
	artifact    TEXT NOT NULL,
	user_name   TEXT NOT NULL,
	comment     TEXT NOT NULL,
	mtime       DOUBLE PRECISION NOT NULL
)`

// querier is the narrow subset of *pgxpool.Pool the Listener needs,
// broken out so tests can exercise the listener's SQL and translation
// logic against a fake instead of a live Postgres instance.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Listener mirrors every crosslinked artifact into a mirrored_events
// row on an external Postgres instance. It satisfies crosslink.Listener.
type Listener struct {
	db  querier
	log zerolog.Logger
}

// NewListener builds a Listener writing through q (ordinarily db.Pool).
func NewListener(q querier, logger zerolog.Logger) *Listener {
	return &Listener{db: q, log: logger.With().Str("component", "replication.postgres").Logger()}
}

// Register builds a Listener writing through db and installs it on links,
// the reachable call a repository owner makes to turn on Postgres
// mirroring. Inert until called — a single-node repository never needs
// this, matching §5's single-process scheduling model.
func Register(links *crosslink.Engine, db *DB, logger zerolog.Logger) *Listener {
	l := NewListener(db.Pool, logger)
	links.AddListener(l)
	return l
}

// Name identifies this listener in crosslink's registry and in
// CrosslinkListenerErrors metric labels.
func (l *Listener) Name() string { return "replication.postgres" }

// OnArtifact mirrors one crosslinked artifact's timeline row. A failure
// here poisons and rolls back the enclosing crosslink session (the
// same rule that applies to every registered listener, §4.6) — callers
// who want fleet reporting to be best-effort instead should wrap this
// Listener so OnArtifact swallows its own errors before registering it.
func (l *Listener) OnArtifact(rid int64, d *deck.Deck) error {
	ctx := context.Background()
	_, err := l.db.Exec(ctx,
		`INSERT INTO mirrored_events (rid, event_type, artifact, user_name, comment, mtime)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (rid) DO UPDATE SET comment = EXCLUDED.comment`,
		rid, d.Type.String(), artifactKind(d), d.User, d.Comment, timestampOf(d),
	)
	if err != nil {
		return fmt.Errorf("mirror artifact %d: %w", rid, err)
	}
	l.log.Debug().Int64("rid", rid).Msg("mirrored artifact to postgres")
	return nil
}

// LookupByRid returns the mirrored row for rid, or ErrMirrorNotFound if
// it has never been mirrored (e.g. this listener was registered after
// the checkin was made).
func (l *Listener) LookupByRid(ctx context.Context, rid int64) (eventType, comment string, err error) {
	err = l.db.QueryRow(ctx,
		`SELECT event_type, comment FROM mirrored_events WHERE rid = $1`, rid,
	).Scan(&eventType, &comment)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", ErrMirrorNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("lookup mirrored event %d: %w", rid, err)
	}
	return eventType, comment, nil
}

func artifactKind(d *deck.Deck) string {
	if len(d.Parents) > 0 {
		return d.Parents[0]
	}
	return ""
}

func timestampOf(d *deck.Deck) float64 {
	if !d.HasD {
		return 0
	}
	return float64(d.Timestamp.Unix())
}
