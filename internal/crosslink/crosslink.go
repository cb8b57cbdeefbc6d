// Package crosslink maintains derived metadata (event timeline, tags,
// leaves, filename history) whenever a new artifact is inserted, and
// dispatches registered listeners within the same transaction so a
// listener failure can still roll back the insert (§4.6).
package crosslink

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/fslcore/fsl/internal/corecontext"
	"github.com/fslcore/fsl/internal/corestore"
	"github.com/fslcore/fsl/internal/deck"
	"github.com/fslcore/fsl/internal/metrics"
)

// Listener receives every artifact crosslinked during a session, after
// the built-in derived-table maintenance has run for it. It satisfies
// corecontext.Listener, so a listener can also be placed in a Context's
// registry; sessions run only the listeners added with AddListener.
type Listener interface {
	Name() string
	// OnArtifact is called once per artifact within the enclosing
	// transaction. Returning an error aborts and rolls back the whole
	// session (§4.6's "rollback on listener error" rule).
	OnArtifact(rid int64, d *deck.Deck) error
}

// Engine owns derived-table maintenance over a corestore.Store.
type Engine struct {
	db  *corestore.Store
	log zerolog.Logger

	listeners []Listener
	metrics   *metrics.Metrics
}

// New builds a crosslink Engine bound to db, logging through a
// "crosslink"-tagged sub-logger derived from ctx.
func New(db *corestore.Store, ctx *corecontext.Context) *Engine {
	return &Engine{db: db, log: ctx.Sub("crosslink")}
}

// SetMetrics wires an optional metrics sink; a nil argument disables
// instrumentation.
func (e *Engine) SetMetrics(m *metrics.Metrics) {
	e.metrics = m
}

// AddListener registers l to run on every future Session.
func (e *Engine) AddListener(l Listener) {
	e.listeners = append(e.listeners, l)
}

// Session groups one or more artifact crosslinks into a single
// transaction: all derived-table writes, and all listener invocations,
// either all commit together or all roll back together.
type Session struct {
	e       *Engine
	started bool
	opened  time.Time
}

// Begin opens a crosslink session, starting (or nesting into) a
// corestore transaction.
func (e *Engine) Begin() (*Session, error) {
	if err := e.db.Begin(); err != nil {
		return nil, err
	}
	return &Session{e: e, started: true, opened: time.Now()}, nil
}

// Crosslink records the derived metadata for one artifact: checkin
// decks update plink (parent/child), mlink (per-file changes), filename,
// and event; control decks update tagxref and propagate tags to
// descendants; all decks get an event-timeline row. Listeners then run.
func (s *Session) Crosslink(rid int64, d *deck.Deck) error {
	e := s.e
	if err := e.recordEvent(rid, d); err != nil {
		e.poisonAndLog("record event", err)
		return err
	}

	switch d.Type {
	case deck.TypeCheckin:
		if err := e.crosslinkCheckin(rid, d); err != nil {
			e.poisonAndLog("crosslink checkin", err)
			return err
		}
	case deck.TypeControl:
		if err := e.crosslinkControl(rid, d); err != nil {
			e.poisonAndLog("crosslink control", err)
			return err
		}
	}

	for _, l := range e.listeners {
		if err := l.OnArtifact(rid, d); err != nil {
			e.db.Poison()
			e.metrics.RecordCrosslinkListenerError(l.Name())
			e.log.Error().Str("listener", l.Name()).Err(err).Msg("listener rejected artifact, rolling back session")
			return corecontext.Wrap(corecontext.KindConsistency, "listener "+l.Name()+" failed", err)
		}
	}
	return nil
}

func (e *Engine) poisonAndLog(step string, err error) {
	e.db.Poison()
	e.log.Error().Str("step", step).Err(err).Msg("crosslink step failed, session poisoned")
}

// Commit ends the session, committing (or, if poisoned, rolling back)
// the underlying transaction.
func (s *Session) Commit() error {
	if !s.started {
		return nil
	}
	s.started = false
	err := s.e.db.Commit()
	outcome := "committed"
	if err != nil {
		outcome = "rolled-back"
	}
	s.e.metrics.RecordCrosslinkSession(outcome, time.Since(s.opened).Seconds())
	return err
}

// Abort forcibly rolls back the session's transaction regardless of
// nesting depth, used when a caller detects a problem outside of
// Crosslink itself (e.g. a failed blob fetch before crosslinking).
func (s *Session) Abort() error {
	if !s.started {
		return nil
	}
	s.started = false
	err := s.e.db.Rollback()
	s.e.metrics.RecordCrosslinkSession("aborted", time.Since(s.opened).Seconds())
	return err
}
