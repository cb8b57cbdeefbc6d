package corestore

import (
	"time"

	"github.com/fslcore/fsl/internal/corecontext"
)

// Begin starts (or, if already inside one, nests into) a transaction. Real
// SQLite transactions do not nest, so depth > 0 is emulated with a counter:
// only depth 0 -> 1 issues a real BEGIN, and every subsequent Begin just
// increments the counter. Commit mirrors this in reverse.
func (s *Store) Begin() error {
	if s.txDepth == 0 {
		if _, err := s.db.Exec("BEGIN IMMEDIATE"); err != nil {
			return corecontext.Wrap(corecontext.KindDB, "begin transaction", err)
		}
		s.txPoisoned = false
	}
	s.txDepth++
	return nil
}

// Poison marks the current transaction tree as unsalvageable: even if
// every remaining nested Commit call succeeds, the outermost Commit will
// roll back instead. Used when a step discovers a consistency problem
// (e.g. a crosslink listener failure) after other steps already wrote
// rows in the same transaction.
func (s *Store) Poison() {
	s.txPoisoned = true
}

// Poisoned reports whether the current transaction tree has been poisoned.
func (s *Store) Poisoned() bool {
	return s.txPoisoned
}

// Commit ends the innermost nesting level. Only the outermost Commit (the
// one that brings txDepth back to 0) issues a real COMMIT or, if the tree
// was poisoned, a ROLLBACK instead.
func (s *Store) Commit() error {
	if s.txDepth == 0 {
		return corecontext.New(corecontext.KindMisuse, "commit without matching begin")
	}
	s.txDepth--
	if s.txDepth > 0 {
		return nil
	}
	if s.txPoisoned {
		defer func() { s.txPoisoned = false }()
		if _, err := s.db.Exec("ROLLBACK"); err != nil {
			return corecontext.Wrap(corecontext.KindDB, "rollback poisoned transaction", err)
		}
		return corecontext.New(corecontext.KindConsistency, "transaction rolled back: poisoned before commit")
	}
	if _, err := s.db.Exec("COMMIT"); err != nil {
		return corecontext.Wrap(corecontext.KindDB, "commit transaction", err)
	}
	return nil
}

// Rollback unwinds the entire transaction tree immediately regardless of
// nesting depth, used on an unrecoverable error partway through a
// multi-step operation (commit, update, checkout).
func (s *Store) Rollback() error {
	if s.txDepth == 0 {
		return nil
	}
	s.txDepth = 0
	s.txPoisoned = false
	if _, err := s.db.Exec("ROLLBACK"); err != nil {
		return corecontext.Wrap(corecontext.KindDB, "rollback transaction", err)
	}
	return nil
}

// WithTransaction runs fn inside a Begin/Commit pair, rolling back the
// entire tree if fn returns an error or panics.
func (s *Store) WithTransaction(fn func() error) (err error) {
	start := time.Now()
	outcome := "committed"
	defer func() {
		s.metrics.RecordDBTransaction(outcome, time.Since(start).Seconds())
	}()

	if err = s.Begin(); err != nil {
		outcome = "error"
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			_ = s.Rollback()
			panic(r)
		}
	}()
	if err = fn(); err != nil {
		outcome = "rolled-back"
		s.Poison()
		if cerr := s.Commit(); cerr != nil && err == nil {
			err = cerr
		}
		return err
	}
	return s.Commit()
}
