package postgres

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fslcore/fsl/internal/deck"
)

// fakeRow is an in-memory pgx.Row, letting tests drive Listener.LookupByRid
// without a live Postgres connection.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch v := d.(type) {
		case *string:
			*v = r.values[i].(string)
		default:
			return errors.New("fakeRow: unsupported scan target")
		}
	}
	return nil
}

// fakeQuerier is an in-process stand-in for *pgxpool.Pool, exercising
// Listener's SQL/translation logic against a map instead of a real
// mirrored_events table.
type fakeQuerier struct {
	rows map[int64][2]string // rid -> [event_type, comment]
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{rows: make(map[int64][2]string)}
}

func (f *fakeQuerier) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	rid := args[0].(int64)
	eventType := args[1].(string)
	comment := args[4].(string)
	f.rows[rid] = [2]string{eventType, comment}
	return pgconn.CommandTag{}, nil
}

func (f *fakeQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	rid := args[0].(int64)
	row, ok := f.rows[rid]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{values: []any{row[0], row[1]}}
}

func sampleDeck(t *testing.T) *deck.Deck {
	t.Helper()
	d := deck.New(deck.TypeCheckin)
	require.NoError(t, d.SetTimestamp(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
	require.NoError(t, d.SetUser("alice"))
	require.NoError(t, d.SetComment("init"))
	return d
}

func TestListenerMirrorsAndLooksUpArtifact(t *testing.T) {
	q := newFakeQuerier()
	l := NewListener(q, zerolog.New(io.Discard))

	d := sampleDeck(t)
	require.NoError(t, l.OnArtifact(42, d))

	eventType, comment, err := l.LookupByRid(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "checkin", eventType)
	assert.Equal(t, "init", comment)
}

func TestListenerLookupMissReturnsErrMirrorNotFound(t *testing.T) {
	q := newFakeQuerier()
	l := NewListener(q, zerolog.New(io.Discard))

	_, _, err := l.LookupByRid(context.Background(), 99)
	assert.ErrorIs(t, err, ErrMirrorNotFound)
}

func TestListenerOverwritesOnConflict(t *testing.T) {
	q := newFakeQuerier()
	l := NewListener(q, zerolog.New(io.Discard))

	d := sampleDeck(t)
	require.NoError(t, l.OnArtifact(7, d))

	require.NoError(t, d.SetComment("amended"))
	require.NoError(t, l.OnArtifact(7, d))

	_, comment, err := l.LookupByRid(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "amended", comment)
}
