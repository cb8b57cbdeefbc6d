package crosslink

import (
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/fslcore/fsl/internal/corecontext"
	"github.com/fslcore/fsl/internal/corestore"
	"github.com/fslcore/fsl/internal/deck"
)

func newTestEngine(t *testing.T) (*Engine, *corestore.Store) {
	t.Helper()
	db, err := corestore.Open(zerolog.New(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Attach(corestore.SchemaRepository, ""))
	require.NoError(t, db.InstallRepositorySchema())

	ctx := corecontext.NewContext(zerolog.New(io.Discard), "alice")
	return New(db, ctx), db
}

func insertFakeBlob(t *testing.T, db *corestore.Store, uuid string) int64 {
	t.Helper()
	r, err := db.DB().Exec(`INSERT INTO repository.blob(size, uuid, content) VALUES (1, ?, ?)`, uuid, []byte("x"))
	require.NoError(t, err)
	id, err := r.LastInsertId()
	require.NoError(t, err)
	return id
}

type recordingListener struct {
	name string
	seen []int64
	fail bool
}

func (l *recordingListener) Name() string { return l.name }
func (l *recordingListener) OnArtifact(rid int64, d *deck.Deck) error {
	l.seen = append(l.seen, rid)
	if l.fail {
		return errBoom
	}
	return nil
}

var errBoom = corecontext.New(corecontext.KindConsistency, "boom")

func TestCrosslinkCheckinRecordsEventAndLeaf(t *testing.T) {
	e, db := newTestEngine(t)
	rootHash := "1111111111111111111111111111111111111111"
	insertFakeBlob(t, db, rootHash)

	d := deck.New(deck.TypeCheckin)
	require.NoError(t, d.SetTimestamp(time.Now()))
	require.NoError(t, d.SetUser("alice"))
	require.NoError(t, d.SetComment("init"))

	rootRid := insertFakeBlob(t, db, "2222222222222222222222222222222222222222")

	sess, err := e.Begin()
	require.NoError(t, err)
	require.NoError(t, sess.Crosslink(rootRid, d))
	require.NoError(t, sess.Commit())

	tl, err := e.Timeline(10)
	require.NoError(t, err)
	require.Len(t, tl, 1)
	require.Equal(t, "ci", tl[0].Type)

	leaves, err := e.Leaves()
	require.NoError(t, err)
	require.Contains(t, leaves, rootRid)
}

func TestListenerFailureRollsBackSession(t *testing.T) {
	e, db := newTestEngine(t)
	rid := insertFakeBlob(t, db, "3333333333333333333333333333333333333333")

	lst := &recordingListener{name: "failing", fail: true}
	e.AddListener(lst)

	d := deck.New(deck.TypeCheckin)
	require.NoError(t, d.SetTimestamp(time.Now()))
	require.NoError(t, d.SetUser("bob"))
	require.NoError(t, d.SetComment("x"))

	sess, err := e.Begin()
	require.NoError(t, err)
	err = sess.Crosslink(rid, d)
	require.Error(t, err)
	err = sess.Commit()
	require.Error(t, err, "poisoned session must fail on commit")

	tl, err := e.Timeline(10)
	require.NoError(t, err)
	require.Empty(t, tl, "event insert must have been rolled back with the rest of the session")
}

func TestPropagatingTagInheritedByDescendant(t *testing.T) {
	e, db := newTestEngine(t)

	parentHash := "4444444444444444444444444444444444444444"
	parentRid := insertFakeBlob(t, db, parentHash)
	childHash := "5555555555555555555555555555555555555555"
	childRid := insertFakeBlob(t, db, childHash)

	_, err := db.DB().Exec(`INSERT INTO repository.plink(pid, cid, isprim, mtime) VALUES (?, ?, 1, 0)`, parentRid, childRid)
	require.NoError(t, err)

	ctl := deck.New(deck.TypeControl)
	require.NoError(t, ctl.SetTimestamp(time.Now()))
	require.NoError(t, ctl.SetUser("alice"))
	require.NoError(t, ctl.AddTag(deck.TCard{Kind: deck.TagPropagate, Name: "release", Hash: parentHash, Value: "1.0"}))

	controlRid := insertFakeBlob(t, db, "6666666666666666666666666666666666666666")

	sess, err := e.Begin()
	require.NoError(t, err)
	require.NoError(t, sess.Crosslink(controlRid, ctl))
	require.NoError(t, sess.Commit())

	val, ok, err := e.TagValue(childRid, "release")
	require.NoError(t, err)
	require.True(t, ok, "propagating tag must be inherited by descendant")
	require.Equal(t, "1.0", val)
}
