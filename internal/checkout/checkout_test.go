package checkout

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/fslcore/fsl/internal/blobstore"
	"github.com/fslcore/fsl/internal/cache/deckcache"
	"github.com/fslcore/fsl/internal/corecontext"
	"github.com/fslcore/fsl/internal/corestore"
	"github.com/fslcore/fsl/internal/crosslink"
	"github.com/fslcore/fsl/internal/deck"
	"github.com/fslcore/fsl/internal/hashcodec"
)

type testRig struct {
	engine *Engine
	blobs  *blobstore.Store
	links  *crosslink.Engine
	db     *corestore.Store
	root   string
	decks  *deckcache.Cache
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	db, err := corestore.Open(zerolog.New(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Attach(corestore.SchemaRepository, ""))
	require.NoError(t, db.Attach(corestore.SchemaLocal, ""))
	require.NoError(t, db.InstallRepositorySchema())
	require.NoError(t, db.InstallLocalSchema())

	decks := deckcache.New(time.Minute, 64)
	t.Cleanup(decks.Stop)

	ctx := corecontext.NewContext(zerolog.New(io.Discard), "alice")
	ctx.SetDeckCache(decks)
	blobs := blobstore.New(db, ctx, hashcodec.PolicySHA3Only)
	links := crosslink.New(db, ctx)

	root := t.TempDir()
	engine, err := New(db, blobs, links, ctx, root)
	require.NoError(t, err)

	return &testRig{engine: engine, blobs: blobs, links: links, db: db, root: root, decks: decks}
}

// seedInitialCommit builds a one-file checkin manifest directly (bypassing
// Commit, which requires an existing checkout to scan) and checks it out.
func seedInitialCommit(t *testing.T, r *testRig) int64 {
	t.Helper()
	_, fileHash, err := r.blobs.Put([]byte("hello\n"))
	require.NoError(t, err)

	d := deck.New(deck.TypeCheckin)
	require.NoError(t, d.SetTimestamp(time.Now()))
	require.NoError(t, d.SetUser("alice"))
	require.NoError(t, d.SetComment("init"))
	require.NoError(t, d.AddFile(deck.FCard{Path: "README", Hash: &fileHash}))

	out, err := d.Output(true, true)
	require.NoError(t, err)
	manifestRid, _, err := r.blobs.Put(out)
	require.NoError(t, err)

	sess, err := r.links.Begin()
	require.NoError(t, err)
	require.NoError(t, sess.Crosslink(int64(manifestRid), d))
	require.NoError(t, sess.Commit())

	require.NoError(t, r.engine.Checkout(int64(manifestRid), d))
	return int64(manifestRid)
}

func TestCheckoutExtractsFilesAndRecordsVersion(t *testing.T) {
	r := newTestRig(t)
	rid := seedInitialCommit(t, r)

	got, err := os.ReadFile(filepath.Join(r.root, "README"))
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(got))

	cur, err := r.engine.CheckedOutVersion()
	require.NoError(t, err)
	require.Equal(t, rid, cur)
}

func TestScanDetectsEditedFile(t *testing.T) {
	r := newTestRig(t)
	seedInitialCommit(t, r)

	require.NoError(t, os.WriteFile(filepath.Join(r.root, "README"), []byte("changed\n"), 0o644))

	changes, err := r.engine.Scan()
	require.NoError(t, err)

	var found bool
	for _, c := range changes {
		if c.Path == "README" {
			found = true
			require.Equal(t, Edited, c.Kind)
		}
	}
	require.True(t, found)
}

func TestScanDetectsMissingFile(t *testing.T) {
	r := newTestRig(t)
	seedInitialCommit(t, r)
	require.NoError(t, os.Remove(filepath.Join(r.root, "README")))

	changes, err := r.engine.Scan()
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, Missing, changes[0].Kind)
}

func TestCommitCreatesNewVersionFromEdits(t *testing.T) {
	r := newTestRig(t)
	seedInitialCommit(t, r)

	require.NoError(t, os.WriteFile(filepath.Join(r.root, "README"), []byte("v2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(r.root, "NEWFILE"), []byte("fresh\n"), 0o644))
	require.NoError(t, r.engine.Add("NEWFILE"))

	newRid, err := r.engine.Commit(CommitOptions{User: "alice", Comment: "v2"})
	require.NoError(t, err)
	require.NotZero(t, newRid)

	cur, err := r.engine.CheckedOutVersion()
	require.NoError(t, err)
	require.Equal(t, newRid, cur)
}

func TestCommitIsNoopWithoutChanges(t *testing.T) {
	r := newTestRig(t)
	seedInitialCommit(t, r)

	_, err := r.engine.Commit(CommitOptions{User: "alice", Comment: "no changes"})
	require.Error(t, err)
	require.Equal(t, corecontext.KindNoop, corecontext.KindOf(err))
}

func TestRevertRestoresEditedFile(t *testing.T) {
	r := newTestRig(t)
	seedInitialCommit(t, r)

	require.NoError(t, os.WriteFile(filepath.Join(r.root, "README"), []byte("clobbered\n"), 0o644))
	require.NoError(t, r.engine.Revert("README"))

	got, err := os.ReadFile(filepath.Join(r.root, "README"))
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(got))
}

func TestRevertPopulatesAndReusesDeckCache(t *testing.T) {
	r := newTestRig(t)
	manifestRid := seedInitialCommit(t, r)

	hash, ok, err := r.blobs.HashForRid(blobstore.Rid(manifestRid))
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, r.decks.Exists(hash), "manifest must not be cached before the first Revert")

	require.NoError(t, os.WriteFile(filepath.Join(r.root, "README"), []byte("clobbered\n"), 0o644))
	require.NoError(t, r.engine.Revert("README"))
	require.True(t, r.decks.Exists(hash), "Revert must populate the context's deck cache")

	cached, err := r.decks.Get(hash)
	require.NoError(t, err)
	d, ok := cached.(*deck.Deck)
	require.True(t, ok, "cached value must be a *deck.Deck")
	require.Equal(t, "init", d.Comment)

	require.NoError(t, os.WriteFile(filepath.Join(r.root, "README"), []byte("clobbered again\n"), 0o644))
	require.NoError(t, r.engine.Revert("README"), "a second Revert must serve the manifest from cache")

	got, err := os.ReadFile(filepath.Join(r.root, "README"))
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(got))
}

func TestResolveRejectsPathEscape(t *testing.T) {
	r := newTestRig(t)
	_, err := r.engine.resolve("../../etc/passwd")
	require.Error(t, err)
}
