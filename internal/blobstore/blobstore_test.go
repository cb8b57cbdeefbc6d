package blobstore

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/fslcore/fsl/internal/corecontext"
	"github.com/fslcore/fsl/internal/corestore"
	"github.com/fslcore/fsl/internal/hashcodec"
)

// fakeRemoteCache is an in-process stand-in for cache/redis.Cache,
// exercising Store's RemoteCache wiring without a real Redis server.
type fakeRemoteCache struct {
	mu      sync.Mutex
	byHash  map[string][]byte
	gets    int
	puts    int
	invalid int
}

func newFakeRemoteCache() *fakeRemoteCache {
	return &fakeRemoteCache{byHash: make(map[string][]byte)}
}

func (f *fakeRemoteCache) GetBlob(_ context.Context, hash string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if content, ok := f.byHash[hash]; ok {
		return content, nil
	}
	return nil, corecontext.New(corecontext.KindNotFound, "not cached")
}

func (f *fakeRemoteCache) PutBlob(_ context.Context, hash string, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	f.byHash[hash] = content
	return nil
}

func (f *fakeRemoteCache) Invalidate(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalid++
	delete(f.byHash, hash)
	return nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := corestore.Open(zerolog.New(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Attach(corestore.SchemaRepository, ""))
	require.NoError(t, db.InstallRepositorySchema())

	ctx := corecontext.NewContext(zerolog.New(io.Discard), "alice")
	return New(db, ctx, hashcodec.PolicySHA3Only)
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	rid, hash, err := s.Put([]byte("hello\n"))
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	got, err := s.Get(rid)
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(got))
}

func TestPutIsIdempotentByContentHash(t *testing.T) {
	s := newTestStore(t)
	rid1, hash1, err := s.Put([]byte("same content"))
	require.NoError(t, err)
	rid2, hash2, err := s.Put([]byte("same content"))
	require.NoError(t, err)
	require.Equal(t, rid1, rid2)
	require.Equal(t, hash1, hash2)
}

func TestPhantomTrackingAndGetReportsPhantom(t *testing.T) {
	s := newTestStore(t)
	rid, err := s.PutPhantom("deadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	require.NoError(t, err)

	isPhantom, err := s.IsPhantom(rid)
	require.NoError(t, err)
	require.True(t, isPhantom)

	_, err = s.Get(rid)
	require.Error(t, err)
	require.Equal(t, corecontext.KindPhantom, corecontext.KindOf(err))
}

func TestDeltifyThenGetReconstructsOriginal(t *testing.T) {
	s := newTestStore(t)
	srcRid, _, err := s.Put([]byte("the quick brown fox jumps over the lazy dog"))
	require.NoError(t, err)
	tgtRid, _, err := s.Put([]byte("the quick brown fox leaps over the lazy dog"))
	require.NoError(t, err)

	require.NoError(t, s.Deltify(tgtRid, srcRid))

	got, err := s.Get(tgtRid)
	require.NoError(t, err)
	require.Equal(t, "the quick brown fox leaps over the lazy dog", string(got))
}

func TestGetPopulatesRemoteCacheOnMiss(t *testing.T) {
	s := newTestStore(t)
	remote := newFakeRemoteCache()
	s.SetRemoteCache(remote)

	rid, hash, err := s.Put([]byte("cached content"))
	require.NoError(t, err)

	got, err := s.Get(rid)
	require.NoError(t, err)
	require.Equal(t, "cached content", string(got))
	require.Equal(t, 1, remote.puts)

	cached, ok := remote.byHash[hash]
	require.True(t, ok)
	require.Equal(t, "cached content", string(cached))
}

func TestGetServesFromRemoteCacheWithoutHittingStorage(t *testing.T) {
	s := newTestStore(t)
	remote := newFakeRemoteCache()
	s.SetRemoteCache(remote)

	rid, hash, err := s.Put([]byte("cached content"))
	require.NoError(t, err)
	require.NoError(t, remote.PutBlob(context.Background(), hash, []byte("swapped content")))

	got, err := s.Get(rid)
	require.NoError(t, err)
	require.Equal(t, "swapped content", string(got), "Get must prefer the remote cache over re-reading storage")
}

func TestShunInvalidatesRemoteCache(t *testing.T) {
	s := newTestStore(t)
	remote := newFakeRemoteCache()
	s.SetRemoteCache(remote)

	_, hash, err := s.Put([]byte("bad content"))
	require.NoError(t, err)
	_, err = s.Get(hashOnlyRidFor(t, s, hash))
	require.NoError(t, err)

	require.NoError(t, s.Shun(hash, "reported abusive"))
	require.Equal(t, 1, remote.invalid)
	_, ok := remote.byHash[hash]
	require.False(t, ok)
}

func hashOnlyRidFor(t *testing.T, s *Store, hash string) Rid {
	t.Helper()
	rid, ok, err := s.lookupByHash(hash)
	require.NoError(t, err)
	require.True(t, ok)
	return rid
}

func TestShunRejectsFutureReinsertion(t *testing.T) {
	s := newTestStore(t)
	_, hash, err := s.Put([]byte("bad content"))
	require.NoError(t, err)

	require.NoError(t, s.Shun(hash, "reported abusive"))

	_, _, err = s.Put([]byte("bad content"))
	require.Error(t, err)
	require.Equal(t, corecontext.KindAccess, corecontext.KindOf(err))
}
