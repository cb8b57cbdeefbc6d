package pathtracer

import (
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/fslcore/fsl/internal/corestore"
)

// buildChain creates a linear commit chain a -> b -> c -> d of fake blob
// rows linked by plink, for exercising shortest-path queries without a
// real deck/crosslink round trip.
func buildChain(t *testing.T) *corestore.Store {
	t.Helper()
	db, err := corestore.Open(zerolog.New(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Attach(corestore.SchemaRepository, ""))
	require.NoError(t, db.InstallRepositorySchema())

	var rids []int64
	for i := 0; i < 4; i++ {
		r, err := db.DB().Exec(`INSERT INTO repository.blob(size, uuid) VALUES (1, ?)`, string(rune('a'+i)))
		require.NoError(t, err)
		id, err := r.LastInsertId()
		require.NoError(t, err)
		rids = append(rids, id)
	}
	for i := 1; i < len(rids); i++ {
		_, err := db.DB().Exec(`INSERT INTO repository.plink(pid, cid, isprim, mtime) VALUES (?, ?, 1, 0)`, rids[i-1], rids[i])
		require.NoError(t, err)
	}
	return db
}

func TestShortestOneWayAlongChain(t *testing.T) {
	db := buildChain(t)
	var rids []int64
	rows, err := db.DB().Query(`SELECT rid FROM repository.blob ORDER BY rid`)
	require.NoError(t, err)
	for rows.Next() {
		var rid int64
		require.NoError(t, rows.Scan(&rid))
		rids = append(rids, rid)
	}
	rows.Close()

	tr := New(db.DB(), ModeOneWay)
	path, err := tr.Shortest(rids[0], rids[3])
	require.NoError(t, err)
	require.Equal(t, 3, path.Length)
	require.Equal(t, rids, path.Rids)
}

func TestShortestOneWayHasNoReversePath(t *testing.T) {
	db := buildChain(t)
	var rids []int64
	rows, err := db.DB().Query(`SELECT rid FROM repository.blob ORDER BY rid`)
	require.NoError(t, err)
	for rows.Next() {
		var rid int64
		require.NoError(t, rows.Scan(&rid))
		rids = append(rids, rid)
	}
	rows.Close()

	tr := New(db.DB(), ModeOneWay)
	_, err = tr.Shortest(rids[3], rids[0])
	require.Error(t, err)
}

func TestShortestUndirectedFindsReversePath(t *testing.T) {
	db := buildChain(t)
	var rids []int64
	rows, err := db.DB().Query(`SELECT rid FROM repository.blob ORDER BY rid`)
	require.NoError(t, err)
	for rows.Next() {
		var rid int64
		require.NoError(t, rows.Scan(&rid))
		rids = append(rids, rid)
	}
	rows.Close()

	tr := New(db.DB(), ModeUndirected)
	path, err := tr.Shortest(rids[3], rids[0])
	require.NoError(t, err)
	require.Equal(t, 3, path.Length)
}

func TestSameStartAndEndIsZeroLength(t *testing.T) {
	tr := New(nil, ModeOneWay)
	path, err := tr.Shortest(42, 42)
	require.NoError(t, err)
	require.Equal(t, 0, path.Length)
}
