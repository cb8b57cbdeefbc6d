package corestore

import (
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(zerolog.New(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Attach(SchemaRepository, ""))
	require.NoError(t, s.Attach(SchemaLocal, ""))
	require.NoError(t, s.InstallRepositorySchema())
	require.NoError(t, s.InstallLocalSchema())
	return s
}

func TestAttachAndInstallSchema(t *testing.T) {
	s := openTestStore(t)
	require.True(t, s.IsAttached(SchemaRepository))
	require.True(t, s.IsAttached(SchemaLocal))

	_, err := s.DB().Exec("INSERT INTO repository.blob(uuid, size, content) VALUES (?, ?, ?)", "deadbeef", 4, []byte("abcd"))
	require.NoError(t, err)
}

func TestDoubleAttachRejected(t *testing.T) {
	s := openTestStore(t)
	err := s.Attach(SchemaRepository, "")
	require.Error(t, err)
}

func TestNestedTransactionCommitsOnce(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Begin())
	require.NoError(t, s.Begin()) // nested
	_, err := s.DB().Exec("INSERT INTO repository.blob(uuid, size) VALUES ('a', 1)")
	require.NoError(t, err)
	require.NoError(t, s.Commit()) // inner: no-op
	require.NoError(t, s.Commit()) // outer: real commit

	var count int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM repository.blob").Scan(&count))
	require.Equal(t, 1, count)
}

func TestPoisonedTransactionRollsBackOnOutermostCommit(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Begin())
	require.NoError(t, s.Begin())
	_, err := s.DB().Exec("INSERT INTO repository.blob(uuid, size) VALUES ('b', 1)")
	require.NoError(t, err)
	s.Poison()
	require.NoError(t, s.Commit()) // inner

	err = s.Commit() // outer: rolls back, returns consistency error
	require.Error(t, err)

	var count int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM repository.blob").Scan(&count))
	require.Equal(t, 0, count)
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	s := openTestStore(t)

	err := s.WithTransaction(func() error {
		_, execErr := s.DB().Exec("INSERT INTO repository.blob(uuid, size) VALUES ('c', 1)")
		require.NoError(t, execErr)
		return errors.New("boom")
	})
	require.Error(t, err)

	var count int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM repository.blob").Scan(&count))
	require.Equal(t, 0, count, "failed WithTransaction body must leave no committed rows")
}

func TestStatementCacheReusesPreparedStatement(t *testing.T) {
	s := openTestStore(t)
	stmt1, err := s.Prepare("SELECT COUNT(*) FROM repository.blob")
	require.NoError(t, err)
	stmt2, err := s.Prepare("SELECT COUNT(*) FROM repository.blob")
	require.NoError(t, err)
	require.Same(t, stmt1, stmt2)
}
