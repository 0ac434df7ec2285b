package sqlitestore

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_InMemory(t *testing.T) {
	s := openTestStore(t)
	assert.Equal(t, ":memory:", s.Location())
}

func TestExecAndQueryRowInt64(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Exec(ctx, `CREATE TABLE buffer (
		row_id INTEGER PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		event_blob BLOB NOT NULL,
		message_blob BLOB,
		retry_attempt INTEGER NOT NULL
	)`)
	require.NoError(t, err)

	_, err = s.Exec(ctx, "INSERT INTO buffer (timestamp, event_blob, message_blob, retry_attempt) VALUES (?, ?, ?, ?)",
		1000, []byte("event"), []byte("msg"), 0)
	require.NoError(t, err)

	count, err := s.QueryRowInt64(ctx, "SELECT COUNT(*) FROM buffer")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestQueryRows_IteratesAllRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Exec(ctx, "CREATE TABLE t (n INTEGER)")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := s.Exec(ctx, "INSERT INTO t (n) VALUES (?)", i)
		require.NoError(t, err)
	}

	var got []int
	err = s.QueryRows(ctx, "SELECT n FROM t ORDER BY n", func(rows *sql.Rows) error {
		var n int
		if err := rows.Scan(&n); err != nil {
			return err
		}
		got = append(got, n)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Exec(ctx, "CREATE TABLE t (n INTEGER)")
	require.NoError(t, err)

	err = s.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO t (n) VALUES (1)"); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.Error(t, err)

	count, err := s.QueryRowInt64(ctx, "SELECT COUNT(*) FROM t")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestVacuumAndPragmas(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SetJournalMode(ctx, JournalMemory))
	require.NoError(t, s.SetForeignKeys(ctx, true))
	require.NoError(t, s.Vacuum(ctx))
}
