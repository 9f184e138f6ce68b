package scheduler

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func newSQLiteTestQueue(t *testing.T) *SQLiteQueue {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "queue.db")
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_journal=WAL")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	q, err := NewSQLiteQueue(db)
	require.NoError(t, err)
	return q
}

func TestSQLiteQueue(t *testing.T) {
	t.Parallel()
	runQueueTests(t, newSQLiteTestQueue(t))
}

func TestSQLiteQueue_DelayedJob(t *testing.T) {
	t.Parallel()
	runDelayedJobTest(t, newSQLiteTestQueue(t))
}

func TestSQLiteQueue_SurvivesReopen(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "queue.db")
	dsn := "file:" + dbPath + "?_journal=WAL"

	db1, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	q1, err := NewSQLiteQueue(db1)
	require.NoError(t, err)

	_, err = q1.Enqueue(t.Context(), "test/hook", jobArgsFixture())
	require.NoError(t, err)
	require.NoError(t, db1.Close())

	db2, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db2.Close()
	q2, err := NewSQLiteQueue(db2)
	require.NoError(t, err)
	require.Equal(t, 1, q2.Len())
}
