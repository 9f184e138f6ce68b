package scheduler

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/d-alleyne/mailpoet/internal/testutil"
)

func newPostgresTestQueue(t *testing.T) *PostgresQueue {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	db, err := sql.Open("pgx", testutil.GetPostgresDSN(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	q, err := NewPostgresQueue(db)
	require.NoError(t, err)

	// The jobs table is shared between tests; start from a clean slate.
	_, err = db.Exec(`DELETE FROM scheduled_jobs`)
	require.NoError(t, err)
	return q
}

func TestPostgresQueue(t *testing.T) {
	runQueueTests(t, newPostgresTestQueue(t))
}

func TestPostgresQueue_DelayedJob(t *testing.T) {
	runDelayedJobTest(t, newPostgresTestQueue(t))
}
