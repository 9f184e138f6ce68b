package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/d-alleyne/mailpoet/pkg/api"
)

// PostgresQueue is a persistent Queue backed by PostgreSQL. Dequeue claims a
// single row with SELECT ... FOR UPDATE SKIP LOCKED so multiple workers can
// poll the same table without double-claiming.
type PostgresQueue struct {
	db           *sql.DB
	pollInterval time.Duration
}

var _ Queue = (*PostgresQueue)(nil)

// NewPostgresQueue initializes the jobs table and returns the queue.
func NewPostgresQueue(db *sql.DB) (*PostgresQueue, error) {
	q := &PostgresQueue{
		db:           db,
		pollInterval: 100 * time.Millisecond,
	}
	if err := q.initSchema(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *PostgresQueue) initSchema() error {
	_, err := q.db.Exec(`
		CREATE TABLE IF NOT EXISTS scheduled_jobs (
			id          TEXT PRIMARY KEY,
			hook        TEXT NOT NULL,
			run_id      BIGINT NOT NULL,
			step_id     TEXT NOT NULL,
			enqueued_at BIGINT NOT NULL,
			not_before  BIGINT NOT NULL,
			attempts    INTEGER NOT NULL
		);`,
	)
	return err
}

func (q *PostgresQueue) Enqueue(ctx context.Context, hook string, args api.JobArgs) (string, error) {
	return q.EnqueueAt(ctx, time.Time{}, hook, args)
}

func (q *PostgresQueue) EnqueueAt(ctx context.Context, at time.Time, hook string, args api.JobArgs) (string, error) {
	now := time.Now()
	if at.IsZero() {
		at = now
	}
	job := Job{
		ID:         uuid.NewString(),
		Hook:       hook,
		Args:       args,
		EnqueuedAt: now,
		NotBefore:  at,
	}
	if err := q.insert(ctx, job); err != nil {
		return "", err
	}
	return job.ID, nil
}

func (q *PostgresQueue) Requeue(ctx context.Context, job Job) error {
	return q.insert(ctx, job)
}

func (q *PostgresQueue) insert(ctx context.Context, job Job) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO scheduled_jobs (id, hook, run_id, step_id, enqueued_at, not_before, attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID,
		job.Hook,
		job.Args.WorkflowRunID,
		job.Args.StepID,
		job.EnqueuedAt.UnixNano(),
		job.NotBefore.UnixNano(),
		job.Attempts,
	)
	return err
}

func (q *PostgresQueue) HasScheduled(ctx context.Context, hook string, args api.JobArgs) (bool, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM scheduled_jobs
		WHERE hook = $1 AND run_id = $2 AND step_id = $3`,
		hook, args.WorkflowRunID, args.StepID,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (q *PostgresQueue) Unschedule(ctx context.Context, hook string, args api.JobArgs) error {
	_, err := q.db.ExecContext(ctx, `
		DELETE FROM scheduled_jobs
		WHERE hook = $1 AND run_id = $2 AND step_id = $3`,
		hook, args.WorkflowRunID, args.StepID,
	)
	return err
}

func (q *PostgresQueue) Dequeue(ctx context.Context) (*Job, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		now := time.Now().UnixNano()

		tx, err := q.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}

		var (
			job                   Job
			enqueuedAt, notBefore int64
		)
		err = tx.QueryRowContext(ctx, `
			SELECT id, hook, run_id, step_id, enqueued_at, not_before, attempts
			FROM scheduled_jobs
			WHERE not_before <= $1
			ORDER BY not_before, enqueued_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1`, now,
		).Scan(&job.ID, &job.Hook, &job.Args.WorkflowRunID, &job.Args.StepID, &enqueuedAt, &notBefore, &job.Attempts)
		if err != nil {
			_ = tx.Rollback()
			if errors.Is(err, sql.ErrNoRows) {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(q.pollInterval):
					continue
				}
			}
			return nil, err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE id = $1`, job.ID); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}

		job.EnqueuedAt = time.Unix(0, enqueuedAt)
		job.NotBefore = time.Unix(0, notBefore)
		return &job, nil
	}
}

func (q *PostgresQueue) Len() int {
	var n int
	if err := q.db.QueryRow(`SELECT COUNT(*) FROM scheduled_jobs`).Scan(&n); err != nil {
		return 0
	}
	return n
}
