package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/d-alleyne/mailpoet/pkg/api"
)

// PostgresStore implements WorkflowStore, RunStore, and RunLogStore on top
// of PostgreSQL.
//
// It expects an *sql.DB opened with a PostgreSQL driver, e.g.:
//
//	import _ "github.com/jackc/pgx/v5/stdlib"
type PostgresStore struct {
	db *sql.DB
}

var (
	_ api.WorkflowStore = (*PostgresStore)(nil)
	_ api.RunStore      = (*PostgresStore)(nil)
	_ api.RunLogStore   = (*PostgresStore)(nil)
)

// NewPostgresStore initializes the required schema and returns the store.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS workflows (
			id             BIGSERIAL PRIMARY KEY,
			name           TEXT NOT NULL,
			status         TEXT NOT NULL,
			author_id      BIGINT NOT NULL,
			latest_version TEXT NOT NULL,
			created_at     BIGINT NOT NULL,
			updated_at     BIGINT NOT NULL,
			activated_at   BIGINT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS workflow_versions (
			version_id  TEXT PRIMARY KEY,
			workflow_id BIGINT NOT NULL,
			steps       TEXT NOT NULL,
			created_at  BIGINT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS workflow_runs (
			id          BIGSERIAL PRIMARY KEY,
			workflow_id BIGINT NOT NULL,
			version_id  TEXT NOT NULL,
			trigger_key TEXT NOT NULL,
			status      TEXT NOT NULL,
			subjects    TEXT NOT NULL,
			created_at  BIGINT NOT NULL,
			updated_at  BIGINT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS workflow_run_logs (
			id           BIGSERIAL PRIMARY KEY,
			run_id       BIGINT NOT NULL,
			step_id      TEXT NOT NULL,
			status       TEXT NOT NULL,
			error        TEXT NOT NULL,
			completed_at BIGINT NOT NULL
		);`,
	)
	return err
}

func (s *PostgresStore) CreateWorkflow(ctx context.Context, workflow *api.Workflow) error {
	steps, err := encodeSteps(workflow.Steps)
	if err != nil {
		return err
	}

	now := time.Now()
	versionID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var id int64
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO workflows (name, status, author_id, latest_version, created_at, updated_at, activated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		workflow.Name,
		string(workflow.Status),
		workflow.AuthorID,
		versionID,
		now.UnixNano(),
		now.UnixNano(),
		unixNano(workflow.ActivatedAt),
	).Scan(&id); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO workflow_versions (version_id, workflow_id, steps, created_at)
		VALUES ($1, $2, $3, $4)`,
		versionID, id, steps, now.UnixNano(),
	); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	workflow.ID = id
	workflow.VersionID = versionID
	workflow.CreatedAt = now
	workflow.UpdatedAt = now
	return nil
}

func (s *PostgresStore) GetWorkflow(ctx context.Context, id int64) (*api.Workflow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT w.id, w.name, w.status, w.author_id, w.latest_version, v.steps,
		       w.created_at, w.updated_at, w.activated_at
		FROM workflows w
		JOIN workflow_versions v ON v.version_id = w.latest_version
		WHERE w.id = $1`,
		id,
	)
	wf, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workflow %d: %w", id, api.ErrWorkflowNotFound)
	}
	return wf, err
}

func (s *PostgresStore) GetWorkflowVersion(ctx context.Context, id int64, versionID string) (*api.Workflow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT w.id, w.name, w.status, w.author_id, v.version_id, v.steps,
		       w.created_at, w.updated_at, w.activated_at
		FROM workflows w
		JOIN workflow_versions v ON v.workflow_id = w.id
		WHERE w.id = $1 AND v.version_id = $2`,
		id, versionID,
	)
	wf, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish an unknown workflow from a purged version.
		var n int
		if probeErr := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM workflows WHERE id = $1`, id,
		).Scan(&n); probeErr != nil {
			return nil, probeErr
		}
		if n == 0 {
			return nil, fmt.Errorf("workflow %d: %w", id, api.ErrWorkflowNotFound)
		}
		return nil, fmt.Errorf("workflow %d version %q: %w", id, versionID, api.ErrVersionNotFound)
	}
	return wf, err
}

func (s *PostgresStore) UpdateWorkflow(ctx context.Context, workflow *api.Workflow) error {
	steps, err := encodeSteps(workflow.Steps)
	if err != nil {
		return err
	}

	now := time.Now()
	versionID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE workflows
		SET name = $1, status = $2, latest_version = $3, updated_at = $4, activated_at = $5
		WHERE id = $6`,
		workflow.Name,
		string(workflow.Status),
		versionID,
		now.UnixNano(),
		unixNano(workflow.ActivatedAt),
		workflow.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("workflow %d: %w", workflow.ID, api.ErrWorkflowNotFound)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO workflow_versions (version_id, workflow_id, steps, created_at)
		VALUES ($1, $2, $3, $4)`,
		versionID, workflow.ID, steps, now.UnixNano(),
	); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	workflow.VersionID = versionID
	workflow.UpdatedAt = now
	return nil
}

func (s *PostgresStore) ListActiveByTrigger(ctx context.Context, triggerKey string) ([]*api.Workflow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.id, w.name, w.status, w.author_id, w.latest_version, v.steps,
		       w.created_at, w.updated_at, w.activated_at
		FROM workflows w
		JOIN workflow_versions v ON v.version_id = w.latest_version
		WHERE w.status = $1`,
		string(api.WorkflowStatusActive),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*api.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		if wf.Trigger(triggerKey) != nil {
			out = append(out, wf)
		}
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *api.Run) error {
	subjects, err := encodeSubjects(run.Subjects)
	if err != nil {
		return err
	}

	now := time.Now()
	var id int64
	if err := s.db.QueryRowContext(ctx, `
		INSERT INTO workflow_runs (workflow_id, version_id, trigger_key, status, subjects, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		run.WorkflowID,
		run.VersionID,
		run.TriggerKey,
		string(run.Status),
		subjects,
		now.UnixNano(),
		now.UnixNano(),
	).Scan(&id); err != nil {
		return err
	}

	run.ID = id
	run.CreatedAt = now
	run.UpdatedAt = now
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id int64) (*api.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workflow_id, version_id, trigger_key, status, subjects, created_at, updated_at
		FROM workflow_runs
		WHERE id = $1`,
		id,
	)

	var (
		run          api.Run
		status       string
		subjects     string
		created, upd int64
	)
	if err := row.Scan(&run.ID, &run.WorkflowID, &run.VersionID, &run.TriggerKey, &status, &subjects, &created, &upd); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("workflow run %d: %w", id, api.ErrRunNotFound)
		}
		return nil, err
	}

	decoded, err := decodeSubjects(subjects)
	if err != nil {
		return nil, err
	}
	run.Status = api.RunStatus(status)
	run.Subjects = decoded
	run.CreatedAt = timeFromNano(created)
	run.UpdatedAt = timeFromNano(upd)
	return &run, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, id int64, status api.RunStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE workflow_runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UnixNano(), id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("workflow run %d: %w", id, api.ErrRunNotFound)
	}
	return nil
}

func (s *PostgresStore) CreateRunLog(ctx context.Context, log *api.RunLog) error {
	var id int64
	if err := s.db.QueryRowContext(ctx, `
		INSERT INTO workflow_run_logs (run_id, step_id, status, error, completed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		log.RunID,
		log.StepID,
		string(log.Status),
		log.Error,
		unixNano(log.CompletedAt),
	).Scan(&id); err != nil {
		return err
	}
	log.ID = id
	return nil
}

func (s *PostgresStore) ListRunLogs(ctx context.Context, runID int64) ([]*api.RunLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, step_id, status, error, completed_at
		FROM workflow_run_logs
		WHERE run_id = $1
		ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*api.RunLog
	for rows.Next() {
		var (
			log       api.RunLog
			status    string
			completed int64
		)
		if err := rows.Scan(&log.ID, &log.RunID, &log.StepID, &status, &log.Error, &completed); err != nil {
			return nil, err
		}
		log.Status = api.RunLogStatus(status)
		log.CompletedAt = timeFromNano(completed)
		out = append(out, &log)
	}
	return out, rows.Err()
}
