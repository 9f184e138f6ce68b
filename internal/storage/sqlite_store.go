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

// SQLiteStore implements WorkflowStore, RunStore, and RunLogStore on top of
// a SQLite database.
//
// It expects an *sql.DB opened with a SQLite driver; the caller imports the
// driver for its side effects, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ api.WorkflowStore = (*SQLiteStore)(nil)
	_ api.RunStore      = (*SQLiteStore)(nil)
	_ api.RunLogStore   = (*SQLiteStore)(nil)
)

// NewSQLiteStore initializes the required schema and returns the store.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS workflows (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			name           TEXT NOT NULL,
			status         TEXT NOT NULL,
			author_id      INTEGER NOT NULL,
			latest_version TEXT NOT NULL,
			created_at     INTEGER NOT NULL,
			updated_at     INTEGER NOT NULL,
			activated_at   INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS workflow_versions (
			version_id  TEXT PRIMARY KEY,
			workflow_id INTEGER NOT NULL,
			steps       TEXT NOT NULL,
			created_at  INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS workflow_runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			workflow_id INTEGER NOT NULL,
			version_id  TEXT NOT NULL,
			trigger_key TEXT NOT NULL,
			status      TEXT NOT NULL,
			subjects    TEXT NOT NULL,
			created_at  INTEGER NOT NULL,
			updated_at  INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS workflow_run_logs (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id       INTEGER NOT NULL,
			step_id      TEXT NOT NULL,
			status       TEXT NOT NULL,
			error        TEXT NOT NULL,
			completed_at INTEGER NOT NULL
		);`,
	)
	return err
}

func (s *SQLiteStore) CreateWorkflow(ctx context.Context, workflow *api.Workflow) error {
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
		INSERT INTO workflows (name, status, author_id, latest_version, created_at, updated_at, activated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		workflow.Name,
		string(workflow.Status),
		workflow.AuthorID,
		versionID,
		now.UnixNano(),
		now.UnixNano(),
		unixNano(workflow.ActivatedAt),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO workflow_versions (version_id, workflow_id, steps, created_at)
		VALUES (?, ?, ?, ?)`,
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

func (s *SQLiteStore) GetWorkflow(ctx context.Context, id int64) (*api.Workflow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT w.id, w.name, w.status, w.author_id, w.latest_version, v.steps,
		       w.created_at, w.updated_at, w.activated_at
		FROM workflows w
		JOIN workflow_versions v ON v.version_id = w.latest_version
		WHERE w.id = ?`,
		id,
	)
	wf, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workflow %d: %w", id, api.ErrWorkflowNotFound)
	}
	return wf, err
}

func (s *SQLiteStore) GetWorkflowVersion(ctx context.Context, id int64, versionID string) (*api.Workflow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT w.id, w.name, w.status, w.author_id, v.version_id, v.steps,
		       w.created_at, w.updated_at, w.activated_at
		FROM workflows w
		JOIN workflow_versions v ON v.workflow_id = w.id
		WHERE w.id = ? AND v.version_id = ?`,
		id, versionID,
	)
	wf, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish an unknown workflow from a purged version.
		var n int
		if probeErr := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM workflows WHERE id = ?`, id,
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

func (s *SQLiteStore) UpdateWorkflow(ctx context.Context, workflow *api.Workflow) error {
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
		SET name = ?, status = ?, latest_version = ?, updated_at = ?, activated_at = ?
		WHERE id = ?`,
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
		VALUES (?, ?, ?, ?)`,
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

func (s *SQLiteStore) ListActiveByTrigger(ctx context.Context, triggerKey string) ([]*api.Workflow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.id, w.name, w.status, w.author_id, w.latest_version, v.steps,
		       w.created_at, w.updated_at, w.activated_at
		FROM workflows w
		JOIN workflow_versions v ON v.version_id = w.latest_version
		WHERE w.status = ?`,
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

func (s *SQLiteStore) CreateRun(ctx context.Context, run *api.Run) error {
	subjects, err := encodeSubjects(run.Subjects)
	if err != nil {
		return err
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO workflow_runs (workflow_id, version_id, trigger_key, status, subjects, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.WorkflowID,
		run.VersionID,
		run.TriggerKey,
		string(run.Status),
		subjects,
		now.UnixNano(),
		now.UnixNano(),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	run.ID = id
	run.CreatedAt = now
	run.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id int64) (*api.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workflow_id, version_id, trigger_key, status, subjects, created_at, updated_at
		FROM workflow_runs
		WHERE id = ?`,
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

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, id int64, status api.RunStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE workflow_runs SET status = ?, updated_at = ? WHERE id = ?`,
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

func (s *SQLiteStore) CreateRunLog(ctx context.Context, log *api.RunLog) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO workflow_run_logs (run_id, step_id, status, error, completed_at)
		VALUES (?, ?, ?, ?, ?)`,
		log.RunID,
		log.StepID,
		string(log.Status),
		log.Error,
		unixNano(log.CompletedAt),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	log.ID = id
	return nil
}

func (s *SQLiteStore) ListRunLogs(ctx context.Context, runID int64) ([]*api.RunLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, step_id, status, error, completed_at
		FROM workflow_run_logs
		WHERE run_id = ?
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

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row scanner) (*api.Workflow, error) {
	var (
		wf                        api.Workflow
		status, steps             string
		created, updated, activat int64
	)
	if err := row.Scan(&wf.ID, &wf.Name, &status, &wf.AuthorID, &wf.VersionID, &steps, &created, &updated, &activat); err != nil {
		return nil, err
	}
	decoded, err := decodeSteps(steps)
	if err != nil {
		return nil, err
	}
	wf.Status = api.WorkflowStatus(status)
	wf.Steps = decoded
	wf.CreatedAt = timeFromNano(created)
	wf.UpdatedAt = timeFromNano(updated)
	wf.ActivatedAt = timeFromNano(activat)
	return &wf, nil
}
