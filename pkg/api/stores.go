package api

import "context"

// WorkflowStore persists versioned workflow definitions.
//
// The engine reads it on every step advance (always by pinned version);
// only the update controller writes to it after creation.
type WorkflowStore interface {
	// CreateWorkflow persists a new workflow, assigning its id and initial
	// version id. The passed workflow is updated in place.
	CreateWorkflow(ctx context.Context, workflow *Workflow) error

	// GetWorkflow returns the latest version of the workflow.
	// Fails with ErrWorkflowNotFound for an unknown id.
	GetWorkflow(ctx context.Context, id int64) (*Workflow, error)

	// GetWorkflowVersion returns the exact stored version.
	// Fails with ErrVersionNotFound when the version has been purged.
	GetWorkflowVersion(ctx context.Context, id int64, versionID string) (*Workflow, error)

	// UpdateWorkflow persists the workflow as a new version, assigning a
	// fresh version id in place. Historical versions are retained.
	UpdateWorkflow(ctx context.Context, workflow *Workflow) error

	// ListActiveByTrigger returns the latest versions of all active
	// workflows containing a trigger step with the given key.
	ListActiveByTrigger(ctx context.Context, triggerKey string) ([]*Workflow, error)
}

// RunStore persists workflow runs.
type RunStore interface {
	// CreateRun persists a new run, assigning its id in place.
	CreateRun(ctx context.Context, run *Run) error

	// GetRun fails with ErrRunNotFound for an unknown id.
	GetRun(ctx context.Context, id int64) (*Run, error)

	// UpdateRunStatus transitions the run's status.
	// Fails with ErrRunNotFound for an unknown id.
	UpdateRunStatus(ctx context.Context, id int64, status RunStatus) error
}

// RunLogStore persists the append-only step-execution audit log.
type RunLogStore interface {
	// CreateRunLog appends a log entry, assigning its id in place.
	CreateRunLog(ctx context.Context, log *RunLog) error

	// ListRunLogs returns all log entries of a run in append order.
	ListRunLogs(ctx context.Context, runID int64) ([]*RunLog, error)
}

// StepController advances workflow runs one step at a time. It is invoked
// by workers for every dequeued step job.
type StepController interface {
	// Handle executes the step identified by args and schedules the run's
	// designated successor. See the package documentation of
	// internal/engine for the full per-invocation protocol.
	Handle(ctx context.Context, args JobArgs) error
}

// UpdatePatch is a partial workflow edit. Nil fields are left untouched.
//
// Steps, when present, must contain exactly the existing step set (same
// ids, same shape); only each step's Args may differ.
type UpdatePatch struct {
	Name   *string
	Status *WorkflowStatus
	Steps  map[string]*Step
}

// UpdateController applies shape-locked partial edits to stored workflows.
type UpdateController interface {
	UpdateWorkflow(ctx context.Context, id int64, patch UpdatePatch) (*Workflow, error)
}
