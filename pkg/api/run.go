package api

import "time"

// RunStatus represents the lifecycle state of a workflow run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// SubjectData is one subject descriptor captured at trigger time: the key of
// a registered Subject plus the arguments it needs to load its payload.
type SubjectData struct {
	Key  string         `json:"key"`
	Args map[string]any `json:"args"`
}

// Run is one execution instance of a workflow. It is pinned to the exact
// workflow version that was active when the trigger fired, so concurrent
// authoring cannot change what a running instance does next.
//
// A run is never structurally modified after creation; only its status
// transitions (running -> complete | failed).
type Run struct {
	ID         int64
	WorkflowID int64
	VersionID  string
	TriggerKey string
	Status     RunStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time

	// Subjects holds the subject data captured when the trigger fired.
	// Multiple entries may share a key (e.g. several recipients).
	Subjects []SubjectData
}

// NewRun creates a run for the given workflow version in the initial
// running state.
func NewRun(workflow *Workflow, triggerKey string, subjects []SubjectData) *Run {
	return &Run{
		WorkflowID: workflow.ID,
		VersionID:  workflow.VersionID,
		TriggerKey: triggerKey,
		Status:     RunStatusRunning,
		Subjects:   subjects,
	}
}

// SubjectsByKey groups the run's subject data by subject key, preserving
// the captured order within each group.
func (r *Run) SubjectsByKey() map[string][]SubjectData {
	grouped := make(map[string][]SubjectData)
	for _, data := range r.Subjects {
		grouped[data.Key] = append(grouped[data.Key], data)
	}
	return grouped
}

// RunLogStatus is the outcome recorded for one step-execution attempt.
type RunLogStatus string

const (
	RunLogStatusSuccess RunLogStatus = "success"
	RunLogStatusFailed  RunLogStatus = "failed"
)

// RunLog is an append-only audit record of a single step-execution attempt.
// It exists for inspection and extension hooks, never for control flow.
type RunLog struct {
	ID          int64
	RunID       int64
	StepID      string
	Status      RunLogStatus
	Error       string
	CompletedAt time.Time
}

// NewRunLog creates a log entry for one attempt at the given (run, step).
func NewRunLog(runID int64, stepID string) *RunLog {
	return &RunLog{RunID: runID, StepID: stepID}
}

// MarkSucceeded records a successful attempt.
func (l *RunLog) MarkSucceeded() {
	l.Status = RunLogStatusSuccess
	l.CompletedAt = time.Now()
}

// MarkFailed records a failed attempt along with the captured error.
func (l *RunLog) MarkFailed(err error) {
	l.Status = RunLogStatusFailed
	if err != nil {
		l.Error = err.Error()
	}
	l.CompletedAt = time.Now()
}
