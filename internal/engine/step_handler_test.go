package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/d-alleyne/mailpoet/internal/scheduler"
	"github.com/d-alleyne/mailpoet/internal/storage"
	"github.com/d-alleyne/mailpoet/pkg/api"
	"github.com/d-alleyne/mailpoet/pkg/hooks"
	"github.com/d-alleyne/mailpoet/pkg/registry"
)

type fixture struct {
	store   *storage.MemoryStore
	queue   *scheduler.InMemoryQueue
	reg     *registry.Registry
	hooks   *hooks.Hooks
	handler *StepHandler
	action  *stubAction
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reg := registry.New()
	action := &stubAction{key: "test:action"}
	require.NoError(t, reg.AddAction(action))
	require.NoError(t, reg.AddTrigger(&stubTrigger{key: "test:trigger"}))
	require.NoError(t, reg.AddSubject(&stubSubject{key: "test:subject", payload: "payload"}))

	store := storage.NewMemoryStore()
	queue := scheduler.NewInMemoryQueue()
	h := hooks.New()

	handler := NewStepHandler(StepHandlerConfig{
		Workflows: store,
		Runs:      store,
		Logs:      store,
		Scheduler: queue,
		Registry:  reg,
		Hooks:     h,
	})
	handler.AddStepRunner(api.StepTypeAction, NewActionStepRunner(reg))

	return &fixture{
		store:   store,
		queue:   queue,
		reg:     reg,
		hooks:   h,
		handler: handler,
		action:  action,
	}
}

// seedRun persists a two-action workflow (root -> t1 -> a1 -> a2) and a
// running run pinned to it.
func (f *fixture) seedRun(t *testing.T, subjects []api.SubjectData) (*api.Workflow, *api.Run) {
	t.Helper()
	ctx := context.Background()

	workflow := &api.Workflow{
		Name:   "welcome",
		Status: api.WorkflowStatusActive,
		Steps: map[string]*api.Step{
			api.RootStepID: {
				ID:        api.RootStepID,
				Type:      api.StepTypeRoot,
				Key:       "core:root",
				NextSteps: []api.NextStep{{ID: "t1"}},
			},
			"t1": {
				ID:        "t1",
				Type:      api.StepTypeTrigger,
				Key:       "test:trigger",
				NextSteps: []api.NextStep{{ID: "a1"}},
			},
			"a1": {
				ID:        "a1",
				Type:      api.StepTypeAction,
				Key:       "test:action",
				Args:      map[string]any{"subject": "first"},
				NextSteps: []api.NextStep{{ID: "a2"}},
			},
			"a2": {
				ID:   "a2",
				Type: api.StepTypeAction,
				Key:  "test:action",
				Args: map[string]any{"subject": "second"},
			},
		},
	}
	require.NoError(t, f.store.CreateWorkflow(ctx, workflow))

	run := api.NewRun(workflow, "test:trigger", subjects)
	require.NoError(t, f.store.CreateRun(ctx, run))
	return workflow, run
}

func (f *fixture) runStatus(t *testing.T, id int64) api.RunStatus {
	t.Helper()
	run, err := f.store.GetRun(context.Background(), id)
	require.NoError(t, err)
	return run.Status
}

func TestHandle_RejectsMalformedArgs(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	err := f.handler.Handle(context.Background(), api.JobArgs{})
	var invalid *api.InvalidStateError
	require.ErrorAs(t, err, &invalid)
}

func TestHandle_UnknownRun(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	err := f.handler.Handle(context.Background(), api.JobArgs{WorkflowRunID: 42, StepID: "a1"})
	require.ErrorIs(t, err, api.ErrRunNotFound)
}

func TestHandle_RejectsFinishedRunWithoutSideEffects(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, run := f.seedRun(t, nil)
	require.NoError(t, f.store.UpdateRunStatus(ctx, run.ID, api.RunStatusComplete))

	err := f.handler.Handle(ctx, api.JobArgs{WorkflowRunID: run.ID, StepID: "a1"})
	var notRunning *api.NotRunningError
	require.ErrorAs(t, err, &notRunning)
	require.Equal(t, run.ID, notRunning.RunID)

	// The guard rejection leaves everything untouched.
	require.Equal(t, api.RunStatusComplete, f.runStatus(t, run.ID))
	require.Equal(t, 0, f.action.calls)
	require.Equal(t, 0, f.queue.Len())
	logs, err := f.store.ListRunLogs(ctx, run.ID)
	require.NoError(t, err)
	require.Empty(t, logs)
}

func TestHandle_EmptyStepCompletesRun(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, run := f.seedRun(t, nil)
	require.NoError(t, f.handler.Handle(ctx, api.JobArgs{WorkflowRunID: run.ID, StepID: ""}))
	require.Equal(t, api.RunStatusComplete, f.runStatus(t, run.ID))
	require.Equal(t, 0, f.queue.Len())
}

func TestHandle_UnknownStepFailsRun(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, run := f.seedRun(t, nil)
	err := f.handler.Handle(ctx, api.JobArgs{WorkflowRunID: run.ID, StepID: "ghost"})
	require.ErrorIs(t, err, api.ErrStepNotFound)
	require.Equal(t, api.RunStatusFailed, f.runStatus(t, run.ID))
}

func TestHandle_SuccessSchedulesExactlyOneSuccessor(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, run := f.seedRun(t, nil)
	require.NoError(t, f.handler.Handle(ctx, api.JobArgs{WorkflowRunID: run.ID, StepID: "a1"}))

	require.Equal(t, 1, f.action.calls)
	require.Equal(t, api.RunStatusRunning, f.runStatus(t, run.ID))
	require.Equal(t, 1, f.queue.Len())
	scheduled, err := f.queue.HasScheduled(ctx, api.StepHook, api.JobArgs{WorkflowRunID: run.ID, StepID: "a2"})
	require.NoError(t, err)
	require.True(t, scheduled)

	logs, err := f.store.ListRunLogs(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, api.RunLogStatusSuccess, logs[0].Status)
	require.Equal(t, "a1", logs[0].StepID)
}

func TestHandle_DoesNotDoubleScheduleSuccessor(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, run := f.seedRun(t, nil)
	_, err := f.queue.Enqueue(ctx, api.StepHook, api.JobArgs{WorkflowRunID: run.ID, StepID: "a2"})
	require.NoError(t, err)

	require.NoError(t, f.handler.Handle(ctx, api.JobArgs{WorkflowRunID: run.ID, StepID: "a1"}))
	require.Equal(t, 1, f.queue.Len(), "an already-scheduled successor must not be enqueued again")
}

func TestHandle_LastStepCompletesRun(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, run := f.seedRun(t, nil)
	require.NoError(t, f.handler.Handle(ctx, api.JobArgs{WorkflowRunID: run.ID, StepID: "a2"}))
	require.Equal(t, api.RunStatusComplete, f.runStatus(t, run.ID))
	require.Equal(t, 0, f.queue.Len())
}

func TestHandle_ActionErrorFailsRun(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.action.err = errors.New("smtp unavailable")
	_, run := f.seedRun(t, nil)

	err := f.handler.Handle(ctx, api.JobArgs{WorkflowRunID: run.ID, StepID: "a1"})
	require.ErrorContains(t, err, "smtp unavailable")
	require.Equal(t, api.RunStatusFailed, f.runStatus(t, run.ID))
	require.Equal(t, 0, f.queue.Len())

	logs, logsErr := f.store.ListRunLogs(ctx, run.ID)
	require.NoError(t, logsErr)
	require.Len(t, logs, 1)
	require.Equal(t, api.RunLogStatusFailed, logs[0].Status)
	require.Contains(t, logs[0].Error, "smtp unavailable")
}

func TestHandle_ActionPanicFailsRun(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.action.panics = true
	_, run := f.seedRun(t, nil)

	err := f.handler.Handle(ctx, api.JobArgs{WorkflowRunID: run.ID, StepID: "a1"})
	require.ErrorContains(t, err, "panicked")
	require.Equal(t, api.RunStatusFailed, f.runStatus(t, run.ID))

	logs, logsErr := f.store.ListRunLogs(ctx, run.ID)
	require.NoError(t, logsErr)
	require.Len(t, logs, 1)
	require.Equal(t, api.RunLogStatusFailed, logs[0].Status)
}

func TestHandle_MissingSubjectDataFailsRun(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.action.subjectKeys = []string{"test:subject"}
	_, run := f.seedRun(t, nil)

	err := f.handler.Handle(ctx, api.JobArgs{WorkflowRunID: run.ID, StepID: "a1"})
	var missing *api.SubjectDataMissingError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "test:subject", missing.Key)
	require.Equal(t, api.RunStatusFailed, f.runStatus(t, run.ID))
	require.Equal(t, 0, f.action.calls)
}

func TestHandle_ResolvesRequiredSubjects(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.action.subjectKeys = []string{"test:subject"}
	_, run := f.seedRun(t, []api.SubjectData{
		{Key: "test:subject", Args: map[string]any{"id": float64(7)}},
	})

	require.NoError(t, f.handler.Handle(ctx, api.JobArgs{WorkflowRunID: run.ID, StepID: "a1"}))
	require.Len(t, f.action.lastArgs.Subjects, 1)

	payload, err := f.action.lastArgs.Subjects[0].Payload(ctx)
	require.NoError(t, err)
	require.Equal(t, "payload", payload)
}

func TestHandle_NoRunnerForStepType(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	bare := NewStepHandler(StepHandlerConfig{
		Workflows: f.store,
		Runs:      f.store,
		Logs:      f.store,
		Scheduler: f.queue,
		Registry:  f.reg,
		Hooks:     f.hooks,
	})
	_, run := f.seedRun(t, nil)

	err := bare.Handle(ctx, api.JobArgs{WorkflowRunID: run.ID, StepID: "a1"})
	var invalid *api.InvalidStateError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, api.RunStatusFailed, f.runStatus(t, run.ID))
}

func TestHandle_AfterRunHookFailureDoesNotAffectOutcome(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	var hookLogs []*api.RunLog
	f.hooks.OnStepAfterRun(func(log *api.RunLog) error {
		hookLogs = append(hookLogs, log)
		return errors.New("observer exploded")
	})

	_, run := f.seedRun(t, nil)
	require.NoError(t, f.handler.Handle(ctx, api.JobArgs{WorkflowRunID: run.ID, StepID: "a1"}))

	require.Len(t, hookLogs, 1)
	require.Equal(t, api.RunStatusRunning, f.runStatus(t, run.ID))
	logs, err := f.store.ListRunLogs(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, api.RunLogStatusSuccess, logs[0].Status)
}

func TestHandle_ExecutesPinnedVersion(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	workflow, run := f.seedRun(t, nil)

	// Edit the workflow after the run started; the run must keep seeing the
	// version it was pinned to.
	edited, err := f.store.GetWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	edited.Steps["a1"].Args = map[string]any{"subject": "edited"}
	require.NoError(t, f.store.UpdateWorkflow(ctx, edited))

	require.NoError(t, f.handler.Handle(ctx, api.JobArgs{WorkflowRunID: run.ID, StepID: "a1"}))
	require.Equal(t, "first", f.action.lastArgs.Step.Args["subject"])
}
