package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/d-alleyne/mailpoet/pkg/api"
)

func workflowFixture(name string, status api.WorkflowStatus) *api.Workflow {
	return &api.Workflow{
		Name:   name,
		Status: status,
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
				ID:   "a1",
				Type: api.StepTypeAction,
				Key:  "test:action",
				Args: map[string]any{"subject": "hello"},
			},
		},
	}
}

// runWorkflowStoreTests exercises the WorkflowStore contract.
func runWorkflowStoreTests(t *testing.T, store api.WorkflowStore) {
	t.Helper()
	ctx := context.Background()

	_, err := store.GetWorkflow(ctx, 12345)
	require.ErrorIs(t, err, api.ErrWorkflowNotFound)

	workflow := workflowFixture("welcome", api.WorkflowStatusDraft)
	require.NoError(t, store.CreateWorkflow(ctx, workflow))
	require.NotZero(t, workflow.ID)
	require.NotEmpty(t, workflow.VersionID)
	firstVersion := workflow.VersionID

	loaded, err := store.GetWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	require.Equal(t, "welcome", loaded.Name)
	require.Equal(t, firstVersion, loaded.VersionID)
	require.Equal(t, "hello", loaded.Steps["a1"].Args["subject"])

	// Updating persists a new version and keeps the old one readable.
	loaded.Name = "onboarding"
	loaded.Status = api.WorkflowStatusActive
	loaded.Steps["a1"].Args = map[string]any{"subject": "updated"}
	require.NoError(t, store.UpdateWorkflow(ctx, loaded))
	require.NotEqual(t, firstVersion, loaded.VersionID)

	current, err := store.GetWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	require.Equal(t, "updated", current.Steps["a1"].Args["subject"])

	pinned, err := store.GetWorkflowVersion(ctx, workflow.ID, firstVersion)
	require.NoError(t, err)
	require.Equal(t, "hello", pinned.Steps["a1"].Args["subject"], "historical versions pin the step graph")
	require.Equal(t, "onboarding", pinned.Name, "name always reflects the current row")
	require.Equal(t, api.WorkflowStatusActive, pinned.Status)

	_, err = store.GetWorkflowVersion(ctx, workflow.ID, "no-such-version")
	require.ErrorIs(t, err, api.ErrVersionNotFound)

	// An unknown workflow id is reported as such, not as a missing version.
	_, err = store.GetWorkflowVersion(ctx, 12345, firstVersion)
	require.ErrorIs(t, err, api.ErrWorkflowNotFound)

	// Updating an unknown workflow fails.
	ghost := workflowFixture("ghost", api.WorkflowStatusDraft)
	ghost.ID = 98765
	require.ErrorIs(t, store.UpdateWorkflow(ctx, ghost), api.ErrWorkflowNotFound)
}

// runListActiveByTriggerTests exercises trigger-to-workflow binding.
func runListActiveByTriggerTests(t *testing.T, store api.WorkflowStore) {
	t.Helper()
	ctx := context.Background()

	active := workflowFixture("active", api.WorkflowStatusActive)
	require.NoError(t, store.CreateWorkflow(ctx, active))

	draft := workflowFixture("draft", api.WorkflowStatusDraft)
	require.NoError(t, store.CreateWorkflow(ctx, draft))

	other := workflowFixture("other-trigger", api.WorkflowStatusActive)
	other.Steps["t1"].Key = "test:other"
	require.NoError(t, store.CreateWorkflow(ctx, other))

	listed, err := store.ListActiveByTrigger(ctx, "test:trigger")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, active.ID, listed[0].ID)

	listed, err = store.ListActiveByTrigger(ctx, "test:nobody")
	require.NoError(t, err)
	require.Empty(t, listed)
}

// runRunStoreTests exercises the RunStore and RunLogStore contracts.
func runRunStoreTests(t *testing.T, runs api.RunStore, logs api.RunLogStore) {
	t.Helper()
	ctx := context.Background()

	_, err := runs.GetRun(ctx, 12345)
	require.ErrorIs(t, err, api.ErrRunNotFound)
	require.ErrorIs(t, runs.UpdateRunStatus(ctx, 12345, api.RunStatusComplete), api.ErrRunNotFound)

	run := &api.Run{
		WorkflowID: 1,
		VersionID:  "v1",
		TriggerKey: "test:trigger",
		Status:     api.RunStatusRunning,
		Subjects: []api.SubjectData{
			{Key: "test:subject", Args: map[string]any{"id": float64(7)}},
		},
	}
	require.NoError(t, runs.CreateRun(ctx, run))
	require.NotZero(t, run.ID)

	loaded, err := runs.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, api.RunStatusRunning, loaded.Status)
	require.Equal(t, "v1", loaded.VersionID)
	require.Equal(t, run.Subjects, loaded.Subjects)

	require.NoError(t, runs.UpdateRunStatus(ctx, run.ID, api.RunStatusFailed))
	loaded, err = runs.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, api.RunStatusFailed, loaded.Status)

	// Logs come back in append order.
	first := api.NewRunLog(run.ID, "a1")
	first.MarkSucceeded()
	require.NoError(t, logs.CreateRunLog(ctx, first))
	require.NotZero(t, first.ID)

	second := api.NewRunLog(run.ID, "a2")
	second.MarkFailed(errors.New("smtp unavailable"))
	require.NoError(t, logs.CreateRunLog(ctx, second))

	listed, err := logs.ListRunLogs(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, "a1", listed[0].StepID)
	require.Equal(t, api.RunLogStatusSuccess, listed[0].Status)
	require.Equal(t, "a2", listed[1].StepID)
	require.Equal(t, api.RunLogStatusFailed, listed[1].Status)
	require.Contains(t, listed[1].Error, "smtp unavailable")

	empty, err := logs.ListRunLogs(ctx, 99999)
	require.NoError(t, err)
	require.Empty(t, empty)
}
