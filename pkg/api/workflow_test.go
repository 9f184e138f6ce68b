package api

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWorkflowStatus_Valid(t *testing.T) {
	t.Parallel()

	for _, status := range []WorkflowStatus{
		WorkflowStatusDraft, WorkflowStatusActive, WorkflowStatusInactive, WorkflowStatusTrash,
	} {
		require.True(t, status.Valid(), "expected %q to be valid", status)
	}
	require.False(t, WorkflowStatus("archived").Valid())
	require.False(t, WorkflowStatus("").Valid())
}

func TestStep_NextStepID(t *testing.T) {
	t.Parallel()

	step := &Step{ID: "a"}
	require.Equal(t, "", step.NextStepID())

	step.NextSteps = []NextStep{{ID: "b"}, {ID: "c"}}
	require.Equal(t, "b", step.NextStepID(), "only the first successor is followed")
}

func TestStep_MapRoundTrip(t *testing.T) {
	t.Parallel()

	step := &Step{
		ID:   "s1",
		Type: StepTypeAction,
		Key:  "mailpoet:send-email",
		Args: map[string]any{
			"subject": "Welcome!",
			"count":   float64(3),
		},
		NextSteps: []NextStep{{ID: "s2"}},
	}

	restored, err := StepFromMap(step.ToMap())
	require.NoError(t, err)
	require.Equal(t, step, restored)
}

func TestStep_Copy(t *testing.T) {
	t.Parallel()

	step := &Step{
		ID:   "s1",
		Type: StepTypeAction,
		Key:  "mailpoet:send-email",
		Args: map[string]any{"subject": "Hi"},
	}

	copied := step.Copy()
	copied.Args["subject"] = "changed"
	require.Equal(t, "Hi", step.Args["subject"], "copy must not share args")
}

func testWorkflow() *Workflow {
	return &Workflow{
		ID:     1,
		Name:   "welcome",
		Status: WorkflowStatusActive,
		Steps: map[string]*Step{
			RootStepID: {
				ID:        RootStepID,
				Type:      StepTypeRoot,
				Key:       "core:root",
				NextSteps: []NextStep{{ID: "t1"}},
			},
			"t1": {
				ID:        "t1",
				Type:      StepTypeTrigger,
				Key:       "mailpoet:segment:subscribed",
				NextSteps: []NextStep{{ID: "a1"}},
			},
			"a1": {
				ID:   "a1",
				Type: StepTypeAction,
				Key:  "mailpoet:send-email",
				Args: map[string]any{"subject": "Welcome!"},
			},
		},
	}
}

func TestWorkflow_StepLookups(t *testing.T) {
	t.Parallel()

	wf := testWorkflow()
	require.Equal(t, RootStepID, wf.Root().ID)
	require.Equal(t, "a1", wf.GetStep("a1").ID)
	require.Nil(t, wf.GetStep("missing"))

	trigger := wf.Trigger("mailpoet:segment:subscribed")
	require.NotNil(t, trigger)
	require.Equal(t, "t1", trigger.ID)
	require.Nil(t, wf.Trigger("mailpoet:unknown"))

	require.Len(t, wf.TriggerSteps(), 1)
}

func TestWorkflow_Copy(t *testing.T) {
	t.Parallel()

	wf := testWorkflow()
	copied := wf.Copy()
	copied.Steps["a1"].Args["subject"] = "changed"
	require.Equal(t, "Welcome!", wf.Steps["a1"].Args["subject"])
}
