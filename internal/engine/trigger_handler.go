package engine

import (
	"context"
	"log/slog"

	"github.com/d-alleyne/mailpoet/pkg/api"
)

// TriggerHandler turns domain events into workflow runs. Triggers call
// Dispatch when their event fires; for every active workflow listening on
// the trigger key it creates a run pinned to the workflow's current
// version and schedules the first job.
type TriggerHandler struct {
	workflows api.WorkflowStore
	runs      api.RunStore
	scheduler api.ActionScheduler
	logger    *slog.Logger
}

var _ api.TriggerDispatcher = (*TriggerHandler)(nil)

// NewTriggerHandler creates a TriggerHandler.
func NewTriggerHandler(workflows api.WorkflowStore, runs api.RunStore, scheduler api.ActionScheduler, logger *slog.Logger) *TriggerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TriggerHandler{
		workflows: workflows,
		runs:      runs,
		scheduler: scheduler,
		logger:    logger,
	}
}

// Dispatch creates runs for all active workflows listening on the trigger.
// The trigger gets a veto per workflow via IsTriggeredBy, so it can match
// the captured subjects against the trigger step's configured arguments.
// Returns the ids of the runs created.
func (t *TriggerHandler) Dispatch(ctx context.Context, trigger api.Trigger, subjects []api.SubjectData) ([]int64, error) {
	workflows, err := t.workflows.ListActiveByTrigger(ctx, trigger.Key())
	if err != nil {
		return nil, err
	}

	var created []int64
	for _, workflow := range workflows {
		step := workflow.Trigger(trigger.Key())
		if step == nil {
			continue
		}

		run := api.NewRun(workflow, trigger.Key(), subjects)
		triggered, err := trigger.IsTriggeredBy(ctx, workflow, run)
		if err != nil {
			return created, err
		}
		if !triggered {
			continue
		}

		if err := t.runs.CreateRun(ctx, run); err != nil {
			return created, err
		}

		// The trigger step itself already happened; the first job executes
		// its successor. An empty successor completes the run immediately.
		args := api.JobArgs{WorkflowRunID: run.ID, StepID: step.NextStepID()}
		if _, err := t.scheduler.Enqueue(ctx, api.StepHook, args); err != nil {
			return created, err
		}
		created = append(created, run.ID)

		t.logger.Info("workflow run created",
			slog.Int64("run_id", run.ID),
			slog.Int64("workflow_id", workflow.ID),
			slog.String("trigger", trigger.Key()),
		)
	}
	return created, nil
}
