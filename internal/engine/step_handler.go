// Package engine advances workflow runs one step at a time.
//
// Every step of every run arrives as an independently scheduled job; no
// state survives between invocations except what the stores hold. Handle
// therefore re-derives everything from the job arguments on each call:
//
//  1. validate the job arguments
//  2. load the run
//  3. reject runs that are no longer running
//  4. load the workflow version the run is pinned to
//  5. a job without a step id completes the run
//  6. resolve the step within the pinned version
//  7. dispatch to the runner registered for the step's type
//  8. record exactly one run-log entry for the attempt
//  9. schedule the successor, or complete the run, unless a job for it
//     is already scheduled
//
// An error escaping steps 6-9 marks the run failed before propagating.
// Errors from the guards (2-5) propagate without touching run status, so
// duplicate or late queue deliveries stay side-effect free.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/d-alleyne/mailpoet/pkg/api"
	"github.com/d-alleyne/mailpoet/pkg/hooks"
	"github.com/d-alleyne/mailpoet/pkg/registry"
)

// StepHandler is the engine's StepController implementation.
type StepHandler struct {
	workflows api.WorkflowStore
	runs      api.RunStore
	logs      api.RunLogStore
	scheduler api.ActionScheduler
	subjects  *SubjectLoader
	registry  *registry.Registry
	hooks     *hooks.Hooks
	runners   map[api.StepType]api.StepRunner
	logger    *slog.Logger
}

var _ api.StepController = (*StepHandler)(nil)

// StepHandlerConfig carries the collaborators of a StepHandler.
type StepHandlerConfig struct {
	Workflows api.WorkflowStore
	Runs      api.RunStore
	Logs      api.RunLogStore
	Scheduler api.ActionScheduler
	Registry  *registry.Registry
	Hooks     *hooks.Hooks
	Logger    *slog.Logger
}

// NewStepHandler creates a StepHandler with no runners registered.
// Register at least an action runner via AddStepRunner before use.
func NewStepHandler(cfg StepHandlerConfig) *StepHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StepHandler{
		workflows: cfg.Workflows,
		runs:      cfg.Runs,
		logs:      cfg.Logs,
		scheduler: cfg.Scheduler,
		subjects:  NewSubjectLoader(cfg.Registry),
		registry:  cfg.Registry,
		hooks:     cfg.Hooks,
		runners:   make(map[api.StepType]api.StepRunner),
		logger:    logger,
	}
}

// AddStepRunner registers the runner dispatched for steps of the given type.
func (h *StepHandler) AddStepRunner(stepType api.StepType, runner api.StepRunner) {
	h.runners[stepType] = runner
}

// Handle advances one run by one step. See the package documentation for
// the full protocol.
func (h *StepHandler) Handle(ctx context.Context, args api.JobArgs) error {
	if args.WorkflowRunID <= 0 {
		return &api.InvalidStateError{Reason: "step job has no workflow run id"}
	}

	run, err := h.runs.GetRun(ctx, args.WorkflowRunID)
	if err != nil {
		return err
	}
	if run.Status != api.RunStatusRunning {
		return &api.NotRunningError{RunID: run.ID, Status: run.Status}
	}

	workflow, err := h.workflows.GetWorkflowVersion(ctx, run.WorkflowID, run.VersionID)
	if err != nil {
		return err
	}

	// A job without a step id means the previous step was the run's last.
	if args.StepID == "" {
		return h.runs.UpdateRunStatus(ctx, run.ID, api.RunStatusComplete)
	}

	if execErr := h.executeStep(ctx, workflow, run, args.StepID); execErr != nil {
		if statusErr := h.runs.UpdateRunStatus(ctx, run.ID, api.RunStatusFailed); statusErr != nil {
			h.logger.Error("failed to mark workflow run as failed",
				slog.Int64("run_id", run.ID),
				slog.String("error", statusErr.Error()),
			)
		}
		return execErr
	}
	return nil
}

func (h *StepHandler) executeStep(ctx context.Context, workflow *api.Workflow, run *api.Run, stepID string) error {
	step := workflow.GetStep(stepID)
	if step == nil {
		return fmt.Errorf("step %q of workflow run %d: %w", stepID, run.ID, api.ErrStepNotFound)
	}

	runner, ok := h.runners[step.Type]
	if !ok {
		return &api.InvalidStateError{Reason: fmt.Sprintf("no runner registered for step type %q", step.Type)}
	}

	log := api.NewRunLog(run.ID, step.ID)
	runErr := h.runStep(ctx, runner, workflow, run, step, log)

	// The attempt is logged exactly once, whatever the runner or the
	// after-run hooks did.
	if hookErr := h.hooks.DoStepAfterRun(log); hookErr != nil {
		h.logger.Warn("step after-run hook failed",
			slog.Int64("run_id", run.ID),
			slog.String("step_id", step.ID),
			slog.String("error", hookErr.Error()),
		)
	}
	if logErr := h.logs.CreateRunLog(ctx, log); logErr != nil {
		if runErr == nil {
			runErr = logErr
		} else {
			h.logger.Error("failed to persist run log",
				slog.Int64("run_id", run.ID),
				slog.String("step_id", step.ID),
				slog.String("error", logErr.Error()),
			)
		}
	}
	if runErr != nil {
		return runErr
	}

	nextArgs := api.JobArgs{WorkflowRunID: run.ID, StepID: step.NextStepID()}
	scheduled, err := h.scheduler.HasScheduled(ctx, api.StepHook, nextArgs)
	if err != nil {
		return err
	}
	if scheduled {
		return nil
	}
	if nextArgs.StepID == "" {
		return h.runs.UpdateRunStatus(ctx, run.ID, api.RunStatusComplete)
	}
	_, err = h.scheduler.Enqueue(ctx, api.StepHook, nextArgs)
	return err
}

// runStep resolves the step's subjects, invokes the runner, and records the
// outcome on the log entry. Runner panics are converted to failures so a
// misbehaving step cannot take the worker down or skip the log.
func (h *StepHandler) runStep(ctx context.Context, runner api.StepRunner, workflow *api.Workflow, run *api.Run, step *api.Step, log *api.RunLog) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %q panicked: %v", step.ID, r)
			log.MarkFailed(err)
		}
	}()

	var required []string
	if action := h.registry.Action(step.Key); action != nil {
		required = action.SubjectKeys()
	}
	entries, err := h.subjects.EntriesFor(run, required)
	if err != nil {
		log.MarkFailed(err)
		return err
	}

	if err := runner.Run(ctx, &api.StepRunArgs{
		Workflow: workflow,
		Run:      run,
		Step:     step,
		Subjects: entries,
	}); err != nil {
		log.MarkFailed(err)
		return err
	}

	log.MarkSucceeded()
	return nil
}
