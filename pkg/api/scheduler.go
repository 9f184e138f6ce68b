package api

import (
	"context"
	"time"
)

// StepHook is the hook name under which the engine schedules step-advance
// jobs on the action scheduler.
const StepHook = "mailpoet/automation/workflow/step"

// JobArgs are the arguments of one scheduled step-advance job.
//
// StepID == "" means "no step": handling such a job completes the run.
type JobArgs struct {
	WorkflowRunID int64  `json:"workflow_run_id"`
	StepID        string `json:"step_id"`
}

// ActionScheduler is the durable, at-least-once delayed-job queue boundary
// the engine schedules step advances on.
//
// The scheduler may deliver a job more than once; the engine's run-status
// guard and HasScheduled check keep redelivery from duplicating chains.
type ActionScheduler interface {
	// Enqueue schedules a job for immediate delivery and returns its id.
	Enqueue(ctx context.Context, hook string, args JobArgs) (string, error)

	// EnqueueAt schedules a job for delivery no earlier than at.
	EnqueueAt(ctx context.Context, at time.Time, hook string, args JobArgs) (string, error)

	// HasScheduled reports whether a job with the exact same hook and args
	// is currently scheduled and undelivered.
	HasScheduled(ctx context.Context, hook string, args JobArgs) (bool, error)

	// Unschedule removes all scheduled jobs with the given hook and args.
	// It is a no-op when none exist.
	Unschedule(ctx context.Context, hook string, args JobArgs) error
}
