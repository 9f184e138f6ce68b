// Package scheduler implements the durable delayed-job queue the engine
// schedules step advances on: enqueue, an exact-signature idempotency check,
// unschedule, and a blocking dequeue for workers. Delivery is at-least-once;
// the engine's status guard and HasScheduled check make redelivery safe.
package scheduler

import (
	"context"
	"time"

	"github.com/d-alleyne/mailpoet/pkg/api"
)

// Job is one scheduled unit of work.
type Job struct {
	ID         string      `json:"id"`
	Hook       string      `json:"hook"`
	Args       api.JobArgs `json:"args"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
	NotBefore  time.Time   `json:"not_before"`

	// Attempts counts prior deliveries of this job; workers increment it
	// when they requeue after a handler failure.
	Attempts int `json:"attempts"`
}

// Queue is a durable job queue. It extends the engine-facing scheduler
// boundary with the worker-facing dequeue side.
type Queue interface {
	api.ActionScheduler

	// Requeue schedules an existing job again (used by workers for bounded
	// redelivery). The job keeps its id; NotBefore and Attempts are taken
	// from the passed value.
	Requeue(ctx context.Context, job Job) error

	// Dequeue removes and returns the next due job, blocking until one is
	// available or the context is cancelled.
	Dequeue(ctx context.Context) (*Job, error)

	// Len returns the approximate number of scheduled jobs.
	Len() int
}
