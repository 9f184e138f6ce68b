// Package worker consumes scheduled step jobs and feeds them to the engine.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/d-alleyne/mailpoet/pkg/api"

	"github.com/d-alleyne/mailpoet/internal/scheduler"
)

// Config tunes a Worker. Zero values select the defaults.
type Config struct {
	// Concurrency is the number of concurrent dequeue loops. Default 1.
	Concurrency int

	// MaxAttempts caps how often a job is attempted before it is dropped.
	// Only transient errors are retried. Default 3.
	MaxAttempts int
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	return c
}

// Worker pulls jobs off a queue and dispatches step jobs to a
// StepController. Run it in as many processes as you like; the queue
// implementations guarantee each job is claimed once.
type Worker struct {
	queue      scheduler.Queue
	controller api.StepController
	logger     *slog.Logger
	config     Config
}

// New creates a Worker.
func New(queue scheduler.Queue, controller api.StepController, logger *slog.Logger, config Config) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queue:      queue,
		controller: controller,
		logger:     logger,
		config:     config.withDefaults(),
	}
}

// Run blocks consuming jobs until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < w.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// ProcessOne dequeues and handles a single job. It blocks until a job is
// available or the context ends; a context end reports (false, nil).
// Useful for tests and for applications that drive the queue themselves.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	job, err := w.queue.Dequeue(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, nil
		}
		return false, err
	}
	w.handle(ctx, job)
	return true, nil
}

func (w *Worker) loop(ctx context.Context) {
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			w.logger.Error("dequeue failed", slog.String("error", err.Error()))
			continue
		}
		w.handle(ctx, job)
	}
}

func (w *Worker) handle(ctx context.Context, job *scheduler.Job) {
	if job.Hook != api.StepHook {
		w.logger.Warn("dropping job with unknown hook", slog.String("hook", job.Hook))
		return
	}

	err := w.controller.Handle(ctx, job.Args)
	if err == nil {
		return
	}

	w.logger.Error("step job failed",
		slog.Int64("run_id", job.Args.WorkflowRunID),
		slog.String("step_id", job.Args.StepID),
		slog.Int("attempt", job.Attempts+1),
		slog.String("error", err.Error()),
	)

	if !retryable(err) {
		return
	}
	if job.Attempts+1 >= w.config.MaxAttempts {
		w.logger.Error("dropping job after max attempts",
			slog.Int64("run_id", job.Args.WorkflowRunID),
			slog.String("step_id", job.Args.StepID),
		)
		return
	}
	job.Attempts++
	if err := w.queue.Requeue(ctx, *job); err != nil {
		w.logger.Error("requeue failed", slog.String("error", err.Error()))
	}
}

// retryable reports whether a handler error may succeed on a later attempt.
// Guard rejections and unresolvable references are terminal. Anything else
// is treated as transient; a retry of a run the engine already marked
// failed is rejected as not running on the next attempt.
func retryable(err error) bool {
	var notRunning *api.NotRunningError
	var invalidState *api.InvalidStateError
	switch {
	case errors.As(err, &notRunning),
		errors.As(err, &invalidState),
		errors.Is(err, api.ErrRunNotFound),
		errors.Is(err, api.ErrVersionNotFound),
		errors.Is(err, api.ErrStepNotFound):
		return false
	}
	return true
}
