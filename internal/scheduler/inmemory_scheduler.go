package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/d-alleyne/mailpoet/pkg/api"
)

// InMemoryQueue is a Queue implementation backed by a slice. It is safe for
// concurrent use. Intended for tests and small deployments.
type InMemoryQueue struct {
	mu           sync.Mutex
	jobs         []Job
	pollInterval time.Duration
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates an empty in-memory queue.
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		pollInterval: 10 * time.Millisecond,
	}
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, hook string, args api.JobArgs) (string, error) {
	return q.EnqueueAt(ctx, time.Time{}, hook, args)
}

func (q *InMemoryQueue) EnqueueAt(ctx context.Context, at time.Time, hook string, args api.JobArgs) (string, error) {
	now := time.Now()
	if at.IsZero() {
		at = now
	}
	job := Job{
		ID:         uuid.NewString(),
		Hook:       hook,
		Args:       args,
		EnqueuedAt: now,
		NotBefore:  at,
	}

	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
	return job.ID, nil
}

func (q *InMemoryQueue) Requeue(ctx context.Context, job Job) error {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
	return nil
}

func (q *InMemoryQueue) HasScheduled(ctx context.Context, hook string, args api.JobArgs) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, job := range q.jobs {
		if job.Hook == hook && job.Args == args {
			return true, nil
		}
	}
	return false, nil
}

func (q *InMemoryQueue) Unschedule(ctx context.Context, hook string, args api.JobArgs) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.jobs[:0]
	for _, job := range q.jobs {
		if job.Hook == hook && job.Args == args {
			continue
		}
		kept = append(kept, job)
	}
	q.jobs = kept
	return nil
}

func (q *InMemoryQueue) Dequeue(ctx context.Context) (*Job, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if job := q.takeDue(time.Now()); job != nil {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.pollInterval):
		}
	}
}

// takeDue removes and returns the first job whose NotBefore has passed.
func (q *InMemoryQueue) takeDue(now time.Time) *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, job := range q.jobs {
		if !job.NotBefore.After(now) {
			taken := job
			q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
			return &taken
		}
	}
	return nil
}

func (q *InMemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
