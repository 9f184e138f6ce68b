package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/d-alleyne/mailpoet/pkg/api"
)

// RedisQueue is a Queue backed by Redis. Jobs live in a sorted set scored
// by their due time; a hash of signature counters backs HasScheduled:
//
//	<prefix>jobs      => ZSET member=JSON job, score=not_before (unix nanos)
//	<prefix>jobs:sig  => HASH "<hook>|<run_id>|<step_id>" -> scheduled count
type RedisQueue struct {
	client       *redis.Client
	prefix       string
	pollInterval time.Duration
}

var _ Queue = (*RedisQueue)(nil)

// NewRedisQueue constructs a Redis-backed Queue.
// prefix is optional but recommended (e.g. "automation:").
func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "automation:"
	}
	return &RedisQueue{
		client:       client,
		prefix:       prefix,
		pollInterval: 50 * time.Millisecond,
	}
}

func (q *RedisQueue) keyJobs() string {
	return q.prefix + "jobs"
}

func (q *RedisQueue) keySignatures() string {
	return q.prefix + "jobs:sig"
}

func signature(hook string, args api.JobArgs) string {
	return hook + "|" + strconv.FormatInt(args.WorkflowRunID, 10) + "|" + args.StepID
}

func (q *RedisQueue) Enqueue(ctx context.Context, hook string, args api.JobArgs) (string, error) {
	return q.EnqueueAt(ctx, time.Time{}, hook, args)
}

func (q *RedisQueue) EnqueueAt(ctx context.Context, at time.Time, hook string, args api.JobArgs) (string, error) {
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
	if err := q.add(ctx, job); err != nil {
		return "", err
	}
	return job.ID, nil
}

func (q *RedisQueue) Requeue(ctx context.Context, job Job) error {
	return q.add(ctx, job)
}

func (q *RedisQueue) add(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("scheduler: encode job: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.ZAdd(ctx, q.keyJobs(), redis.Z{
		Score:  float64(job.NotBefore.UnixNano()),
		Member: string(data),
	})
	pipe.HIncrBy(ctx, q.keySignatures(), signature(job.Hook, job.Args), 1)
	_, err = pipe.Exec(ctx)
	return err
}

func (q *RedisQueue) HasScheduled(ctx context.Context, hook string, args api.JobArgs) (bool, error) {
	count, err := q.client.HGet(ctx, q.keySignatures(), signature(hook, args)).Int64()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (q *RedisQueue) Unschedule(ctx context.Context, hook string, args api.JobArgs) error {
	// Matching members cannot be addressed directly in the sorted set, so
	// scan all jobs and remove the ones carrying the signature.
	members, err := q.client.ZRange(ctx, q.keyJobs(), 0, -1).Result()
	if err != nil {
		return err
	}

	sig := signature(hook, args)
	for _, member := range members {
		var job Job
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			continue
		}
		if signature(job.Hook, job.Args) != sig {
			continue
		}
		removed, err := q.client.ZRem(ctx, q.keyJobs(), member).Result()
		if err != nil {
			return err
		}
		if removed > 0 {
			if err := q.client.HIncrBy(ctx, q.keySignatures(), sig, -1).Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Job, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		now := time.Now().UnixNano()
		members, err := q.client.ZRangeByScore(ctx, q.keyJobs(), &redis.ZRangeBy{
			Min:   "-inf",
			Max:   strconv.FormatInt(now, 10),
			Count: 1,
		}).Result()
		if err != nil {
			return nil, err
		}

		if len(members) > 0 {
			member := members[0]
			// ZREM decides ownership when several workers race for the
			// same member: only the one that removed it processes it.
			removed, err := q.client.ZRem(ctx, q.keyJobs(), member).Result()
			if err != nil {
				return nil, err
			}
			if removed == 1 {
				var job Job
				if err := json.Unmarshal([]byte(member), &job); err != nil {
					return nil, fmt.Errorf("scheduler: decode job: %w", err)
				}
				if err := q.client.HIncrBy(ctx, q.keySignatures(), signature(job.Hook, job.Args), -1).Err(); err != nil {
					return nil, err
				}
				return &job, nil
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.pollInterval):
		}
	}
}

func (q *RedisQueue) Len() int {
	n, err := q.client.ZCard(context.Background(), q.keyJobs()).Result()
	if err != nil {
		return 0
	}
	return int(n)
}
