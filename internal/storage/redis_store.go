package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/d-alleyne/mailpoet/pkg/api"
)

// RedisRunStore implements RunStore and RunLogStore backed by Redis.
// Workflow definitions stay in a relational or in-memory store; Redis holds
// only the run-time state. Key structure:
//
//	<prefix>run:<id>      => JSON-encoded run
//	<prefix>run:seq       => run id sequence
//	<prefix>runlog:<run>  => LIST of JSON-encoded log entries
//	<prefix>runlog:seq    => log id sequence
type RedisRunStore struct {
	client *redis.Client
	prefix string
}

var (
	_ api.RunStore    = (*RedisRunStore)(nil)
	_ api.RunLogStore = (*RedisRunStore)(nil)
)

// NewRedisRunStore creates a RedisRunStore.
// prefix is optional but recommended (e.g. "automation:").
func NewRedisRunStore(client *redis.Client, prefix string) *RedisRunStore {
	if prefix == "" {
		prefix = "automation:"
	}
	return &RedisRunStore{client: client, prefix: prefix}
}

func (s *RedisRunStore) keyRun(id int64) string {
	return s.prefix + "run:" + strconv.FormatInt(id, 10)
}

func (s *RedisRunStore) keyRunLogs(runID int64) string {
	return s.prefix + "runlog:" + strconv.FormatInt(runID, 10)
}

func (s *RedisRunStore) CreateRun(ctx context.Context, run *api.Run) error {
	id, err := s.client.Incr(ctx, s.prefix+"run:seq").Result()
	if err != nil {
		return err
	}

	now := time.Now()
	run.ID = id
	run.CreatedAt = now
	run.UpdatedAt = now

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("storage: encode run: %w", err)
	}
	return s.client.Set(ctx, s.keyRun(id), data, 0).Err()
}

func (s *RedisRunStore) GetRun(ctx context.Context, id int64) (*api.Run, error) {
	data, err := s.client.Get(ctx, s.keyRun(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("workflow run %d: %w", id, api.ErrRunNotFound)
	}
	if err != nil {
		return nil, err
	}

	var run api.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("storage: decode run: %w", err)
	}
	return &run, nil
}

func (s *RedisRunStore) UpdateRunStatus(ctx context.Context, id int64, status api.RunStatus) error {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return err
	}

	run.Status = status
	run.UpdatedAt = time.Now()

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("storage: encode run: %w", err)
	}
	return s.client.Set(ctx, s.keyRun(id), data, 0).Err()
}

func (s *RedisRunStore) CreateRunLog(ctx context.Context, log *api.RunLog) error {
	id, err := s.client.Incr(ctx, s.prefix+"runlog:seq").Result()
	if err != nil {
		return err
	}
	log.ID = id

	data, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("storage: encode run log: %w", err)
	}
	return s.client.RPush(ctx, s.keyRunLogs(log.RunID), data).Err()
}

func (s *RedisRunStore) ListRunLogs(ctx context.Context, runID int64) ([]*api.RunLog, error) {
	entries, err := s.client.LRange(ctx, s.keyRunLogs(runID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*api.RunLog, 0, len(entries))
	for _, entry := range entries {
		var log api.RunLog
		if err := json.Unmarshal([]byte(entry), &log); err != nil {
			return nil, fmt.Errorf("storage: decode run log: %w", err)
		}
		out = append(out, &log)
	}
	return out, nil
}
