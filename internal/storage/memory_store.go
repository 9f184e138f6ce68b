// Package storage provides the persistence implementations behind the
// engine's workflow, run, and run-log store interfaces.
package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/d-alleyne/mailpoet/pkg/api"
)

// MemoryStore is a goroutine-safe implementation of WorkflowStore, RunStore,
// and RunLogStore backed by maps. Intended for tests and small deployments.
type MemoryStore struct {
	mu sync.RWMutex

	nextWorkflowID int64
	nextRunID      int64
	nextLogID      int64

	// workflows[id][versionID] holds every persisted version.
	workflows map[int64]map[string]*api.Workflow
	latest    map[int64]string
	runs      map[int64]*api.Run
	logs      map[int64][]*api.RunLog
}

var (
	_ api.WorkflowStore = (*MemoryStore)(nil)
	_ api.RunStore      = (*MemoryStore)(nil)
	_ api.RunLogStore   = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows: make(map[int64]map[string]*api.Workflow),
		latest:    make(map[int64]string),
		runs:      make(map[int64]*api.Run),
		logs:      make(map[int64][]*api.RunLog),
	}
}

func (s *MemoryStore) CreateWorkflow(ctx context.Context, workflow *api.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextWorkflowID++
	now := time.Now()
	workflow.ID = s.nextWorkflowID
	workflow.VersionID = uuid.NewString()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	s.workflows[workflow.ID] = map[string]*api.Workflow{
		workflow.VersionID: workflow.Copy(),
	}
	s.latest[workflow.ID] = workflow.VersionID
	return nil
}

func (s *MemoryStore) GetWorkflow(ctx context.Context, id int64) (*api.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versionID, ok := s.latest[id]
	if !ok {
		return nil, fmt.Errorf("workflow %d: %w", id, api.ErrWorkflowNotFound)
	}
	return s.workflows[id][versionID].Copy(), nil
}

func (s *MemoryStore) GetWorkflowVersion(ctx context.Context, id int64, versionID string) (*api.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions, ok := s.workflows[id]
	if !ok {
		return nil, fmt.Errorf("workflow %d: %w", id, api.ErrWorkflowNotFound)
	}
	wf, ok := versions[versionID]
	if !ok {
		return nil, fmt.Errorf("workflow %d version %q: %w", id, versionID, api.ErrVersionNotFound)
	}
	// Historical versions pin the step graph; name and status always
	// reflect the current workflow row.
	out := wf.Copy()
	if current := versions[s.latest[id]]; current != nil {
		out.Name = current.Name
		out.Status = current.Status
		out.UpdatedAt = current.UpdatedAt
		out.ActivatedAt = current.ActivatedAt
	}
	return out, nil
}

func (s *MemoryStore) UpdateWorkflow(ctx context.Context, workflow *api.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions, ok := s.workflows[workflow.ID]
	if !ok {
		return fmt.Errorf("workflow %d: %w", workflow.ID, api.ErrWorkflowNotFound)
	}

	workflow.VersionID = uuid.NewString()
	workflow.UpdatedAt = time.Now()
	versions[workflow.VersionID] = workflow.Copy()
	s.latest[workflow.ID] = workflow.VersionID
	return nil
}

func (s *MemoryStore) ListActiveByTrigger(ctx context.Context, triggerKey string) ([]*api.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*api.Workflow
	for id, versionID := range s.latest {
		wf := s.workflows[id][versionID]
		if wf.Status == api.WorkflowStatusActive && wf.Trigger(triggerKey) != nil {
			out = append(out, wf.Copy())
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateRun(ctx context.Context, run *api.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextRunID++
	now := time.Now()
	run.ID = s.nextRunID
	run.CreatedAt = now
	run.UpdatedAt = now

	stored := *run
	stored.Subjects = append([]api.SubjectData(nil), run.Subjects...)
	s.runs[run.ID] = &stored
	return nil
}

func (s *MemoryStore) GetRun(ctx context.Context, id int64) (*api.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("workflow run %d: %w", id, api.ErrRunNotFound)
	}
	out := *run
	out.Subjects = append([]api.SubjectData(nil), run.Subjects...)
	return &out, nil
}

func (s *MemoryStore) UpdateRunStatus(ctx context.Context, id int64, status api.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("workflow run %d: %w", id, api.ErrRunNotFound)
	}
	run.Status = status
	run.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) CreateRunLog(ctx context.Context, log *api.RunLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextLogID++
	log.ID = s.nextLogID
	stored := *log
	s.logs[log.RunID] = append(s.logs[log.RunID], &stored)
	return nil
}

func (s *MemoryStore) ListRunLogs(ctx context.Context, runID int64) ([]*api.RunLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := s.logs[runID]
	out := make([]*api.RunLog, len(logs))
	for i, l := range logs {
		copied := *l
		out[i] = &copied
	}
	return out, nil
}
