package api

import (
	"encoding/json"
	"fmt"
	"time"
)

// WorkflowStatus represents the authoring lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"
	WorkflowStatusActive   WorkflowStatus = "active"
	WorkflowStatusInactive WorkflowStatus = "inactive"
	WorkflowStatusTrash    WorkflowStatus = "trash"
)

// Valid reports whether s is one of the enumerated workflow statuses.
func (s WorkflowStatus) Valid() bool {
	switch s {
	case WorkflowStatusDraft, WorkflowStatusActive, WorkflowStatusInactive, WorkflowStatusTrash:
		return true
	}
	return false
}

// StepType classifies a step node within a workflow graph.
type StepType string

const (
	StepTypeRoot    StepType = "root"
	StepTypeTrigger StepType = "trigger"
	StepTypeAction  StepType = "action"
)

// RootStepID is the id of the synthetic root step every workflow carries.
const RootStepID = "root"

// NextStep is a reference to a follow-up step within the same workflow.
type NextStep struct {
	ID string `json:"id"`
}

// Step is a single node in a workflow graph.
//
// The engine only ever advances to the first entry of NextSteps; additional
// entries are carried in the data model but are not followed.
type Step struct {
	ID        string         `json:"id"`
	Type      StepType       `json:"type"`
	Key       string         `json:"key"`
	Args      map[string]any `json:"args"`
	NextSteps []NextStep     `json:"next_steps"`
}

// NextStepID returns the id of the step's designated successor, or "" when
// the step has none.
func (s *Step) NextStepID() string {
	if len(s.NextSteps) == 0 {
		return ""
	}
	return s.NextSteps[0].ID
}

// ToMap returns the step as a plain key/value map, the canonical form used
// for persistence and for structural comparison during updates.
func (s *Step) ToMap() map[string]any {
	data, err := json.Marshal(s)
	if err != nil {
		// Step contains only JSON-encodable fields; this cannot happen for
		// steps built via StepFromMap or composite literals of plain data.
		panic(fmt.Sprintf("api: step %q is not serializable: %v", s.ID, err))
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		panic(fmt.Sprintf("api: step %q round-trip failed: %v", s.ID, err))
	}
	return m
}

// StepFromMap builds a Step from its canonical map form.
func StepFromMap(m map[string]any) (*Step, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("api: decode step: %w", err)
	}
	var s Step
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("api: decode step: %w", err)
	}
	return &s, nil
}

// Copy returns a deep copy of the step.
func (s *Step) Copy() *Step {
	c, err := StepFromMap(s.ToMap())
	if err != nil {
		panic(fmt.Sprintf("api: step %q copy failed: %v", s.ID, err))
	}
	return c
}

// Workflow is a versioned, directed step graph rooted at a single root step.
//
// Editing a workflow produces a new VersionID while runs already in flight
// stay pinned to the version that was current when they started.
type Workflow struct {
	ID          int64
	Name        string
	Status      WorkflowStatus
	VersionID   string
	AuthorID    int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ActivatedAt time.Time

	// Steps holds the full step set keyed by step id, including exactly
	// one step of type root.
	Steps map[string]*Step
}

// GetStep returns the step with the given id, or nil if the workflow has no
// such step.
func (w *Workflow) GetStep(id string) *Step {
	return w.Steps[id]
}

// Root returns the workflow's root step, or nil for a malformed graph.
func (w *Workflow) Root() *Step {
	for _, s := range w.Steps {
		if s.Type == StepTypeRoot {
			return s
		}
	}
	return nil
}

// Trigger returns the first trigger step with the given key, or nil.
func (w *Workflow) Trigger(key string) *Step {
	for _, s := range w.TriggerSteps() {
		if s.Key == key {
			return s
		}
	}
	return nil
}

// TriggerSteps returns all trigger-typed steps, root children first.
func (w *Workflow) TriggerSteps() []*Step {
	var out []*Step
	seen := map[string]bool{}
	if root := w.Root(); root != nil {
		for _, next := range root.NextSteps {
			if s := w.Steps[next.ID]; s != nil && s.Type == StepTypeTrigger {
				out = append(out, s)
				seen[s.ID] = true
			}
		}
	}
	for _, s := range w.Steps {
		if s.Type == StepTypeTrigger && !seen[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

// Copy returns a deep copy of the workflow, step set included.
func (w *Workflow) Copy() *Workflow {
	c := *w
	c.Steps = make(map[string]*Step, len(w.Steps))
	for id, s := range w.Steps {
		c.Steps[id] = s.Copy()
	}
	return &c
}
