// Package hooks provides the engine's lifecycle extension points: before-save
// hooks fired while a workflow update is staged, and the after-step-run hook
// fired once per step-execution attempt.
package hooks

import (
	"sync"

	"github.com/d-alleyne/mailpoet/pkg/api"
)

// StepHook observes or mutates a step while an update is being staged.
type StepHook func(step *api.Step)

// WorkflowHook observes or mutates a workflow while an update is being staged.
type WorkflowHook func(workflow *api.Workflow)

// RunLogHook observes a finished step-execution attempt. Errors (panics) in
// run-log hooks are isolated by the engine and never affect the attempt's
// recorded outcome.
type RunLogHook func(log *api.RunLog) error

// Hooks is an explicit, instance-scoped hook registry. The zero value is
// not usable; create one with New.
type Hooks struct {
	mu                sync.RWMutex
	stepBeforeSave    []StepHook
	stepKeyBeforeSave map[string][]StepHook
	wfBeforeSave      []WorkflowHook
	stepAfterRun      []RunLogHook
}

// New creates an empty hook registry.
func New() *Hooks {
	return &Hooks{
		stepKeyBeforeSave: make(map[string][]StepHook),
	}
}

// OnStepBeforeSave registers a hook fired for every step of an update.
func (h *Hooks) OnStepBeforeSave(fn StepHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stepBeforeSave = append(h.stepBeforeSave, fn)
}

// OnStepKeyBeforeSave registers a hook fired only for steps with the given key.
func (h *Hooks) OnStepKeyBeforeSave(key string, fn StepHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stepKeyBeforeSave[key] = append(h.stepKeyBeforeSave[key], fn)
}

// OnWorkflowBeforeSave registers a hook fired once per update, after the
// per-step hooks.
func (h *Hooks) OnWorkflowBeforeSave(fn WorkflowHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.wfBeforeSave = append(h.wfBeforeSave, fn)
}

// OnStepAfterRun registers a hook fired once per step-execution attempt with
// the attempt's log entry, before the entry is persisted.
func (h *Hooks) OnStepAfterRun(fn RunLogHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stepAfterRun = append(h.stepAfterRun, fn)
}

// DoStepBeforeSave fires the per-step and per-step-key before-save hooks.
func (h *Hooks) DoStepBeforeSave(step *api.Step) {
	h.mu.RLock()
	general := h.stepBeforeSave
	keyed := h.stepKeyBeforeSave[step.Key]
	h.mu.RUnlock()

	for _, fn := range general {
		fn(step)
	}
	for _, fn := range keyed {
		fn(step)
	}
}

// DoWorkflowBeforeSave fires the workflow-level before-save hooks.
func (h *Hooks) DoWorkflowBeforeSave(workflow *api.Workflow) {
	h.mu.RLock()
	fns := h.wfBeforeSave
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(workflow)
	}
}

// DoStepAfterRun fires the after-run hooks. Hook errors and panics are
// contained here so they can never mask the true step outcome; the first
// error is returned for optional logging by the caller.
func (h *Hooks) DoStepAfterRun(log *api.RunLog) (err error) {
	defer func() {
		if r := recover(); r != nil && err == nil {
			err = &api.InvalidStateError{Reason: "step after-run hook panicked"}
		}
	}()

	h.mu.RLock()
	fns := h.stepAfterRun
	h.mu.RUnlock()

	for _, fn := range fns {
		if hookErr := fn(log); hookErr != nil && err == nil {
			err = hookErr
		}
	}
	return err
}
