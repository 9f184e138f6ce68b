// Package registry provides the lookup table binding step keys and subject
// keys to their implementations.
//
// A Registry is plain dependency-injected state: construct one, add the
// integrations you want, and pass it to the engine. Nothing in this module
// keeps process-wide registries, so tests and concurrent engines stay
// isolated.
package registry

import (
	"fmt"
	"sync"

	"github.com/d-alleyne/mailpoet/pkg/api"
)

// Registry maps step keys to trigger/action implementations and subject
// keys to subjects. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	steps    map[string]api.StepDefinition
	subjects map[string]api.Subject
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		steps:    make(map[string]api.StepDefinition),
		subjects: make(map[string]api.Subject),
	}
}

// AddTrigger registers a trigger implementation under its key.
func (r *Registry) AddTrigger(t api.Trigger) error {
	return r.addStep(t)
}

// AddAction registers an action implementation under its key.
func (r *Registry) AddAction(a api.Action) error {
	return r.addStep(a)
}

func (r *Registry) addStep(def api.StepDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.steps[def.Key()]; exists {
		return fmt.Errorf("registry: step %q already registered", def.Key())
	}
	r.steps[def.Key()] = def
	return nil
}

// AddSubject registers a subject implementation under its key.
func (r *Registry) AddSubject(s api.Subject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.subjects[s.Key()]; exists {
		return fmt.Errorf("registry: subject %q already registered", s.Key())
	}
	r.subjects[s.Key()] = s
	return nil
}

// Step returns the step implementation registered under key, or nil.
func (r *Registry) Step(key string) api.StepDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.steps[key]
}

// Trigger returns the trigger registered under key, or nil when the key is
// unknown or registered as a different kind.
func (r *Registry) Trigger(key string) api.Trigger {
	if t, ok := r.Step(key).(api.Trigger); ok {
		return t
	}
	return nil
}

// Action returns the action registered under key, or nil when the key is
// unknown or registered as a different kind.
func (r *Registry) Action(key string) api.Action {
	if a, ok := r.Step(key).(api.Action); ok {
		return a
	}
	return nil
}

// Subject returns the subject registered under key, or nil.
func (r *Registry) Subject(key string) api.Subject {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.subjects[key]
}

// Triggers returns all registered triggers.
func (r *Registry) Triggers() []api.Trigger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []api.Trigger
	for _, def := range r.steps {
		if t, ok := def.(api.Trigger); ok {
			out = append(out, t)
		}
	}
	return out
}

// RegisterTriggerHooks hands the dispatcher to every registered trigger so
// they can start emitting domain events. Call once after wiring the engine.
func (r *Registry) RegisterTriggerHooks(dispatcher api.TriggerDispatcher) {
	for _, t := range r.Triggers() {
		t.RegisterHooks(dispatcher)
	}
}
