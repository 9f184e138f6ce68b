package api

import "context"

// StepDefinition is the contract every registered step implementation
// (trigger or action) exposes to the engine and the authoring layer.
type StepDefinition interface {
	// Key identifies the implementation, e.g. "mailpoet:send-email".
	// Step.Key references it from workflow graphs.
	Key() string

	// Name is a human-readable label.
	Name() string

	// ArgsSchema declares the contract Step.Args must validate against.
	// A nil schema means the args are not validated.
	ArgsSchema() *Schema
}

// TriggerDispatcher accepts fired trigger events. It is implemented by the
// engine; triggers receive it via RegisterHooks and call Dispatch when their
// domain event occurs.
type TriggerDispatcher interface {
	// Dispatch creates workflow runs for every active workflow whose
	// matching trigger step accepts the event, and enqueues their first
	// real step. It returns the ids of the created runs.
	Dispatch(ctx context.Context, trigger Trigger, subjects []SubjectData) ([]int64, error)
}

// Trigger is a step implementation that binds an external domain event to
// the creation of workflow runs.
type Trigger interface {
	StepDefinition

	// RegisterHooks subscribes the trigger to its domain event source and
	// hands it the dispatcher to emit into.
	RegisterHooks(dispatcher TriggerDispatcher)

	// IsTriggeredBy decides whether this trigger's criteria, as configured
	// on the workflow's trigger step, match the run's captured subject
	// data. Called when binding an event to workflows; not part of the
	// step-advance path.
	IsTriggeredBy(ctx context.Context, workflow *Workflow, run *Run) (bool, error)
}

// Action is a step implementation executed while a run advances.
type Action interface {
	StepDefinition

	// SubjectKeys lists the subject keys this action requires; the engine
	// resolves exactly these before invoking Run.
	SubjectKeys() []string

	// Run executes the action. Returning an error fails the step and
	// terminates the run.
	Run(ctx context.Context, args *StepRunArgs) error
}

// StepRunArgs carries everything a step runner receives for one attempt:
// the pinned workflow version, the run, the step being executed, and the
// resolved subject entries for the step's required subject keys.
type StepRunArgs struct {
	Workflow *Workflow
	Run      *Run
	Step     *Step
	Subjects []*SubjectEntry
}

// SingleSubject returns the only subject entry with the given key.
// It fails if the run carries zero or more than one entry for the key.
func (a *StepRunArgs) SingleSubject(key string) (*SubjectEntry, error) {
	var found *SubjectEntry
	for _, entry := range a.Subjects {
		if entry.Subject().Key() != key {
			continue
		}
		if found != nil {
			return nil, &InvalidStateError{Reason: "multiple subjects for key " + key}
		}
		found = entry
	}
	if found == nil {
		return nil, &SubjectDataMissingError{Key: key, RunID: a.Run.ID}
	}
	return found, nil
}

// SubjectsFor returns all subject entries with the given key.
func (a *StepRunArgs) SubjectsFor(key string) []*SubjectEntry {
	var out []*SubjectEntry
	for _, entry := range a.Subjects {
		if entry.Subject().Key() == key {
			out = append(out, entry)
		}
	}
	return out
}

// StepRunner executes all steps of one step type. Runners are registered on
// the engine per step type; the built-in action runner dispatches to the
// Action registered for the step's key.
type StepRunner interface {
	Run(ctx context.Context, args *StepRunArgs) error
}
