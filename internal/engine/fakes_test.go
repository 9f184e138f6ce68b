package engine

import (
	"context"

	"github.com/d-alleyne/mailpoet/pkg/api"
)

type stubAction struct {
	key         string
	subjectKeys []string
	err         error
	panics      bool

	calls    int
	lastArgs *api.StepRunArgs
}

func (a *stubAction) Key() string             { return a.key }
func (a *stubAction) Name() string            { return a.key }
func (a *stubAction) ArgsSchema() *api.Schema { return nil }
func (a *stubAction) SubjectKeys() []string   { return a.subjectKeys }

func (a *stubAction) Run(_ context.Context, args *api.StepRunArgs) error {
	a.calls++
	a.lastArgs = args
	if a.panics {
		panic("stub action exploded")
	}
	return a.err
}

type stubTrigger struct {
	key        string
	dispatcher api.TriggerDispatcher
	triggered  bool
	err        error
}

func (t *stubTrigger) Key() string             { return t.key }
func (t *stubTrigger) Name() string            { return t.key }
func (t *stubTrigger) ArgsSchema() *api.Schema { return nil }

func (t *stubTrigger) RegisterHooks(dispatcher api.TriggerDispatcher) {
	t.dispatcher = dispatcher
}

func (t *stubTrigger) IsTriggeredBy(context.Context, *api.Workflow, *api.Run) (bool, error) {
	return t.triggered, t.err
}

type stubSubject struct {
	key     string
	payload api.Payload
	err     error
}

func (s *stubSubject) Key() string             { return s.key }
func (s *stubSubject) Name() string            { return s.key }
func (s *stubSubject) ArgsSchema() *api.Schema { return nil }

func (s *stubSubject) Payload(context.Context, api.SubjectData) (api.Payload, error) {
	return s.payload, s.err
}
