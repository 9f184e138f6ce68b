package builder

import (
	"context"

	"github.com/d-alleyne/mailpoet/pkg/api"
)

type fakeTrigger struct {
	key string
}

func (t *fakeTrigger) Key() string                         { return t.key }
func (t *fakeTrigger) Name() string                        { return t.key }
func (t *fakeTrigger) ArgsSchema() *api.Schema             { return nil }
func (t *fakeTrigger) RegisterHooks(api.TriggerDispatcher) {}
func (t *fakeTrigger) IsTriggeredBy(context.Context, *api.Workflow, *api.Run) (bool, error) {
	return true, nil
}

type fakeAction struct {
	key string
}

func (a *fakeAction) Key() string                                 { return a.key }
func (a *fakeAction) Name() string                                { return a.key }
func (a *fakeAction) ArgsSchema() *api.Schema                     { return nil }
func (a *fakeAction) SubjectKeys() []string                       { return nil }
func (a *fakeAction) Run(context.Context, *api.StepRunArgs) error { return nil }
