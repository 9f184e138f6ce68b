package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/d-alleyne/mailpoet/pkg/api"
)

type testTrigger struct {
	key        string
	dispatcher api.TriggerDispatcher
}

func (t *testTrigger) Key() string             { return t.key }
func (t *testTrigger) Name() string            { return t.key }
func (t *testTrigger) ArgsSchema() *api.Schema { return nil }
func (t *testTrigger) RegisterHooks(d api.TriggerDispatcher) {
	t.dispatcher = d
}
func (t *testTrigger) IsTriggeredBy(context.Context, *api.Workflow, *api.Run) (bool, error) {
	return true, nil
}

type testAction struct {
	key string
}

func (a *testAction) Key() string                                 { return a.key }
func (a *testAction) Name() string                                { return a.key }
func (a *testAction) ArgsSchema() *api.Schema                     { return nil }
func (a *testAction) SubjectKeys() []string                       { return nil }
func (a *testAction) Run(context.Context, *api.StepRunArgs) error { return nil }

type testSubject struct {
	key string
}

func (s *testSubject) Key() string             { return s.key }
func (s *testSubject) Name() string            { return s.key }
func (s *testSubject) ArgsSchema() *api.Schema { return nil }
func (s *testSubject) Payload(context.Context, api.SubjectData) (api.Payload, error) {
	return nil, nil
}

func TestRegistry_StepLookups(t *testing.T) {
	t.Parallel()

	reg := New()
	trigger := &testTrigger{key: "test:trigger"}
	action := &testAction{key: "test:action"}
	require.NoError(t, reg.AddTrigger(trigger))
	require.NoError(t, reg.AddAction(action))

	require.Equal(t, trigger, reg.Trigger("test:trigger"))
	require.Equal(t, action, reg.Action("test:action"))
	require.NotNil(t, reg.Step("test:trigger"))

	// Kind-specific getters reject the other kind.
	require.Nil(t, reg.Trigger("test:action"))
	require.Nil(t, reg.Action("test:trigger"))
	require.Nil(t, reg.Step("test:unknown"))
}

func TestRegistry_DuplicateKeysRejected(t *testing.T) {
	t.Parallel()

	reg := New()
	require.NoError(t, reg.AddTrigger(&testTrigger{key: "test:step"}))
	require.Error(t, reg.AddAction(&testAction{key: "test:step"}), "triggers and actions share one key space")

	require.NoError(t, reg.AddSubject(&testSubject{key: "test:subject"}))
	require.Error(t, reg.AddSubject(&testSubject{key: "test:subject"}))
}

func TestRegistry_Subjects(t *testing.T) {
	t.Parallel()

	reg := New()
	subject := &testSubject{key: "test:subject"}
	require.NoError(t, reg.AddSubject(subject))
	require.Equal(t, subject, reg.Subject("test:subject"))
	require.Nil(t, reg.Subject("test:unknown"))
}

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(context.Context, api.Trigger, []api.SubjectData) ([]int64, error) {
	return nil, nil
}

func TestRegistry_RegisterTriggerHooks(t *testing.T) {
	t.Parallel()

	reg := New()
	first := &testTrigger{key: "test:first"}
	second := &testTrigger{key: "test:second"}
	require.NoError(t, reg.AddTrigger(first))
	require.NoError(t, reg.AddTrigger(second))
	require.Len(t, reg.Triggers(), 2)

	dispatcher := noopDispatcher{}
	reg.RegisterTriggerHooks(dispatcher)
	require.NotNil(t, first.dispatcher)
	require.NotNil(t, second.dispatcher)
}
