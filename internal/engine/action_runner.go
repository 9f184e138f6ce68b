package engine

import (
	"context"
	"fmt"

	"github.com/d-alleyne/mailpoet/pkg/api"
	"github.com/d-alleyne/mailpoet/pkg/registry"
)

// ActionStepRunner dispatches action steps to the action registered under
// the step's key.
type ActionStepRunner struct {
	registry *registry.Registry
}

var _ api.StepRunner = (*ActionStepRunner)(nil)

// NewActionStepRunner creates a runner bound to a registry.
func NewActionStepRunner(reg *registry.Registry) *ActionStepRunner {
	return &ActionStepRunner{registry: reg}
}

func (r *ActionStepRunner) Run(ctx context.Context, args *api.StepRunArgs) error {
	action := r.registry.Action(args.Step.Key)
	if action == nil {
		return fmt.Errorf("action %q: %w", args.Step.Key, api.ErrStepNotFound)
	}
	return action.Run(ctx, args)
}
