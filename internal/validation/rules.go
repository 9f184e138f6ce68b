package validation

import (
	"fmt"

	"github.com/d-alleyne/mailpoet/pkg/api"
	"github.com/d-alleyne/mailpoet/pkg/registry"
)

// TriggersUnderRootRule enforces that trigger steps only ever appear as
// direct children of the root step.
type TriggersUnderRootRule struct {
	triggerIDs map[string]bool
}

var _ Visitor = (*TriggersUnderRootRule)(nil)

func (r *TriggersUnderRootRule) Initialize(workflow *api.Workflow) error {
	r.triggerIDs = make(map[string]bool)
	for _, step := range workflow.Steps {
		if step.Type == api.StepTypeTrigger {
			r.triggerIDs[step.ID] = true
		}
	}
	return nil
}

func (r *TriggersUnderRootRule) VisitNode(workflow *api.Workflow, node *Node) error {
	if node.Step.Type == api.StepTypeRoot {
		return nil
	}
	for _, next := range node.Step.NextSteps {
		if r.triggerIDs[next.ID] {
			return api.NewStructureError("trigger must be a direct descendant of workflow root")
		}
	}
	return nil
}

func (r *TriggersUnderRootRule) Complete(workflow *api.Workflow) error {
	return nil
}

// UnreachableStepsRule fails when any step cannot be reached from the root.
type UnreachableStepsRule struct {
	visited int
}

var _ Visitor = (*UnreachableStepsRule)(nil)

func (r *UnreachableStepsRule) Initialize(workflow *api.Workflow) error {
	r.visited = 0
	return nil
}

func (r *UnreachableStepsRule) VisitNode(workflow *api.Workflow, node *Node) error {
	r.visited++
	return nil
}

func (r *UnreachableStepsRule) Complete(workflow *api.Workflow) error {
	if r.visited != len(workflow.Steps) {
		return api.NewStructureError(fmt.Sprintf("%d step(s) are not reachable from the root", len(workflow.Steps)-r.visited))
	}
	return nil
}

// ValidStepArgsRule validates each step's args against the schema declared
// by the step implementation registered for the step's key. An unknown key
// is a hard error.
type ValidStepArgsRule struct {
	registry *registry.Registry
}

var _ Visitor = (*ValidStepArgsRule)(nil)

// NewValidStepArgsRule creates the rule bound to a registry.
func NewValidStepArgsRule(reg *registry.Registry) *ValidStepArgsRule {
	return &ValidStepArgsRule{registry: reg}
}

func (r *ValidStepArgsRule) Initialize(workflow *api.Workflow) error {
	return nil
}

func (r *ValidStepArgsRule) VisitNode(workflow *api.Workflow, node *Node) error {
	step := node.Step
	if step.Type == api.StepTypeRoot {
		return nil
	}
	def := r.registry.Step(step.Key)
	if def == nil {
		return fmt.Errorf("step type %q: %w", step.Key, api.ErrStepNotFound)
	}
	if err := def.ArgsSchema().Validate(step.Args); err != nil {
		return fmt.Errorf("step %q: %w", step.ID, err)
	}
	return nil
}

func (r *ValidStepArgsRule) Complete(workflow *api.Workflow) error {
	return nil
}
