package validation

import (
	"github.com/d-alleyne/mailpoet/pkg/api"
	"github.com/d-alleyne/mailpoet/pkg/registry"
)

// Validator runs the engine's rule pipeline over a workflow graph.
// Rules run in a fixed order and short-circuit on the first violation.
type Validator struct {
	rules []Visitor
}

// New creates a Validator with the standard rule set.
func New(reg *registry.Registry) *Validator {
	return &Validator{
		rules: []Visitor{
			&TriggersUnderRootRule{},
			&UnreachableStepsRule{},
			NewValidStepArgsRule(reg),
		},
	}
}

// AddRule appends a custom rule to the pipeline.
func (v *Validator) AddRule(rule Visitor) {
	v.rules = append(v.rules, rule)
}

// Validate fails with a StructureError (or a rule-specific error) when the
// workflow violates any structural rule.
func (v *Validator) Validate(workflow *api.Workflow) error {
	return Walk(workflow, v.rules)
}
