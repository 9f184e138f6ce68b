// Package validation checks workflow graphs against the engine's structural
// rules. Rules are independent visitor objects run in a fixed order over a
// breadth-first traversal from the root step.
package validation

import (
	"fmt"

	"github.com/d-alleyne/mailpoet/pkg/api"
)

// Node is one visited graph node. Parents lists the steps referencing it.
type Node struct {
	Step    *api.Step
	Parents []*api.Step
}

// Visitor is a single validation rule. Initialize runs once before the
// traversal, VisitNode once per reachable step (root included), and
// Complete once after the traversal.
type Visitor interface {
	Initialize(workflow *api.Workflow) error
	VisitNode(workflow *api.Workflow, node *Node) error
	Complete(workflow *api.Workflow) error
}

// Walk traverses the workflow graph breadth-first from its root and applies
// each visitor. It fails when the workflow does not have exactly one root
// step or when a next-step reference points outside the step set; the
// visitors rely on those base invariants.
func Walk(workflow *api.Workflow, visitors []Visitor) error {
	var root *api.Step
	rootCount := 0
	for _, step := range workflow.Steps {
		if step.Type == api.StepTypeRoot {
			root = step
			rootCount++
		}
	}
	if rootCount != 1 {
		return api.NewStructureError(fmt.Sprintf("workflow must have exactly one root step, found %d", rootCount))
	}

	for _, v := range visitors {
		if err := v.Initialize(workflow); err != nil {
			return err
		}
	}

	parents := make(map[string][]*api.Step)
	for _, step := range workflow.Steps {
		for _, next := range step.NextSteps {
			if workflow.Steps[next.ID] == nil {
				return api.NewStructureError(fmt.Sprintf("step %q references unknown step %q", step.ID, next.ID))
			}
			parents[next.ID] = append(parents[next.ID], step)
		}
	}

	queue := []*api.Step{root}
	visited := map[string]bool{root.ID: true}
	for len(queue) > 0 {
		step := queue[0]
		queue = queue[1:]

		node := &Node{Step: step, Parents: parents[step.ID]}
		for _, v := range visitors {
			if err := v.VisitNode(workflow, node); err != nil {
				return err
			}
		}

		for _, next := range step.NextSteps {
			if !visited[next.ID] {
				visited[next.ID] = true
				queue = append(queue, workflow.Steps[next.ID])
			}
		}
	}

	for _, v := range visitors {
		if err := v.Complete(workflow); err != nil {
			return err
		}
	}
	return nil
}
