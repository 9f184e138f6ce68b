package builder

import (
	"encoding/json"
	"fmt"

	"github.com/d-alleyne/mailpoet/pkg/api"
	"github.com/d-alleyne/mailpoet/pkg/registry"
)

// StepsUpdater merges a step patch into an existing workflow under the
// shape lock: the patch must carry exactly the existing step ids, and for
// each step everything except its args must be byte-identical in canonical
// form. Changing the graph itself requires creating a new workflow.
type StepsUpdater struct {
	registry *registry.Registry
}

// NewStepsUpdater creates a StepsUpdater bound to a registry.
func NewStepsUpdater(reg *registry.Registry) *StepsUpdater {
	return &StepsUpdater{registry: reg}
}

// Update returns the merged step set, or fails with
// ErrStructureModificationNotSupported when the patch changes the shape,
// or ErrStepNotFound when a modified step carries an unregistered key.
func (u *StepsUpdater) Update(workflow *api.Workflow, patch map[string]*api.Step) (map[string]*api.Step, error) {
	if len(patch) != len(workflow.Steps) {
		return nil, fmt.Errorf("step count changed from %d to %d: %w",
			len(workflow.Steps), len(patch), api.ErrStructureModificationNotSupported)
	}

	merged := make(map[string]*api.Step, len(patch))
	for id, step := range patch {
		existing := workflow.Steps[id]
		if existing == nil {
			return nil, fmt.Errorf("step %q does not exist: %w", id, api.ErrStructureModificationNotSupported)
		}
		if step.ID != id {
			return nil, fmt.Errorf("step id %q does not match its key %q: %w",
				step.ID, id, api.ErrStructureModificationNotSupported)
		}
		if shapeFingerprint(existing) != shapeFingerprint(step) {
			return nil, fmt.Errorf("step %q changed beyond its args: %w", id, api.ErrStructureModificationNotSupported)
		}
		if changed(existing, step) && step.Type != api.StepTypeRoot && u.registry.Step(step.Key) == nil {
			return nil, fmt.Errorf("cannot modify step with unknown key %q: %w", step.Key, api.ErrStepNotFound)
		}
		merged[id] = step.Copy()
	}
	return merged, nil
}

// shapeFingerprint is the canonical encoding of a step with its args
// removed. Two steps with equal fingerprints differ at most in args.
func shapeFingerprint(step *api.Step) string {
	m := step.ToMap()
	delete(m, "args")
	data, err := json.Marshal(m)
	if err != nil {
		panic(fmt.Sprintf("builder: step %q fingerprint failed: %v", step.ID, err))
	}
	return string(data)
}

func changed(a, b *api.Step) bool {
	da, err := json.Marshal(a.ToMap())
	if err != nil {
		return true
	}
	db, err := json.Marshal(b.ToMap())
	if err != nil {
		return true
	}
	return string(da) != string(db)
}
