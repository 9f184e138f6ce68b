// Package builder creates and edits stored workflows. All writes go through
// validation; edits additionally go through the shape lock, which restricts
// step patches to argument changes.
package builder

import (
	"context"
	"time"

	"github.com/d-alleyne/mailpoet/pkg/api"
	"github.com/d-alleyne/mailpoet/pkg/hooks"
	"github.com/d-alleyne/mailpoet/pkg/registry"

	"github.com/d-alleyne/mailpoet/internal/validation"
)

// UpdateWorkflowController applies partial edits to stored workflows.
// Every successful edit persists a new workflow version; runs already in
// flight keep executing the version they are pinned to.
type UpdateWorkflowController struct {
	storage   api.WorkflowStore
	validator *validation.Validator
	steps     *StepsUpdater
	hooks     *hooks.Hooks
}

var _ api.UpdateController = (*UpdateWorkflowController)(nil)

// NewUpdateWorkflowController creates an UpdateWorkflowController.
func NewUpdateWorkflowController(storage api.WorkflowStore, reg *registry.Registry, validator *validation.Validator, h *hooks.Hooks) *UpdateWorkflowController {
	return &UpdateWorkflowController{
		storage:   storage,
		validator: validator,
		steps:     NewStepsUpdater(reg),
		hooks:     h,
	}
}

// UpdateWorkflow stages the patch on the stored workflow, fires the
// before-save hooks, validates, and persists the result as a new version.
// It returns the workflow as reloaded from storage.
func (c *UpdateWorkflowController) UpdateWorkflow(ctx context.Context, id int64, patch api.UpdatePatch) (*api.Workflow, error) {
	workflow, err := c.storage.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		workflow.Name = *patch.Name
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, &api.InvalidValueError{Field: "status", Value: string(*patch.Status)}
		}
		if *patch.Status == api.WorkflowStatusActive && workflow.ActivatedAt.IsZero() {
			workflow.ActivatedAt = time.Now()
		}
		workflow.Status = *patch.Status
	}
	if patch.Steps != nil {
		merged, err := c.steps.Update(workflow, patch.Steps)
		if err != nil {
			return nil, err
		}
		workflow.Steps = merged
		for _, step := range workflow.Steps {
			c.hooks.DoStepBeforeSave(step)
		}
	}

	c.hooks.DoWorkflowBeforeSave(workflow)

	if err := c.validator.Validate(workflow); err != nil {
		return nil, err
	}
	if err := c.storage.UpdateWorkflow(ctx, workflow); err != nil {
		return nil, err
	}
	return c.storage.GetWorkflow(ctx, id)
}
