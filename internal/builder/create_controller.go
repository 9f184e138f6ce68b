package builder

import (
	"context"

	"github.com/d-alleyne/mailpoet/pkg/api"

	"github.com/d-alleyne/mailpoet/internal/validation"
)

// CreateWorkflowController validates and persists new workflows.
type CreateWorkflowController struct {
	storage   api.WorkflowStore
	validator *validation.Validator
}

// NewCreateWorkflowController creates a CreateWorkflowController.
func NewCreateWorkflowController(storage api.WorkflowStore, validator *validation.Validator) *CreateWorkflowController {
	return &CreateWorkflowController{storage: storage, validator: validator}
}

// CreateWorkflow persists a new draft workflow with the given step graph.
// The workflow id and initial version id are assigned by the store.
func (c *CreateWorkflowController) CreateWorkflow(ctx context.Context, name string, steps map[string]*api.Step) (*api.Workflow, error) {
	workflow := &api.Workflow{
		Name:   name,
		Status: api.WorkflowStatusDraft,
		Steps:  steps,
	}
	if err := c.validator.Validate(workflow); err != nil {
		return nil, err
	}
	if err := c.storage.CreateWorkflow(ctx, workflow); err != nil {
		return nil, err
	}
	return workflow, nil
}
