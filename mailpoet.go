package mailpoet

import (
	"github.com/d-alleyne/mailpoet/pkg/api"
	"github.com/d-alleyne/mailpoet/pkg/hooks"
	"github.com/d-alleyne/mailpoet/pkg/registry"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Workflow       = api.Workflow
	WorkflowStatus = api.WorkflowStatus
	Step           = api.Step
	StepType       = api.StepType
	NextStep       = api.NextStep
	Run            = api.Run
	RunStatus      = api.RunStatus
	RunLog         = api.RunLog
	SubjectData    = api.SubjectData
	UpdatePatch    = api.UpdatePatch
	JobArgs        = api.JobArgs
	Schema         = api.Schema

	Registry = registry.Registry
	Hooks    = hooks.Hooks
)

// Re-export the enumerated statuses and step types.

const (
	WorkflowStatusDraft    = api.WorkflowStatusDraft
	WorkflowStatusActive   = api.WorkflowStatusActive
	WorkflowStatusInactive = api.WorkflowStatusInactive
	WorkflowStatusTrash    = api.WorkflowStatusTrash

	RunStatusRunning  = api.RunStatusRunning
	RunStatusComplete = api.RunStatusComplete
	RunStatusFailed   = api.RunStatusFailed

	StepTypeRoot    = api.StepTypeRoot
	StepTypeTrigger = api.StepTypeTrigger
	StepTypeAction  = api.StepTypeAction

	RootStepID = api.RootStepID
)

// Re-export common constructors and helpers.

var (
	NewRegistry = registry.New
	NewHooks    = hooks.New
	NewSchema   = api.NewSchema
	MustSchema  = api.MustSchema
)
