package api

import (
	"errors"
	"fmt"
)

// Sentinel errors for unresolvable references. Stores and controllers wrap
// these with context via fmt.Errorf("...: %w", ...).
var (
	// ErrWorkflowNotFound is returned when a workflow id is unknown.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrVersionNotFound is returned when the pinned workflow version of a
	// run can no longer be loaded (e.g. it has been purged).
	ErrVersionNotFound = errors.New("workflow version not found")

	// ErrRunNotFound is returned when a workflow run id is unknown.
	ErrRunNotFound = errors.New("workflow run not found")

	// ErrStepNotFound is returned when a step id or step key cannot be
	// resolved within its workflow or registry.
	ErrStepNotFound = errors.New("step not found")

	// ErrSubjectNotFound is returned when no subject implementation is
	// registered for a captured subject key.
	ErrSubjectNotFound = errors.New("subject not found")

	// ErrStructureModificationNotSupported is returned by the update
	// controller when a patch would change the shape of a workflow graph.
	ErrStructureModificationNotSupported = errors.New("workflow structure modification is not supported")
)

// StructureError reports a violation of the workflow graph rules.
type StructureError struct {
	Detail string
}

func (e *StructureError) Error() string {
	return "invalid workflow structure: " + e.Detail
}

// NewStructureError creates a StructureError with the given detail.
func NewStructureError(detail string) *StructureError {
	return &StructureError{Detail: detail}
}

// InvalidValueError reports a field value outside its enumerated or
// schema-declared domain.
type InvalidValueError struct {
	Field string
	Value any
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value for %s: %v", e.Field, e.Value)
}

// NotRunningError is returned when a step advance is requested for a run
// that has already left the running state. It makes duplicate or late queue
// deliveries safe: the delivery fails without re-executing anything.
type NotRunningError struct {
	RunID  int64
	Status RunStatus
}

func (e *NotRunningError) Error() string {
	return fmt.Sprintf("workflow run %d is not running (status: %s)", e.RunID, e.Status)
}

// InvalidStateError reports malformed job arguments or a step type with no
// registered runner.
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string {
	if e.Reason == "" {
		return "invalid state"
	}
	return "invalid state: " + e.Reason
}

// SubjectDataMissingError is returned when a step requires a subject key
// that the run did not capture at trigger time.
type SubjectDataMissingError struct {
	Key   string
	RunID int64
}

func (e *SubjectDataMissingError) Error() string {
	return fmt.Sprintf("subject data for key %q not found for workflow run %d", e.Key, e.RunID)
}

// SubjectLoadError is returned when a subject fails to resolve its payload.
// It carries the subject key and arguments for diagnostics; the underlying
// cause is deliberately not exposed to step runners.
type SubjectLoadError struct {
	Key  string
	Args map[string]any
}

func (e *SubjectLoadError) Error() string {
	return fmt.Sprintf("loading payload for subject %q failed (args: %v)", e.Key, e.Args)
}
