package api

import "context"

// Payload is the concrete domain value a Subject resolves to, e.g. a loaded
// subscriber record. Step runners type-assert to the payload type they need.
type Payload any

// Subject is a named capability that turns captured subject data into a
// concrete payload.
type Subject interface {
	// Key uniquely identifies the subject kind, e.g. "mailpoet:subscriber".
	Key() string

	// Name is a human-readable label.
	Name() string

	// ArgsSchema declares the shape of the subject data arguments.
	// A nil schema means the args are not validated.
	ArgsSchema() *Schema

	// Payload loads the domain value referenced by the given subject data.
	Payload(ctx context.Context, data SubjectData) (Payload, error)
}

// SubjectEntry pairs a Subject implementation with one captured subject-data
// row and resolves the payload lazily, caching it on first access.
type SubjectEntry struct {
	subject  Subject
	data     SubjectData
	payload  Payload
	resolved bool
}

// NewSubjectEntry creates an unresolved entry.
func NewSubjectEntry(subject Subject, data SubjectData) *SubjectEntry {
	return &SubjectEntry{subject: subject, data: data}
}

// Subject returns the underlying subject implementation.
func (e *SubjectEntry) Subject() Subject {
	return e.subject
}

// Data returns the captured subject data.
func (e *SubjectEntry) Data() SubjectData {
	return e.data
}

// Payload resolves the entry's payload. The first call queries the subject;
// subsequent calls return the cached value. A resolution failure is wrapped
// into a SubjectLoadError carrying the subject key and arguments.
func (e *SubjectEntry) Payload(ctx context.Context) (Payload, error) {
	if !e.resolved {
		payload, err := e.subject.Payload(ctx, e.data)
		if err != nil {
			return nil, &SubjectLoadError{Key: e.subject.Key(), Args: e.data.Args}
		}
		e.payload = payload
		e.resolved = true
	}
	return e.payload, nil
}
