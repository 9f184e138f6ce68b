package engine

import (
	"fmt"

	"github.com/d-alleyne/mailpoet/pkg/api"
	"github.com/d-alleyne/mailpoet/pkg/registry"
)

// SubjectLoader builds lazily-resolving subject entries from the subject
// data captured on a run.
type SubjectLoader struct {
	registry *registry.Registry
}

// NewSubjectLoader creates a loader bound to a registry.
func NewSubjectLoader(reg *registry.Registry) *SubjectLoader {
	return &SubjectLoader{registry: reg}
}

// SubjectEntry pairs one subject-data row with its registered subject.
func (l *SubjectLoader) SubjectEntry(data api.SubjectData) (*api.SubjectEntry, error) {
	subject := l.registry.Subject(data.Key)
	if subject == nil {
		return nil, fmt.Errorf("subject %q: %w", data.Key, api.ErrSubjectNotFound)
	}
	return api.NewSubjectEntry(subject, data), nil
}

// EntriesFor resolves entries for exactly the required subject keys from
// the run's captured subject data. A required key with no captured data
// fails with SubjectDataMissingError. Keys with multiple captured rows
// yield one entry per row.
func (l *SubjectLoader) EntriesFor(run *api.Run, requiredKeys []string) ([]*api.SubjectEntry, error) {
	grouped := run.SubjectsByKey()

	var entries []*api.SubjectEntry
	for _, key := range requiredKeys {
		data, ok := grouped[key]
		if !ok {
			return nil, &api.SubjectDataMissingError{Key: key, RunID: run.ID}
		}
		for _, d := range data {
			entry, err := l.SubjectEntry(d)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}
