package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/d-alleyne/mailpoet/pkg/api"
)

// Steps, subject data, and args maps are persisted as JSON: every field of
// the data model is schema-validated JSON data to begin with, and the rows
// stay inspectable from any SQL client.

func encodeSteps(steps map[string]*api.Step) (string, error) {
	data, err := json.Marshal(steps)
	if err != nil {
		return "", fmt.Errorf("storage: encode steps: %w", err)
	}
	return string(data), nil
}

func decodeSteps(data string) (map[string]*api.Step, error) {
	var steps map[string]*api.Step
	if err := json.Unmarshal([]byte(data), &steps); err != nil {
		return nil, fmt.Errorf("storage: decode steps: %w", err)
	}
	return steps, nil
}

func encodeSubjects(subjects []api.SubjectData) (string, error) {
	if subjects == nil {
		subjects = []api.SubjectData{}
	}
	data, err := json.Marshal(subjects)
	if err != nil {
		return "", fmt.Errorf("storage: encode subjects: %w", err)
	}
	return string(data), nil
}

func decodeSubjects(data string) ([]api.SubjectData, error) {
	var subjects []api.SubjectData
	if err := json.Unmarshal([]byte(data), &subjects); err != nil {
		return nil, fmt.Errorf("storage: decode subjects: %w", err)
	}
	return subjects, nil
}

// Timestamps are stored as unix nanoseconds; zero means "not set".

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func timeFromNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
