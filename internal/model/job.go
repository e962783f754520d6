package model

import (
	"fmt"
	"strings"
)

type JobState string

const (
	StatePending     JobState = "pending"
	StateDownloading JobState = "downloading"
	StateFinished    JobState = "finished"
	StateFailed      JobState = "failed"
	StateSkipped     JobState = "skipped"
)

// Job is one downloadable item keyed by its external video id.
type Job struct {
	ID    string   `json:"id"`
	State JobState `json:"state"`
	Error string   `json:"error,omitempty"`
}

var persistedStates = map[JobState]bool{
	StatePending:  true,
	StateFinished: true,
	StateFailed:   true,
	StateSkipped:  true,
}

// Persisted reports whether the state may be written to the job store.
// Downloading only ever exists in worker-reported status.
func (s JobState) Persisted() bool {
	return persistedStates[s]
}

func (s JobState) Terminal() bool {
	return s == StateFinished || s == StateFailed || s == StateSkipped
}

func (s JobState) String() string {
	return string(s)
}

func ParseJobState(raw string) (JobState, error) {
	s := JobState(strings.ToLower(strings.TrimSpace(raw)))
	if s == StateDownloading || persistedStates[s] {
		return s, nil
	}
	return "", fmt.Errorf("unknown job state %q", raw)
}
