package model

type OutcomeKind string

const (
	OutcomeFinished OutcomeKind = "finished"
	OutcomeFailed   OutcomeKind = "failed"
	OutcomeSkipped  OutcomeKind = "skipped"

	// OutcomePersistenceFailed is recorded by the aggregator when a result
	// could not be written to the job store. Workers never produce it.
	OutcomePersistenceFailed OutcomeKind = "persistence_failed"
)

// Outcome is the result of one download attempt.
type Outcome struct {
	WorkerID string      `json:"worker_id"`
	JobID    string      `json:"job_id"`
	Kind     OutcomeKind `json:"kind"`
	Error    string      `json:"error,omitempty"`
}

// JobState maps an outcome to the state persisted for its job.
func (o Outcome) JobState() (JobState, bool) {
	switch o.Kind {
	case OutcomeFinished:
		return StateFinished, true
	case OutcomeFailed:
		return StateFailed, true
	case OutcomeSkipped:
		return StateSkipped, true
	default:
		return "", false
	}
}

// Message travels on the worker output stream. Exactly one field is set.
type Message struct {
	Status  *WorkerStatus
	Outcome *Outcome
}

func StatusMessage(s WorkerStatus) Message {
	return Message{Status: &s}
}

func OutcomeMessage(o Outcome) Message {
	return Message{Outcome: &o}
}
