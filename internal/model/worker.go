package model

type WorkerState string

const (
	WorkerWaiting     WorkerState = "waiting"
	WorkerDownloading WorkerState = "downloading"
	WorkerFinished    WorkerState = "finished"
	WorkerCrashed     WorkerState = "crashed"
)

// Terminal reports whether a worker in this state will send no further messages.
func (s WorkerState) Terminal() bool {
	return s == WorkerFinished || s == WorkerCrashed
}

// WorkerStatus is the latest state reported by one worker. Progress is
// display-only detail for repeated downloading reports on the same job.
type WorkerStatus struct {
	WorkerID string      `json:"worker_id"`
	State    WorkerState `json:"state"`
	JobID    string      `json:"job_id,omitempty"`
	Progress string      `json:"progress,omitempty"`
}
