package ui

import (
	"fmt"

	"github.com/charmbracelet/log"

	"yt-mirror/internal/archive"
	"yt-mirror/internal/model"
)

// LineObserver logs each result once. It is used when stdout is not a
// terminal; aborting is left to context cancellation.
type LineObserver struct {
	logger    *log.Logger
	completed int
	crashed   map[string]bool
}

func NewLineObserver(logger *log.Logger) *LineObserver {
	return &LineObserver{
		logger:  logger,
		crashed: make(map[string]bool),
	}
}

func (o *LineObserver) Update(s archive.Snapshot) {
	fresh := s.Completed - o.completed
	if fresh > len(s.Recent) {
		fresh = len(s.Recent)
	}
	for i := fresh - 1; i >= 0; i-- {
		o.logResult(s.Recent[i], s.Completed-i, s.Total)
	}
	o.completed = s.Completed

	for _, w := range s.Workers {
		if w.State == model.WorkerCrashed && !o.crashed[w.WorkerID] {
			o.crashed[w.WorkerID] = true
			o.logger.Error("downloader crashed", "worker", w.WorkerID, "job", w.JobID)
		}
	}
}

func (o *LineObserver) Aborted() <-chan struct{} {
	return nil
}

func (o *LineObserver) logResult(r model.Outcome, n, total int) {
	switch r.Kind {
	case model.OutcomeFailed:
		o.logger.Warn("failed", "job", r.JobID, "progress", progressField(n, total), "err", oneLine(r.Error))
	case model.OutcomePersistenceFailed:
		o.logger.Error("not recorded", "job", r.JobID, "progress", progressField(n, total), "err", r.Error)
	default:
		o.logger.Info(string(r.Kind), "job", r.JobID, "progress", progressField(n, total))
	}
}

func progressField(n, total int) string {
	return fmt.Sprintf("%d/%d", n, total)
}
