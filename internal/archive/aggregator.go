package archive

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"yt-mirror/internal/model"
)

// DefaultRecentResults caps Snapshot.Recent when RunOptions.RecentLimit is
// not set.
const DefaultRecentResults = 20

// Store is the part of the job store a run reads from and records into.
type Store interface {
	ListByState(ctx context.Context, states ...model.JobState) ([]model.Job, error)
	MarkFinished(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errText string) error
	MarkSkipped(ctx context.Context, id string) error
}

// Observer receives a copy of the run view after every update. Closing the
// channel returned by Aborted stops the run at the next message boundary.
type Observer interface {
	Update(Snapshot)
	Aborted() <-chan struct{}
}

// Snapshot is a copy of the run view: workers sorted by id and the newest
// results first.
type Snapshot struct {
	Workers   []model.WorkerStatus
	Recent    []model.Outcome
	Completed int
	Total     int
}

// view is owned by the aggregator goroutine; everyone else gets snapshots.
type view struct {
	workers     map[string]model.WorkerStatus
	recent      []model.Outcome
	recentLimit int
	completed   int
	total       int
}

func newView(total, recentLimit int) *view {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentResults
	}
	return &view{
		workers:     make(map[string]model.WorkerStatus),
		recent:      make([]model.Outcome, 0, recentLimit),
		recentLimit: recentLimit,
		total:       total,
	}
}

func (v *view) setWorker(s model.WorkerStatus) {
	v.workers[s.WorkerID] = s
}

func (v *view) addResult(o model.Outcome) {
	v.recent = append([]model.Outcome{o}, v.recent...)
	if len(v.recent) > v.recentLimit {
		v.recent = v.recent[:v.recentLimit]
	}
}

func (v *view) snapshot() Snapshot {
	ids := make([]string, 0, len(v.workers))
	for id := range v.workers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	workers := make([]model.WorkerStatus, 0, len(ids))
	for _, id := range ids {
		workers = append(workers, v.workers[id])
	}
	recent := make([]model.Outcome, len(v.recent))
	copy(recent, v.recent)
	return Snapshot{
		Workers:   workers,
		Recent:    recent,
		Completed: v.completed,
		Total:     v.total,
	}
}

type tally struct {
	finished            int
	failed              int
	skipped             int
	crashed             int
	persistenceFailures int
}

type aggregator struct {
	store    Store
	observer Observer
	logger   *log.Logger
	workers  int

	view        *view
	terminal    map[string]bool
	counts      tally
	persistErrs []error
}

func newAggregator(store Store, observer Observer, logger *log.Logger, workers, total, recentLimit int) *aggregator {
	return &aggregator{
		store:    store,
		observer: observer,
		logger:   logger,
		workers:  workers,
		view:     newView(total, recentLimit),
		terminal: make(map[string]bool, workers),
	}
}

// consume reads messages until every spawned worker has reported a terminal
// status, or until the run is aborted. It reports whether it was aborted.
func (a *aggregator) consume(ctx context.Context, msgs <-chan model.Message) bool {
	abort := a.observer.Aborted()
	for len(a.terminal) < a.workers {
		select {
		case <-abort:
			return true
		case <-ctx.Done():
			return true
		default:
		}

		select {
		case <-abort:
			return true
		case <-ctx.Done():
			return true
		case msg := <-msgs:
			a.apply(ctx, msg)
			a.observer.Update(a.view.snapshot())
		}
	}
	return false
}

func (a *aggregator) apply(ctx context.Context, msg model.Message) {
	switch {
	case msg.Status != nil:
		s := *msg.Status
		a.view.setWorker(s)
		if s.State.Terminal() && !a.terminal[s.WorkerID] {
			a.terminal[s.WorkerID] = true
			if s.State == model.WorkerCrashed {
				a.counts.crashed++
			}
		}
	case msg.Outcome != nil:
		o := *msg.Outcome
		a.view.completed++
		switch o.Kind {
		case model.OutcomeFinished:
			a.counts.finished++
		case model.OutcomeFailed:
			a.counts.failed++
		case model.OutcomeSkipped:
			a.counts.skipped++
		}
		if err := a.persist(ctx, o); err != nil {
			a.counts.persistenceFailures++
			a.persistErrs = append(a.persistErrs, err)
			a.logger.Error("cannot record result", "job", o.JobID, "kind", o.Kind, "err", err)
			o = model.Outcome{
				WorkerID: o.WorkerID,
				JobID:    o.JobID,
				Kind:     model.OutcomePersistenceFailed,
				Error:    err.Error(),
			}
		} else {
			a.logger.Debug("result recorded", "worker", o.WorkerID, "job", o.JobID, "kind", o.Kind)
		}
		a.view.addResult(o)
	}
}

func (a *aggregator) persist(ctx context.Context, o model.Outcome) error {
	switch o.Kind {
	case model.OutcomeFinished:
		return a.store.MarkFinished(ctx, o.JobID)
	case model.OutcomeFailed:
		return a.store.MarkFailed(ctx, o.JobID, o.Error)
	case model.OutcomeSkipped:
		return a.store.MarkSkipped(ctx, o.JobID)
	default:
		return fmt.Errorf("unexpected outcome kind %q for job %s", o.Kind, o.JobID)
	}
}
