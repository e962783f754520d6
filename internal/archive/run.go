package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"yt-mirror/internal/model"
	"yt-mirror/internal/runstore"
)

// DefaultWorkers is the pool size used when RunOptions.Workers is not set.
const DefaultWorkers = 10

// RunOptions configures one synchronize run.
type RunOptions struct {
	RunID       string
	Workers     int
	Retry       bool
	TargetDir   string
	TmpDir      string
	Filter      string
	LogsDir     string
	RecentLimit int
	Downloader  Downloader
	Observer    Observer
	Logger      *log.Logger
}

// RunResult counts what a run dispatched and how each job ended.
type RunResult struct {
	RunID               string
	NothingToDo         bool
	Workers             int
	Dispatched          int
	Finished            int
	Failed              int
	Skipped             int
	Crashed             int
	PersistenceFailures int
	Remaining           int
	Aborted             bool
}

// Run dispatches every pending job (and failed ones when Retry is set) to a
// fixed pool of workers and records each outcome in store.
func Run(ctx context.Context, store Store, opts RunOptions) (RunResult, error) {
	if store == nil {
		return RunResult{}, fmt.Errorf("job store is required")
	}
	if opts.Downloader == nil {
		return RunResult{}, fmt.Errorf("downloader is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	observer := opts.Observer
	if observer == nil {
		observer = noopObserver{}
	}

	states := []model.JobState{model.StatePending}
	if opts.Retry {
		states = append(states, model.StateFailed)
	}
	jobs, err := store.ListByState(ctx, states...)
	if err != nil {
		return RunResult{}, fmt.Errorf("load jobs: %w", err)
	}

	result := RunResult{RunID: opts.RunID}
	if len(jobs) == 0 {
		result.NothingToDo = true
		logger.Info("nothing to do", "run", opts.RunID, "retry", opts.Retry)
		return result, nil
	}

	for _, dir := range []string{opts.TargetDir, opts.TmpDir, opts.LogsDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := runstore.Mkdir(dir); err != nil {
			return RunResult{}, err
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	result.Workers = workers
	result.Dispatched = len(jobs)

	jobCh := make(chan string, len(jobs))
	for _, j := range jobs {
		jobCh <- j.ID
	}

	msgs := make(chan model.Message, workers*4)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 1; i <= workers; i++ {
		w := &worker{
			id:      fmt.Sprintf("w%02d", i),
			jobs:    jobCh,
			out:     msgs,
			stop:    stop,
			dl:      opts.Downloader,
			target:  opts.TargetDir,
			tmp:     opts.TmpDir,
			filter:  opts.Filter,
			logsDir: opts.LogsDir,
			logger:  logger,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(ctx)
		}()
	}
	close(jobCh)

	logger.Info("run started", "run", opts.RunID, "jobs", len(jobs), "workers", workers, "retry", opts.Retry)

	agg := newAggregator(store, observer, logger, workers, len(jobs), opts.RecentLimit)
	result.Aborted = agg.consume(ctx, msgs)
	close(stop)
	if !result.Aborted {
		wg.Wait()
	}

	result.Finished = agg.counts.finished
	result.Failed = agg.counts.failed
	result.Skipped = agg.counts.skipped
	result.Crashed = agg.counts.crashed
	result.PersistenceFailures = agg.counts.persistenceFailures
	result.Remaining = result.Dispatched - agg.view.completed

	logger.Info("run finished",
		"run", opts.RunID,
		"finished", result.Finished,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"crashed", result.Crashed,
		"remaining", result.Remaining,
		"aborted", result.Aborted,
	)

	if len(agg.persistErrs) > 0 {
		return result, fmt.Errorf("%d result(s) not recorded: %w", len(agg.persistErrs), errors.Join(agg.persistErrs...))
	}
	return result, nil
}

type noopObserver struct{}

func (noopObserver) Update(Snapshot) {}

func (noopObserver) Aborted() <-chan struct{} {
	return nil
}
