package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"yt-mirror/internal/archive"
	"yt-mirror/internal/config"
	"yt-mirror/internal/jobstore"
	"yt-mirror/internal/model"
	"yt-mirror/internal/runstore"
	"yt-mirror/internal/ui"
	"yt-mirror/internal/ytdlp"
)

type syncOptions struct {
	filter  string
	retry   bool
	workers int
	noTUI   bool
	jsonOut bool
}

type syncReport struct {
	RunID               string `json:"run_id,omitempty"`
	NothingToDo         bool   `json:"nothing_to_do,omitempty"`
	Workers             int    `json:"workers,omitempty"`
	Dispatched          int    `json:"dispatched"`
	Finished            int    `json:"finished"`
	Failed              int    `json:"failed"`
	Skipped             int    `json:"skipped"`
	CrashedWorkers      int    `json:"crashed_workers"`
	PersistenceFailures int    `json:"persistence_failures,omitempty"`
	Remaining           int    `json:"remaining"`
	Aborted             bool   `json:"aborted"`
	PendingTotal        int    `json:"pending_total"`
	FailedTotal         int    `json:"failed_total"`
	Error               string `json:"error,omitempty"`
}

func newSynchronizeCommand(root *rootOptions) *cobra.Command {
	opts := &syncOptions{}
	cmd := &cobra.Command{
		Use:     "synchronize",
		Aliases: []string{"sync"},
		Short:   "Download every pending video with a pool of yt-dlp workers",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSynchronize(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.filter, "filter", "", "yt-dlp --match-filter expression")
	cmd.Flags().BoolVar(&opts.retry, "retry", false, "also retry videos that failed before")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "parallel downloads (0 = config/default)")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "log results line by line instead of the dashboard")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print JSON summary")
	return cmd
}

func runSynchronize(cmd *cobra.Command, root *rootOptions, opts *syncOptions) error {
	cfg, err := config.Load(root.configPath)
	if err != nil {
		return err
	}
	if err := cfg.RequireTargetDir(); err != nil {
		return err
	}
	workers := cfg.Workers
	if cmd.Flags().Changed("workers") {
		if opts.workers < 0 {
			return fmt.Errorf("--workers must be >= 0")
		}
		workers = opts.workers
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}
	runID := id.String()

	lock, err := runstore.AcquireRunLock(cfg.DataDir, runID)
	if err != nil {
		return err
	}
	defer func() {
		_ = lock.Release()
	}()

	client := ytdlp.New(cfg.Downloader)
	if err := client.CheckDependencies(); err != nil {
		return err
	}

	store, err := jobstore.OpenInDir(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	useTUI := !opts.noTUI && !opts.jsonOut && isTerminal(out)

	var logger *log.Logger
	var observer archive.Observer
	var dash *ui.Dashboard
	if useTUI {
		f, err := openLogFile(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logger = newLogger(f, root.verbose)
		dash = ui.NewDashboard("yt-mirror synchronize " + runID)
		observer = dash
	} else {
		logger = newLogger(cmd.ErrOrStderr(), root.verbose)
		observer = ui.NewLineObserver(logger)
	}

	startedAt := time.Now().UTC()
	if dash != nil {
		dash.Start()
	}
	res, runErr := archive.Run(ctx, store, archive.RunOptions{
		RunID:      runID,
		Workers:    workers,
		Retry:      opts.retry,
		TargetDir:  cfg.TargetDir,
		TmpDir:     cfg.TmpDir,
		Filter:     opts.filter,
		LogsDir:    runstore.RunLogsDir(cfg.DataDir, runID),
		Downloader: client,
		Observer:   observer,
		Logger:     logger,
	})
	if dash != nil {
		if err := dash.Stop(); err != nil && !errors.Is(err, tea.ErrInterrupted) && !errors.Is(err, tea.ErrProgramKilled) {
			logger.Warn("dashboard stopped with error", "err", err)
		}
	}
	if runErr != nil && res.RunID == "" {
		return runErr
	}

	if !res.NothingToDo && res.Dispatched > 0 {
		rec := runstore.RunRecord{
			RunID:               runID,
			StartedAt:           startedAt.Format(time.RFC3339),
			FinishedAt:          time.Now().UTC().Format(time.RFC3339),
			Workers:             res.Workers,
			Retry:               opts.retry,
			Filter:              opts.filter,
			Dispatched:          res.Dispatched,
			Finished:            res.Finished,
			Failed:              res.Failed,
			Skipped:             res.Skipped,
			Crashed:             res.Crashed,
			PersistenceFailures: res.PersistenceFailures,
			Remaining:           res.Remaining,
			Aborted:             res.Aborted,
		}
		if err := runstore.SaveRunRecord(runstore.RunDir(cfg.DataDir, runID), rec); err != nil {
			logger.Warn("cannot save run record", "run", runID, "err", err)
		}
	}

	report := newSyncReport(res)
	if runErr != nil {
		report.Error = runErr.Error()
	}
	counts, err := store.Counts(context.WithoutCancel(ctx))
	if err != nil {
		logger.Warn("cannot read job totals", "err", err)
	}
	report.PendingTotal = counts[model.StatePending]
	report.FailedTotal = counts[model.StateFailed]

	if opts.jsonOut {
		if err := printJSON(out, report); err != nil {
			return err
		}
	} else {
		printSyncReport(out, report)
	}
	return runErr
}

func newSyncReport(res archive.RunResult) syncReport {
	return syncReport{
		RunID:               res.RunID,
		NothingToDo:         res.NothingToDo,
		Workers:             res.Workers,
		Dispatched:          res.Dispatched,
		Finished:            res.Finished,
		Failed:              res.Failed,
		Skipped:             res.Skipped,
		CrashedWorkers:      res.Crashed,
		PersistenceFailures: res.PersistenceFailures,
		Remaining:           res.Remaining,
		Aborted:             res.Aborted,
	}
}

func printSyncReport(w io.Writer, r syncReport) {
	if r.NothingToDo {
		fmt.Fprintln(w, "nothing to do")
		return
	}
	fmt.Fprintf(w, "run_id: %s\n", r.RunID)
	fmt.Fprintf(w, "dispatched: %d\n", r.Dispatched)
	fmt.Fprintf(w, "finished: %d\n", r.Finished)
	fmt.Fprintf(w, "failed: %d\n", r.Failed)
	fmt.Fprintf(w, "skipped: %d\n", r.Skipped)
	fmt.Fprintf(w, "crashed_workers: %d\n", r.CrashedWorkers)
	if r.PersistenceFailures > 0 {
		fmt.Fprintf(w, "persistence_failures: %d\n", r.PersistenceFailures)
	}
	fmt.Fprintf(w, "remaining: %d\n", r.Remaining)
	fmt.Fprintf(w, "aborted: %t\n", r.Aborted)
	fmt.Fprintf(w, "pending_total: %d\n", r.PendingTotal)
	fmt.Fprintf(w, "failed_total: %d\n", r.FailedTotal)
	if r.FailedTotal > 0 {
		fmt.Fprintln(w, "hint: yt-mirror failed lists errors; synchronize --retry tries them again")
	}
}
