package jobstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"yt-mirror/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", DatabaseFileName))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func pendingJobs(ids ...string) []model.Job {
	jobs := make([]model.Job, 0, len(ids))
	for _, id := range ids {
		jobs = append(jobs, model.Job{ID: id, State: model.StatePending})
	}
	return jobs
}

func TestInsertMany_SameBatchTwiceKeepsOneRowPerID(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	n, err := s.InsertMany(ctx, pendingJobs("a", "b"))
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 inserted, got %d", n)
	}
	n, err = s.InsertMany(ctx, pendingJobs("a", "b"))
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected duplicates to be skipped, got %d inserted", n)
	}

	jobs, err := s.ListByState(ctx, model.StatePending, model.StateFinished, model.StateFailed, model.StateSkipped)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected exactly 2 rows, got %d", len(jobs))
	}
	for _, j := range jobs {
		if j.State != model.StatePending {
			t.Fatalf("expected pending, got %q for %s", j.State, j.ID)
		}
	}
}

func TestInsertMany_DuplicateNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.InsertMany(ctx, pendingJobs("a")); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkFinished(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.InsertMany(ctx, append(pendingJobs("a"), pendingJobs("a", "c")...)); err != nil {
		t.Fatal(err)
	}

	finished, err := s.ListByState(ctx, model.StateFinished)
	if err != nil {
		t.Fatal(err)
	}
	if len(finished) != 1 || finished[0].ID != "a" {
		t.Fatalf("expected a to stay finished, got %+v", finished)
	}
	pending, err := s.ListByState(ctx, model.StatePending)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != "c" {
		t.Fatalf("expected only c pending, got %+v", pending)
	}
}

func TestInsertMany_RejectsInvalidBatchWithoutPartialWrites(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	batch := []model.Job{
		{ID: "ok", State: model.StatePending},
		{ID: "bad", State: model.StateDownloading},
	}
	if _, err := s.InsertMany(ctx, batch); !errors.Is(err, ErrInvalidJob) {
		t.Fatalf("expected ErrInvalidJob, got %v", err)
	}
	jobs, err := s.ListByState(ctx, model.StatePending)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no rows after rejected batch, got %d", len(jobs))
	}
}

func TestInsertMany_RollsBackOnStorageFault(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.db.Exec(`CREATE TRIGGER reject_boom BEFORE INSERT ON process
		WHEN NEW.youtubeId = 'boom' BEGIN SELECT RAISE(ABORT, 'disk full'); END`); err != nil {
		t.Fatal(err)
	}

	if _, err := s.InsertMany(ctx, pendingJobs("a", "boom", "c")); err == nil {
		t.Fatalf("expected insert to fail")
	}
	jobs, err := s.ListByState(ctx, model.StatePending)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected full rollback, got %d rows", len(jobs))
	}
}

func TestMarkOperations(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if _, err := s.InsertMany(ctx, pendingJobs("f", "x", "s")); err != nil {
		t.Fatal(err)
	}

	if err := s.MarkFinished(ctx, "f"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkFailed(ctx, "x", "network error"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkSkipped(ctx, "s"); err != nil {
		t.Fatal(err)
	}

	failed, err := s.ListByState(ctx, model.StateFailed)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].ID != "x" || failed[0].Error != "network error" {
		t.Fatalf("unexpected failed rows: %+v", failed)
	}

	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[model.StateFinished] != 1 || counts[model.StateSkipped] != 1 || counts[model.StatePending] != 0 {
		t.Fatalf("unexpected counts: %+v", counts)
	}

	// a later success clears the error text
	if err := s.MarkFinished(ctx, "x"); err != nil {
		t.Fatal(err)
	}
	finished, err := s.ListByState(ctx, model.StateFinished)
	if err != nil {
		t.Fatal(err)
	}
	for _, j := range finished {
		if j.Error != "" {
			t.Fatalf("expected cleared error for %s, got %q", j.ID, j.Error)
		}
	}
}

func TestMarkMissingIDIsNoop(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.MarkFinished(ctx, "nope"); err != nil {
		t.Fatalf("expected no error for missing id, got %v", err)
	}
	if err := s.MarkFailed(ctx, "nope", "x"); err != nil {
		t.Fatalf("expected no error for missing id, got %v", err)
	}
	jobs, err := s.ListByState(ctx, model.StateFinished, model.StateFailed)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no rows, got %d", len(jobs))
	}
}

func TestMarkAfterCloseReturnsError(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkFinished(ctx, "a"); err == nil {
		t.Fatalf("expected error from closed store")
	}
}
