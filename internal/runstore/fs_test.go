package runstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRunRecordRoundTripAndLatest(t *testing.T) {
	dataDir := t.TempDir()

	older := RunDir(dataDir, "0192a000-0000-7000-8000-000000000001")
	newer := RunDir(dataDir, "0192a000-0000-7000-8000-000000000002")
	if err := SaveRunRecord(older, RunRecord{RunID: "old", Dispatched: 1}); err != nil {
		t.Fatalf("save older: %v", err)
	}
	if err := SaveRunRecord(newer, RunRecord{RunID: "new", Dispatched: 3, Failed: 1}); err != nil {
		t.Fatalf("save newer: %v", err)
	}

	latest, err := LatestRunDir(dataDir)
	if err != nil {
		t.Fatalf("latest run dir: %v", err)
	}
	if latest != newer {
		t.Fatalf("expected %s, got %s", newer, latest)
	}

	rec, err := LoadRunRecord(latest)
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if rec.RunID != "new" || rec.Dispatched != 3 || rec.Failed != 1 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestLatestRunDir_NoRuns(t *testing.T) {
	dataDir := t.TempDir()
	if err := Mkdir(RunsDir(dataDir)); err != nil {
		t.Fatal(err)
	}
	if _, err := LatestRunDir(dataDir); err == nil {
		t.Fatalf("expected error without runs")
	}
}

func TestWriteBytesLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "file.txt")
	if err := WriteBytes(path, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "file.txt" {
		t.Fatalf("unexpected directory contents %v", entries)
	}
}

func TestWriteBytesOverwritesWithoutScratchFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")
	for _, content := range []string{"first", "second"} {
		if err := WriteBytes(path, []byte(content)); err != nil {
			t.Fatalf("write %s: %v", content, err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Fatalf("expected last write to win, got %q", data)
	}
	scratch, err := filepath.Glob(filepath.Join(dir, tempFilePattern))
	if err != nil {
		t.Fatal(err)
	}
	if len(scratch) != 0 {
		t.Fatalf("scratch files left behind: %v", scratch)
	}
}
