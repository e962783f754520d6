package runstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// RunRecord summarizes one synchronize run. It is written once the run ends.
type RunRecord struct {
	RunID               string `json:"run_id"`
	StartedAt           string `json:"started_at"`
	FinishedAt          string `json:"finished_at,omitempty"`
	Workers             int    `json:"workers"`
	Retry               bool   `json:"retry,omitempty"`
	Filter              string `json:"filter,omitempty"`
	Dispatched          int    `json:"dispatched"`
	Finished            int    `json:"finished"`
	Failed              int    `json:"failed"`
	Skipped             int    `json:"skipped"`
	Crashed             int    `json:"crashed_workers"`
	PersistenceFailures int    `json:"persistence_failures,omitempty"`
	Remaining           int    `json:"remaining"`
	Aborted             bool   `json:"aborted,omitempty"`
}

// tempFilePattern names the scratch file WriteBytes renames into place.
// Leftovers from a crashed write are safe to delete.
const tempFilePattern = ".ytm-tmp-*"

func Mkdir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// WriteBytes replaces path atomically: readers see the old content or the
// new content, never a partial write.
func WriteBytes(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o644); err != nil {
		return fmt.Errorf("write file %s: %w", path, err)
	}
	return nil
}

func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON for %s: %w", path, err)
	}
	data = append(data, '\n')
	return WriteBytes(path, data)
}

func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse JSON %s: %w", path, err)
	}
	return nil
}

func RunsDir(dataDir string) string {
	return filepath.Join(dataDir, "runs")
}

func RunDir(dataDir, runID string) string {
	return filepath.Join(RunsDir(dataDir), runID)
}

func RunLogsDir(dataDir, runID string) string {
	return filepath.Join(RunDir(dataDir, runID), "logs")
}

// LatestRunDir returns the newest run directory. Run ids are UUIDv7, so
// lexical order is creation order.
func LatestRunDir(dataDir string) (string, error) {
	runsDir := RunsDir(dataDir)
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		return "", fmt.Errorf("read runs directory %s: %w", runsDir, err)
	}

	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) == 0 {
		return "", fmt.Errorf("no run directories found in %s", runsDir)
	}

	sort.Strings(dirs)
	return filepath.Join(runsDir, dirs[len(dirs)-1]), nil
}

func RunRecordPath(runDir string) string {
	return filepath.Join(runDir, "run.json")
}

func LoadRunRecord(runDir string) (RunRecord, error) {
	var rec RunRecord
	if err := ReadJSON(RunRecordPath(runDir), &rec); err != nil {
		return RunRecord{}, err
	}
	return rec, nil
}

func SaveRunRecord(runDir string, rec RunRecord) error {
	return WriteJSON(RunRecordPath(runDir), rec)
}
