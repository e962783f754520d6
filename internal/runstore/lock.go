package runstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

const (
	runLockDirName   = ".sync.lock"
	runLockOwnerFile = "owner.json"
)

// RunLock keeps a second synchronize from sharing a data directory with a
// running one.
type RunLock struct {
	lockDir string
}

type runLockOwner struct {
	PID       int    `json:"pid"`
	RunID     string `json:"run_id,omitempty"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

// AcquireRunLock takes the lock for dataDir. A lock left behind by a process
// that no longer exists on this host is reclaimed.
func AcquireRunLock(dataDir, runID string) (RunLock, error) {
	target := strings.TrimSpace(dataDir)
	if target == "" {
		return RunLock{}, fmt.Errorf("data directory is required")
	}
	if err := Mkdir(target); err != nil {
		return RunLock{}, err
	}
	lockDir := filepath.Join(target, runLockDirName)

	err := os.Mkdir(lockDir, 0o755)
	if err != nil && os.IsExist(err) {
		owner, readErr := readLockOwner(lockDir)
		if readErr != nil || !owner.stale() {
			return RunLock{}, lockedError(target, owner, readErr)
		}
		if rmErr := os.RemoveAll(lockDir); rmErr != nil {
			return RunLock{}, fmt.Errorf("remove stale run lock %s: %w", lockDir, rmErr)
		}
		err = os.Mkdir(lockDir, 0o755)
		if err != nil && os.IsExist(err) {
			owner, readErr = readLockOwner(lockDir)
			return RunLock{}, lockedError(target, owner, readErr)
		}
	}
	if err != nil {
		return RunLock{}, fmt.Errorf("acquire run lock for %s: %w", target, err)
	}

	owner := runLockOwner{
		PID:       os.Getpid(),
		RunID:     strings.TrimSpace(runID),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	}
	if err := WriteJSON(filepath.Join(lockDir, runLockOwnerFile), owner); err != nil {
		_ = os.RemoveAll(lockDir)
		return RunLock{}, fmt.Errorf("write run lock owner for %s: %w", target, err)
	}
	return RunLock{lockDir: lockDir}, nil
}

func (l RunLock) Release() error {
	if strings.TrimSpace(l.lockDir) == "" {
		return nil
	}
	_ = os.Remove(filepath.Join(l.lockDir, runLockOwnerFile))
	if err := os.Remove(l.lockDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release run lock %s: %w", l.lockDir, err)
	}
	return nil
}

func readLockOwner(lockDir string) (runLockOwner, error) {
	var owner runLockOwner
	if err := ReadJSON(filepath.Join(lockDir, runLockOwnerFile), &owner); err != nil {
		return runLockOwner{}, err
	}
	if owner.PID <= 0 || owner.CreatedAt == "" {
		return runLockOwner{}, fmt.Errorf("incomplete lock owner in %s", lockDir)
	}
	return owner, nil
}

// stale is only ever true for owners on this host; a remote pid says nothing.
func (o runLockOwner) stale() bool {
	if o.Hostname != hostnameOrUnknown() {
		return false
	}
	p, err := os.FindProcess(o.PID)
	if err != nil {
		return true
	}
	err = p.Signal(syscall.Signal(0))
	return errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH)
}

func lockedError(target string, owner runLockOwner, readErr error) error {
	if readErr != nil {
		return fmt.Errorf("data directory is locked: %s", target)
	}
	return fmt.Errorf(
		"data directory is locked: %s (run=%s pid=%d created_at=%s host=%s)",
		target, owner.RunID, owner.PID, owner.CreatedAt, owner.Hostname,
	)
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
