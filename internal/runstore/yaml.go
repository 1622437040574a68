package runstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	serrors "github.com/akatz-ai/stepgraph/internal/errors"
	"github.com/akatz-ai/stepgraph/internal/types"
)

// RunLock is an exclusive lock on one run, held by the process executing it.
type RunLock struct {
	runID    string
	lockFile *os.File
	lockPath string
}

// Release releases the lock and removes the lock file.
func (l *RunLock) Release() error {
	if l.lockFile == nil {
		return nil
	}
	syscall.Flock(int(l.lockFile.Fd()), syscall.LOCK_UN)
	err := l.lockFile.Close()
	l.lockFile = nil
	os.Remove(l.lockPath)
	return err
}

// YAMLStore persists runs as <dir>/<run-id>.yaml with atomic writes.
// Several stores may share a directory; locking is per run.
type YAMLStore struct {
	dir string
}

// NewYAMLStore creates the directory if needed and recovers interrupted writes.
func NewYAMLStore(dir string) (*YAMLStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating runs dir: %w", err)
	}

	if err := recoverInterruptedWrites(dir); err != nil {
		return nil, fmt.Errorf("recovering interrupted writes: %w", err)
	}

	return &YAMLStore{dir: dir}, nil
}

// Dir returns the store directory.
func (s *YAMLStore) Dir() string { return s.dir }

func (s *YAMLStore) path(id string) string {
	return filepath.Join(s.dir, id+".yaml")
}

func (s *YAMLStore) lockPath(id string) string {
	return filepath.Join(s.dir, id+".yaml.lock")
}

// AcquireLock takes the exclusive lock for runID without blocking.
func (s *YAMLStore) AcquireLock(runID string) (*RunLock, error) {
	lockPath := s.lockPath(runID)
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening run lock file: %w", err)
	}

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		lockFile.Close()
		return nil, fmt.Errorf("run %s is already in progress (lock held): %w", runID, err)
	}

	return &RunLock{runID: runID, lockFile: lockFile, lockPath: lockPath}, nil
}

// IsLocked reports whether some process holds the lock for runID.
func (s *YAMLStore) IsLocked(runID string) bool {
	lockFile, err := os.OpenFile(s.lockPath(runID), os.O_RDWR, 0644)
	if err != nil {
		return false
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		return true
	}
	syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN)
	return false
}

// Close is a no-op; locks are released through RunLock.
func (s *YAMLStore) Close() error {
	return nil
}

// recoverInterruptedWrites handles .tmp files left from crashed writes.
func recoverInterruptedWrites(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".yaml.tmp") {
			continue
		}

		tmpPath := filepath.Join(dir, entry.Name())
		mainPath := strings.TrimSuffix(tmpPath, ".tmp")

		if _, err := os.Stat(mainPath); err == nil {
			os.Remove(tmpPath)
		} else {
			os.Rename(tmpPath, mainPath)
		}
	}
	return nil
}

// Create persists a new run.
func (s *YAMLStore) Create(ctx context.Context, run *types.WorkflowResult) error {
	if _, err := os.Stat(s.path(run.RunID)); err == nil {
		return fmt.Errorf("run already exists: %s", run.RunID)
	}
	return s.Save(ctx, run)
}

// Get retrieves a run by ID.
func (s *YAMLStore) Get(_ context.Context, id string) (*types.WorkflowResult, error) {
	if strings.ContainsAny(id, `/\`) {
		return nil, serrors.RunNotFound(id)
	}
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, serrors.RunNotFound(id)
		}
		return nil, serrors.IOReadError(s.path(id), err)
	}

	var run types.WorkflowResult
	if err := yaml.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("parsing run %s: %w", id, err)
	}
	return &run, nil
}

// Save persists run state atomically (write-then-rename).
func (s *YAMLStore) Save(_ context.Context, run *types.WorkflowResult) error {
	data, err := yaml.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshaling run: %w", err)
	}

	mainPath := s.path(run.RunID)
	tmpPath := mainPath + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return serrors.IOWriteError(tmpPath, err)
	}

	if err := os.Rename(tmpPath, mainPath); err != nil {
		os.Remove(tmpPath)
		return serrors.IOWriteError(mainPath, err)
	}

	return nil
}

// Delete removes a run.
func (s *YAMLStore) Delete(_ context.Context, id string) error {
	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return serrors.RunNotFound(id)
		}
		return err
	}
	return nil
}

// List returns runs matching filter, newest first. Unreadable files are skipped.
func (s *YAMLStore) List(ctx context.Context, filter Filter) ([]*types.WorkflowResult, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var runs []*types.WorkflowResult
	for _, entry := range entries {
		name := entry.Name()
		// .yaml.tmp and .yaml.lock do not end in .yaml
		if !strings.HasSuffix(name, ".yaml") {
			continue
		}

		run, err := s.Get(ctx, strings.TrimSuffix(name, ".yaml"))
		if err != nil {
			continue
		}
		runs = append(runs, run)
	}
	return filter.apply(runs), nil
}

var _ Store = (*YAMLStore)(nil)
