// Package statusfile keeps a small JSON record of upload runs on disk.
//
// The record is advisory. A file that cannot be read or parsed is discarded
// and recreated instead of failing the caller.
package statusfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/ohcupload/ohcupload/internal/core"
)

// Record is the persisted content.
type Record struct {
	LastRunID       string    `json:"last_run_id,omitempty"`
	LastRunAt       time.Time `json:"last_run_at,omitempty"`
	LastAccepted    int       `json:"last_accepted"`
	LastAbortReason string    `json:"last_abort_reason,omitempty"`
	TotalAccepted   int       `json:"total_accepted"`
	TotalRuns       int       `json:"total_runs"`
}

// File is a status record bound to a path.
type File struct {
	path   string
	logger *logging.Logger

	mu     sync.Mutex
	record Record
}

// Open loads the record at path, creating it when missing and recreating it
// when corrupt.
func Open(path string, logger *logging.Logger) (*File, error) {
	f := &File{path: path, logger: logger}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return f, f.write()
	case err != nil:
		f.warn("OHC: status file unreadable, recreating", err)
		return f, f.recreate()
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &f.record); err != nil {
			f.warn("OHC: status file corrupt, recreating", err)
			f.record = Record{}
			return f, f.recreate()
		}
	}
	return f, nil
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// Record returns a copy of the current record.
func (f *File) Record() Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record
}

// Update folds a finished run into the record and persists it.
func (f *File) Update(summary *core.RunSummary) error {
	if summary == nil {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.record.LastRunID = summary.RunID
	f.record.LastRunAt = summary.FinishedAt
	f.record.LastAccepted = summary.Accepted
	f.record.LastAbortReason = summary.AbortReason
	f.record.TotalAccepted += summary.Accepted
	f.record.TotalRuns++
	return f.write()
}

// RunFinished lets the file observe orchestrator runs.
func (f *File) RunFinished(ctx context.Context, summary *core.RunSummary) {
	if err := f.Update(summary); err != nil {
		f.warn("OHC: failed to update status file", err)
	}
}

func (f *File) recreate() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove status file: %w", err)
	}
	return f.write()
}

// write persists the record via a temp file and rename.
func (f *File) write() error {
	dir := filepath.Dir(f.path)
	// #nosec G301 -- status directory mirrors the host's state directory
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create status directory: %w", err)
	}

	data, err := json.MarshalIndent(f.record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode status file: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create status temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write status file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close status file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace status file: %w", err)
	}
	return nil
}

func (f *File) warn(msg string, err error) {
	if f.logger != nil {
		f.logger.Warn(msg, zap.String("path", f.path), zap.Error(err))
	}
}
