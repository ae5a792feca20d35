// Package state persists orchestrator progress across process
// termination and machine reboots.
//
// All writes go through fsops.AtomicWrite (temp file + fsync + rename),
// because the action immediately following several of them is a reboot:
// an unflushed write would cause already-applied units to re-run on
// resume. Reads of missing state return absence, not errors, so a first
// run needs no initialization step.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danieljhkim/rig/internal/clock"
	"github.com/danieljhkim/rig/internal/fsops"
)

const (
	stateFileName        = "run-state.json"
	rebootSignalFileName = "reboot-required"
)

// Store provides an interface for persisting orchestrator run state.
type Store interface {
	// Load returns the current run state, or an empty state if none exists.
	Load() (*RunState, error)

	// IsCompleted reports whether the unit has completed successfully.
	IsCompleted(phase, unit string) (bool, error)

	// MarkCompleted adds the unit to the completed set. Idempotent;
	// durable before returning.
	MarkCompleted(phase, unit string) error

	// ClearCompleted empties the completed set (explicit force only).
	ClearCompleted() error

	// SetResumeMarker records the unit to run next after a reboot.
	SetResumeMarker(phase, unit string) error

	// GetResumeMarker returns the resume marker, if one exists.
	GetResumeMarker() (UnitRef, bool, error)

	// ClearResumeMarker removes the resume marker.
	ClearResumeMarker() error

	// SetCurrentPhase records the phase currently being executed.
	SetCurrentPhase(phase string) error

	// GetCurrentPhase returns the current phase pointer, if set.
	GetCurrentPhase() (string, bool, error)

	// ClearCurrentPhase removes the current phase pointer.
	ClearCurrentPhase() error

	// ConsumeRebootSignal reports whether a unit left the durable reboot
	// marker file, removing it in the process.
	ConsumeRebootSignal() (bool, error)
}

// FileStore implements Store using one JSON document on disk.
type FileStore struct {
	fs    fsops.FS
	dir   string
	clock clock.Clock
}

// NewFileStore creates a new FileStore rooted at dir.
func NewFileStore(fs fsops.FS, dir string, clk clock.Clock) *FileStore {
	return &FileStore{
		fs:    fs,
		dir:   dir,
		clock: clk,
	}
}

func (s *FileStore) statePath() string {
	return filepath.Join(s.dir, stateFileName)
}

// RebootSignalPath is the marker file a unit creates to request a reboot.
func (s *FileStore) RebootSignalPath() string {
	return filepath.Join(s.dir, rebootSignalFileName)
}

// Load returns the current run state, or an empty state if none exists.
func (s *FileStore) Load() (*RunState, error) {
	data, err := s.fs.ReadFile(s.statePath())
	if err != nil {
		if os.IsNotExist(err) {
			return NewRunState(), nil
		}
		return nil, fmt.Errorf("failed to read run state: %w", err)
	}

	var st RunState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run state: %w", err)
	}
	if st.Completed == nil {
		st.Completed = []CompletedUnit{}
	}

	return &st, nil
}

func (s *FileStore) save(st *RunState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	if err := s.fs.AtomicWrite(s.statePath(), data, 0644); err != nil {
		return fmt.Errorf("failed to write run state: %w", err)
	}

	return nil
}

// IsCompleted reports whether the unit has completed successfully.
func (s *FileStore) IsCompleted(phase, unit string) (bool, error) {
	st, err := s.Load()
	if err != nil {
		return false, err
	}
	return st.IsCompleted(phase, unit), nil
}

// MarkCompleted adds the unit to the completed set.
func (s *FileStore) MarkCompleted(phase, unit string) error {
	st, err := s.Load()
	if err != nil {
		return err
	}

	if st.IsCompleted(phase, unit) {
		return nil
	}

	st.Completed = append(st.Completed, CompletedUnit{
		Phase: phase,
		Unit:  unit,
		At:    s.clock.Now(),
	})

	return s.save(st)
}

// ClearCompleted empties the completed set.
func (s *FileStore) ClearCompleted() error {
	st, err := s.Load()
	if err != nil {
		return err
	}

	st.Completed = []CompletedUnit{}
	return s.save(st)
}

// SetResumeMarker records the unit to run next after a reboot.
func (s *FileStore) SetResumeMarker(phase, unit string) error {
	st, err := s.Load()
	if err != nil {
		return err
	}

	st.Resume = &UnitRef{Phase: phase, Unit: unit}
	return s.save(st)
}

// GetResumeMarker returns the resume marker, if one exists.
func (s *FileStore) GetResumeMarker() (UnitRef, bool, error) {
	st, err := s.Load()
	if err != nil {
		return UnitRef{}, false, err
	}
	if st.Resume == nil {
		return UnitRef{}, false, nil
	}
	return *st.Resume, true, nil
}

// ClearResumeMarker removes the resume marker.
func (s *FileStore) ClearResumeMarker() error {
	st, err := s.Load()
	if err != nil {
		return err
	}
	if st.Resume == nil {
		return nil
	}

	st.Resume = nil
	return s.save(st)
}

// SetCurrentPhase records the phase currently being executed.
func (s *FileStore) SetCurrentPhase(phase string) error {
	st, err := s.Load()
	if err != nil {
		return err
	}

	st.CurrentPhase = phase
	return s.save(st)
}

// GetCurrentPhase returns the current phase pointer, if set.
func (s *FileStore) GetCurrentPhase() (string, bool, error) {
	st, err := s.Load()
	if err != nil {
		return "", false, err
	}
	if st.CurrentPhase == "" {
		return "", false, nil
	}
	return st.CurrentPhase, true, nil
}

// ClearCurrentPhase removes the current phase pointer.
func (s *FileStore) ClearCurrentPhase() error {
	st, err := s.Load()
	if err != nil {
		return err
	}
	if st.CurrentPhase == "" {
		return nil
	}

	st.CurrentPhase = ""
	return s.save(st)
}

// ConsumeRebootSignal reports whether a unit left the durable reboot
// marker file, removing it so the signal fires once.
func (s *FileStore) ConsumeRebootSignal() (bool, error) {
	path := s.RebootSignalPath()

	exists, err := s.fs.Exists(path)
	if err != nil {
		return false, fmt.Errorf("failed to check reboot signal: %w", err)
	}
	if !exists {
		return false, nil
	}

	if err := s.fs.Remove(path); err != nil {
		return false, fmt.Errorf("failed to clear reboot signal: %w", err)
	}
	return true, nil
}
