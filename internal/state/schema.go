package state

import "time"

// UnitRef identifies a unit within a phase.
type UnitRef struct {
	// Phase is the phase key (e.g. "00-core")
	Phase string `json:"phase"`

	// Unit is the unit file name within the phase (e.g. "10-base.sh")
	Unit string `json:"unit"`
}

// CompletedUnit records one successfully executed unit.
type CompletedUnit struct {
	// Phase is the phase key
	Phase string `json:"phase"`

	// Unit is the unit file name
	Unit string `json:"unit"`

	// At is when the unit completed
	At time.Time `json:"at"`
}

// RunState is the durable record of orchestrator progress. It replaces
// the marker-file-per-unit layout with one typed document rewritten
// atomically on every mutation.
type RunState struct {
	// Completed is the append-only set of units whose side effects are
	// assumed already applied. Presence here means the orchestrator must
	// never re-run the unit absent an explicit force.
	Completed []CompletedUnit `json:"completed"`

	// Resume points at the next unit to run after a pending reboot.
	// At most one resume marker exists at a time.
	Resume *UnitRef `json:"resume,omitempty"`

	// CurrentPhase is the phase the orchestrator was last working on.
	CurrentPhase string `json:"currentPhase,omitempty"`
}

// NewRunState creates a new empty RunState.
func NewRunState() *RunState {
	return &RunState{
		Completed: []CompletedUnit{},
	}
}

// IsCompleted reports whether the given unit is in the completed set.
func (s *RunState) IsCompleted(phase, unit string) bool {
	for _, c := range s.Completed {
		if c.Phase == phase && c.Unit == unit {
			return true
		}
	}
	return false
}
