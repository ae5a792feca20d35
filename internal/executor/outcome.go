package executor

// Status classifies the result of one unit execution attempt.
type Status int

const (
	// StatusSuccess means the unit ran and exited zero.
	StatusSuccess Status = iota

	// StatusSkipped means the unit did not run: it was already completed,
	// or the operator declined it interactively. Skips never mark
	// completion on their own.
	StatusSkipped

	// StatusFailed means the unit ran and exited nonzero.
	StatusFailed
)

// String returns the status name for log records.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Outcome is the result of running one unit.
type Outcome struct {
	// Status is the terminal classification.
	Status Status

	// ExitCode is the unit's exit status when Status is StatusFailed.
	ExitCode int

	// RebootRequired is a side flag on success: the unit is complete, but
	// the machine must reboot before the next unit runs.
	RebootRequired bool

	// ContinueAfterFailure is set on a failure the operator chose to
	// record and move past instead of aborting the run.
	ContinueAfterFailure bool
}
