// Package orchestrator drives a full provisioning run: discover the
// filtered phase list, execute each unit exactly once, persist progress,
// and checkpoint-and-reboot when a unit requires it.
//
// Execution is single-threaded and strictly sequential. Idempotence
// comes from the completed set, not from retries: a unit recorded as
// completed is never re-run absent an explicit force.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danieljhkim/rig/internal/catalog"
	"github.com/danieljhkim/rig/internal/clock"
	"github.com/danieljhkim/rig/internal/executor"
	"github.com/danieljhkim/rig/internal/state"
	"github.com/danieljhkim/rig/internal/syncer"
)

// ErrRunAborted marks a run stopped by a unit failure or an operator
// decline. The CLI maps it to a nonzero exit status.
var ErrRunAborted = errors.New("run aborted")

// UnitRunner executes one unit. Satisfied by executor.Runner.
type UnitRunner interface {
	RunUnit(ctx context.Context, unit catalog.Unit, uctx executor.UnitContext) (executor.Outcome, error)
}

// ConfigSync reconciles configuration around a unit. Satisfied by syncer.Syncer.
type ConfigSync interface {
	Restore(category string, livePaths []string) (*syncer.RestoreResult, error)
	Adopt(category string, livePaths []string) (*syncer.AdoptResult, error)
}

// Engine wires discovery, state, sync and execution into the run loop.
type Engine struct {
	catalog  catalog.Catalog
	store    state.Store
	runner   UnitRunner
	sync     ConfigSync
	rebooter executor.Rebooter
	prompter executor.Prompter
	clock    clock.Clock
	logger   *slog.Logger
}

// New creates an Engine.
func New(cat catalog.Catalog, store state.Store, runner UnitRunner, sync ConfigSync,
	rebooter executor.Rebooter, prompter executor.Prompter, clk clock.Clock, logger *slog.Logger) *Engine {
	return &Engine{
		catalog:  cat,
		store:    store,
		runner:   runner,
		sync:     sync,
		rebooter: rebooter,
		prompter: prompter,
		clock:    clk,
		logger:   logger,
	}
}

// RunRequest represents a request to execute the provisioning catalog.
type RunRequest struct {
	// Phases restricts the run to phases matching these tokens.
	Phases []string

	// SkipPhases removes phases matching these tokens.
	SkipPhases []string

	// AutoReboot skips the reboot confirmation.
	AutoReboot bool

	// DryRun logs intended actions without executing or rebooting.
	DryRun bool

	// UnitContext is passed to every unit invocation.
	UnitContext executor.UnitContext
}

// RunResult represents the result of a run.
type RunResult struct {
	// Executed counts units that actually ran successfully.
	Executed int

	// Skipped counts units skipped as already completed or declined.
	Skipped int

	// FailedContinued counts failures the operator chose to move past.
	FailedContinued int

	// RebootScheduled is true when the run ended by triggering a reboot;
	// a fresh invocation after boot resumes at the recorded position.
	RebootScheduled bool

	// Elapsed is the total wall-clock duration of the run.
	Elapsed time.Duration
}

// Run executes the filtered catalog from the resume position (if any).
func (e *Engine) Run(ctx context.Context, req *RunRequest) (*RunResult, error) {
	start := e.clock.Now()
	result := &RunResult{}

	units, err := e.workList(req)
	if err != nil {
		return nil, err
	}

	startIdx, err := e.resumePosition(units)
	if err != nil {
		return nil, err
	}

	currentPhase := ""
	for idx := startIdx; idx < len(units); idx++ {
		unit := units[idx]

		if unit.Phase != currentPhase {
			if err := e.store.SetCurrentPhase(unit.Phase); err != nil {
				return nil, err
			}
			currentPhase = unit.Phase
			e.logger.Info("entering phase", "phase", unit.Phase)
		}

		if err := e.restoreConfig(unit, req.DryRun); err != nil {
			return nil, err
		}

		outcome, err := e.runner.RunUnit(ctx, unit, req.UnitContext)
		if err != nil {
			return nil, err
		}

		switch outcome.Status {
		case executor.StatusSkipped:
			result.Skipped++
			continue

		case executor.StatusFailed:
			if outcome.ContinueAfterFailure {
				result.FailedContinued++
				continue
			}
			return result, fmt.Errorf("unit %s exited with code %d: %w", unit.Ref(), outcome.ExitCode, ErrRunAborted)

		case executor.StatusSuccess:
			result.Executed++
		}

		if err := e.adoptConfig(unit, req.DryRun); err != nil {
			return nil, err
		}

		if outcome.RebootRequired {
			scheduled, err := e.checkpointAndReboot(units, idx, req)
			if err != nil {
				return nil, err
			}
			result.RebootScheduled = scheduled
			result.Elapsed = e.clock.Since(start)
			return result, nil
		}
	}

	if err := e.store.ClearCurrentPhase(); err != nil {
		return nil, err
	}

	result.Elapsed = e.clock.Since(start)
	e.logger.Info("run complete",
		"executed", result.Executed,
		"skipped", result.Skipped,
		"failedContinued", result.FailedContinued,
		"elapsed", result.Elapsed.Round(time.Second).String())
	return result, nil
}

// workList discovers and filters the ordered units for this run.
func (e *Engine) workList(req *RunRequest) ([]catalog.Unit, error) {
	all, err := e.catalog.ListPhases()
	if err != nil {
		return nil, err
	}

	runlist := catalog.FilterPhases(all, req.Phases, req.SkipPhases)
	if len(runlist) == 0 {
		return nil, fmt.Errorf("no phases selected (catalog has %d, filters removed all)", len(all))
	}

	var units []catalog.Unit
	for _, phase := range runlist {
		phaseUnits, err := e.catalog.ListUnits(phase)
		if err != nil {
			return nil, err
		}
		units = append(units, phaseUnits...)
	}
	return units, nil
}

// resumePosition consumes the resume marker and locates it in the work
// list. A marker pointing at a vanished unit is a warning: the run
// falls back to the start of the filtered list.
func (e *Engine) resumePosition(units []catalog.Unit) (int, error) {
	marker, exists, err := e.store.GetResumeMarker()
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	if err := e.store.ClearResumeMarker(); err != nil {
		return 0, err
	}

	for idx, unit := range units {
		if unit.Phase == marker.Phase && unit.Name == marker.Unit {
			e.logger.Info("resuming after reboot", "phase", marker.Phase, "unit", marker.Unit)
			return idx, nil
		}
	}

	e.logger.Warn("resume marker points at an unknown unit, restarting run",
		"phase", marker.Phase, "unit", marker.Unit)
	return 0, nil
}

// checkpointAndReboot persists the resume marker for the unit after idx
// and triggers the reboot. Returns false when the operator deferred it.
func (e *Engine) checkpointAndReboot(units []catalog.Unit, idx int, req *RunRequest) (bool, error) {
	if req.DryRun {
		if next := idx + 1; next < len(units) {
			e.logger.Info("dry run, would set resume marker", "phase", units[next].Phase, "unit", units[next].Name)
		}
		e.logger.Info("dry run, would reboot now")
		return false, nil
	}

	if next := idx + 1; next < len(units) {
		if err := e.store.SetResumeMarker(units[next].Phase, units[next].Name); err != nil {
			return false, err
		}
		e.logger.Info("resume marker set", "phase", units[next].Phase, "unit", units[next].Name)
	}

	if !req.AutoReboot {
		reboot, err := e.prompter.Confirm("Reboot now to continue provisioning?")
		if err != nil {
			return false, err
		}
		if !reboot {
			e.logger.Warn("reboot deferred, run rig again after rebooting manually")
			return false, nil
		}
	}

	e.logger.Info("rebooting")
	if err := e.rebooter.Reboot(); err != nil {
		return false, err
	}
	return true, nil
}

// restoreConfig links repository entries into place before a unit runs.
func (e *Engine) restoreConfig(unit catalog.Unit, dryRun bool) error {
	cfg := unit.Manifest.Config
	if cfg == nil {
		return nil
	}
	if dryRun {
		e.logger.Info("dry run, would restore config", "unit", unit.Ref(), "category", cfg.Category)
		return nil
	}

	if _, err := e.sync.Restore(cfg.Category, cfg.Paths); err != nil {
		return fmt.Errorf("config restore for %s failed: %w", unit.Ref(), err)
	}
	return nil
}

// adoptConfig moves new live config into the repository after a successful unit.
func (e *Engine) adoptConfig(unit catalog.Unit, dryRun bool) error {
	cfg := unit.Manifest.Config
	if cfg == nil || dryRun {
		return nil
	}

	if _, err := e.sync.Adopt(cfg.Category, cfg.Paths); err != nil {
		return fmt.Errorf("config adopt for %s failed: %w", unit.Ref(), err)
	}
	return nil
}
