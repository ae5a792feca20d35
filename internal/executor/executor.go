// Package executor runs one provisioning unit as a subprocess and
// classifies its outcome.
//
// The unit's exit status is the sole success signal. After a successful
// execution three independent reboot signals are evaluated, any one of
// which is sufficient: the durable marker file a unit may create in the
// state directory, the system's reboot-pending indicator, and the
// requiresReboot declaration in the unit's manifest.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/danieljhkim/rig/internal/catalog"
	"github.com/danieljhkim/rig/internal/fsops"
	"github.com/danieljhkim/rig/internal/state"
)

// systemRebootPendingPath is Ubuntu's reboot-pending indicator.
const systemRebootPendingPath = "/run/reboot-required"

// UnitContext is the explicit context passed to every unit invocation,
// replacing ambient environment coupling between units. It is
// materialized as a constructed child environment; the orchestrator's
// own environment is never mutated.
type UnitContext struct {
	// User is the operator identity provisioning is performed for.
	User string

	// RepoRoot is the configuration repository root.
	RepoRoot string

	// StateDir is where a unit may leave the reboot marker file.
	StateDir string

	// LogFile is the per-run log path, empty in minimal log mode.
	LogFile string

	// DryRun tells the unit that no side effects should be applied.
	DryRun bool
}

// Environ builds the child process environment.
func (c UnitContext) Environ() []string {
	env := append([]string(nil), os.Environ()...)
	env = append(env,
		"RIG_USER="+c.User,
		"RIG_REPO="+c.RepoRoot,
		"RIG_STATE_DIR="+c.StateDir,
		"RIG_LOG_FILE="+c.LogFile,
	)
	if c.DryRun {
		env = append(env, "RIG_DRY_RUN=1")
	} else {
		env = append(env, "RIG_DRY_RUN=0")
	}
	return env
}

// Options configure a Runner for one orchestrator run.
type Options struct {
	// Force re-runs units already in the completed set.
	Force bool

	// Interactive enables the per-unit confirmation and the
	// continue-despite-error prompt.
	Interactive bool

	// DryRun logs intended executions without starting subprocesses.
	DryRun bool

	// Output receives the unit's stdout and stderr (default os.Stdout).
	Output io.Writer

	// SystemRebootPath overrides the system reboot-pending indicator,
	// for tests. Empty means /run/reboot-required.
	SystemRebootPath string
}

// Runner executes units and records their completion.
type Runner struct {
	fs       fsops.FS
	store    state.Store
	logger   *slog.Logger
	prompter Prompter
	opts     Options
}

// NewRunner creates a Runner.
func NewRunner(fs fsops.FS, store state.Store, logger *slog.Logger, prompter Prompter, opts Options) *Runner {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.SystemRebootPath == "" {
		opts.SystemRebootPath = systemRebootPendingPath
	}
	return &Runner{
		fs:       fs,
		store:    store,
		logger:   logger,
		prompter: prompter,
		opts:     opts,
	}
}

// RunUnit executes one unit and classifies the result. Failures are
// outcomes, not errors; the error return covers infrastructure problems
// (state store I/O, prompt I/O) only.
func (r *Runner) RunUnit(ctx context.Context, unit catalog.Unit, uctx UnitContext) (Outcome, error) {
	done, err := r.store.IsCompleted(unit.Phase, unit.Name)
	if err != nil {
		return Outcome{}, err
	}
	if done && !r.opts.Force {
		r.logger.Info("unit already completed, skipping", "unit", unit.Ref())
		return Outcome{Status: StatusSkipped}, nil
	}

	if r.opts.Interactive {
		run, err := r.prompter.Confirm(fmt.Sprintf("Run %s?", unit.Ref()))
		if err != nil {
			return Outcome{}, err
		}
		if !run {
			// An explicit decline skips the unit without marking it
			// completed, so a later run picks it up again.
			r.logger.Info("unit declined by operator", "unit", unit.Ref())
			return Outcome{Status: StatusSkipped}, nil
		}
	}

	if r.opts.DryRun {
		r.logger.Info("dry run, would execute", "unit", unit.Ref(), "path", unit.Path)
		// Of the three reboot signals only the manifest declaration is
		// knowable without executing; report it so a dry run previews
		// where the real run would checkpoint and reboot.
		return Outcome{Status: StatusSuccess, RebootRequired: unit.Manifest.RequiresReboot}, nil
	}

	r.logger.Info("executing unit", "unit", unit.Ref(), "path", unit.Path)

	exitCode, err := r.execute(ctx, unit, uctx)
	if err != nil {
		return Outcome{}, err
	}

	if exitCode != 0 {
		r.logger.Error("unit failed", "unit", unit.Ref(), "exitCode", exitCode)

		if r.opts.Interactive {
			cont, err := r.prompter.Confirm(fmt.Sprintf("%s exited with code %d. Continue despite error?", unit.Ref(), exitCode))
			if err != nil {
				return Outcome{}, err
			}
			if cont {
				return Outcome{Status: StatusFailed, ExitCode: exitCode, ContinueAfterFailure: true}, nil
			}
		}
		return Outcome{Status: StatusFailed, ExitCode: exitCode}, nil
	}

	if err := r.store.MarkCompleted(unit.Phase, unit.Name); err != nil {
		return Outcome{}, err
	}

	reboot, err := r.rebootRequired(unit)
	if err != nil {
		return Outcome{}, err
	}
	if reboot {
		r.logger.Info("unit requires reboot", "unit", unit.Ref())
	}

	return Outcome{Status: StatusSuccess, RebootRequired: reboot}, nil
}

// execute starts the unit subprocess and returns its exit code.
func (r *Runner) execute(ctx context.Context, unit catalog.Unit, uctx UnitContext) (int, error) {
	cmd := exec.CommandContext(ctx, unit.Path)
	cmd.Env = uctx.Environ()
	cmd.Stdout = r.opts.Output
	cmd.Stderr = r.opts.Output

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, fmt.Errorf("failed to start unit %s: %w", unit.Ref(), err)
}

// rebootRequired evaluates the three independent reboot signals.
func (r *Runner) rebootRequired(unit catalog.Unit) (bool, error) {
	if unit.Manifest.RequiresReboot {
		return true, nil
	}

	fromUnit, err := r.store.ConsumeRebootSignal()
	if err != nil {
		return false, err
	}
	if fromUnit {
		return true, nil
	}

	pending, err := r.fs.Exists(r.opts.SystemRebootPath)
	if err != nil {
		return false, err
	}
	return pending, nil
}
