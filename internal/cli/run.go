package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/rig/internal/config"
	"github.com/danieljhkim/rig/internal/executor"
	"github.com/danieljhkim/rig/internal/gitx"
	"github.com/danieljhkim/rig/internal/logging"
	"github.com/danieljhkim/rig/internal/orchestrator"
	"github.com/danieljhkim/rig/internal/syncer"
)

var (
	runUnits       string
	runRepo        string
	runPhases      []string
	runSkipPhases  []string
	runForce       bool
	runInteractive bool
	runAutoReboot  bool
	runDryRun      bool
	runLogMode     string
	runLogLevel    string
	runVerbose     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the provisioning catalog from the current position",
	Long: `Execute every unit of the provisioning catalog that has not completed
yet, in phase order.

Completed units are skipped, so re-running after a failure or reboot
picks up exactly where the previous invocation stopped. When a unit
requires a reboot, rig records the next unit to run, reboots, and the
post-boot invocation resumes from that marker.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkPrivileges(runDryRun); err != nil {
			return err
		}

		rt, err := newRuntime()
		if err != nil {
			return err
		}

		cat, err := rt.newCatalog(runUnits)
		if err != nil {
			return err
		}

		mode := config.Resolve(runLogMode, "RIG_LOG_MODE", rt.cfg.LogMode)
		if mode == "" {
			mode = logging.ModeFull
		}
		levelName := config.Resolve(runLogLevel, "RIG_LOG_LEVEL", rt.cfg.LogLevel)
		if runVerbose {
			levelName = "DEBUG"
		}
		level, err := logging.ParseLevel(levelName)
		if err != nil {
			return err
		}

		runLog, err := logging.NewRunLog(rt.paths.Logs, mode, level, rt.clk.Now())
		if err != nil {
			return err
		}
		defer runLog.Close()
		logger := runLog.Logger

		// The repository root is only touched when a unit declares
		// config paths; an unset root fails at that point, not here.
		repoRoot := config.Resolve(runRepo, "RIG_REPO", rt.cfg.RepoRoot)
		sync := syncer.New(rt.fs, gitx.NewRealGit(), rt.clk, logger, repoRoot)

		prompter := executor.NewTerminalPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
		runner := executor.NewRunner(rt.fs, rt.store, logger, prompter, executor.Options{
			Force:       runForce,
			Interactive: runInteractive,
			DryRun:      runDryRun,
			Output:      runLog.UnitOutput(),
		})

		eng := orchestrator.New(cat, rt.store, runner, sync,
			&executor.SystemRebooter{}, prompter, rt.clk, logger)

		req := &orchestrator.RunRequest{
			Phases:     runPhases,
			SkipPhases: runSkipPhases,
			AutoReboot: runAutoReboot,
			DryRun:     runDryRun,
			UnitContext: executor.UnitContext{
				User:     provisionUser(),
				RepoRoot: repoRoot,
				StateDir: rt.paths.State,
				LogFile:  runLog.FilePath,
				DryRun:   runDryRun,
			},
		}

		result, err := eng.Run(context.Background(), req)
		if err != nil {
			if errors.Is(err, orchestrator.ErrRunAborted) {
				PrintError(err.Error())
				PrintInfo("Fix the failing unit and run rig again to resume.")
			}
			return err
		}

		if result.RebootScheduled {
			PrintWarning("Rebooting to continue provisioning. Run rig again after boot.")
			return nil
		}

		PrintSection("Run Summary")
		PrintLabelValue("Executed", PrintCount(result.Executed, "unit", "units"))
		PrintLabelValue("Skipped", PrintCount(result.Skipped, "unit", "units"))
		if result.FailedContinued > 0 {
			PrintLabelValue("Failed (continued)", PrintCount(result.FailedContinued, "unit", "units"))
		}
		PrintLabelValue("Elapsed", result.Elapsed.Round(time.Second).String())

		if result.FailedContinued > 0 {
			PrintWarning(fmt.Sprintf("%s failed and must be re-run", PrintCount(result.FailedContinued, "unit", "units")))
		} else {
			PrintSuccess("Provisioning complete")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runUnits, "units", "", "Unit catalog directory (default from RIG_UNITS or config)")
	runCmd.Flags().StringVar(&runRepo, "repo", "", "Config repository root (default from RIG_REPO or config)")
	runCmd.Flags().StringSliceVarP(&runPhases, "phase", "p", nil, "Run only phases matching these tokens")
	runCmd.Flags().StringSliceVar(&runSkipPhases, "skip-phases", nil, "Skip phases matching these tokens")
	runCmd.Flags().BoolVarP(&runForce, "force", "f", false, "Re-run units already marked completed")
	runCmd.Flags().BoolVarP(&runInteractive, "interactive", "i", false, "Confirm each unit before running it")
	runCmd.Flags().BoolVar(&runAutoReboot, "auto-reboot", false, "Reboot without confirmation when a unit requires it")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Log intended actions without executing units")
	runCmd.Flags().StringVar(&runLogMode, "log-mode", "", "Log mode: full, minimal or quiet (default full)")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "", "Log level: DEBUG, INFO, WARNING or ERROR (default INFO)")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Shorthand for --log-level DEBUG")
}
