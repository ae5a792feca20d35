package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	resetCompleted    bool
	resetResume       bool
	resetCurrentPhase bool
	resetAll          bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear recorded provisioning state",
	Long: `Clear parts of the durable run state.

Clearing the completed set makes the next run re-execute every unit;
clearing the resume marker abandons a pending post-reboot position.
Both are destructive to progress tracking, so each piece must be named
explicitly (or --all).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetCompleted && !resetResume && !resetCurrentPhase && !resetAll {
			return fmt.Errorf("nothing selected: pass --completed, --resume, --current-phase or --all")
		}

		rt, err := newRuntime()
		if err != nil {
			return err
		}

		if resetAll || resetCompleted {
			if err := rt.store.ClearCompleted(); err != nil {
				return err
			}
			PrintSuccess("Cleared the completed set")
		}
		if resetAll || resetResume {
			if err := rt.store.ClearResumeMarker(); err != nil {
				return err
			}
			PrintSuccess("Cleared the resume marker")
		}
		if resetAll || resetCurrentPhase {
			if err := rt.store.ClearCurrentPhase(); err != nil {
				return err
			}
			PrintSuccess("Cleared the current phase pointer")
		}
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetCompleted, "completed", false, "Clear the completed set")
	resetCmd.Flags().BoolVar(&resetResume, "resume", false, "Clear the resume marker")
	resetCmd.Flags().BoolVar(&resetCurrentPhase, "current-phase", false, "Clear the current phase pointer")
	resetCmd.Flags().BoolVar(&resetAll, "all", false, "Clear everything")
}
