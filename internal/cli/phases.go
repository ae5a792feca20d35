package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/rig/internal/catalog"
)

var (
	phasesUnits      string
	phasesOnly       []string
	phasesSkipPhases []string
)

var phasesCmd = &cobra.Command{
	Use:   "phases",
	Short: "List catalog phases and their units",
	Long: `List the phases of the unit catalog in execution order, with each
phase's units and their completion status. The same --phase and
--skip-phases filters as 'rig run' apply, so the output previews
exactly what a filtered run would execute.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}

		cat, err := rt.newCatalog(phasesUnits)
		if err != nil {
			return err
		}

		all, err := cat.ListPhases()
		if err != nil {
			return err
		}

		st, err := rt.store.Load()
		if err != nil {
			return err
		}

		selected := catalog.FilterPhases(all, phasesOnly, phasesSkipPhases)
		if len(selected) == 0 {
			PrintEmptyState("No phases match the given filters.")
			return nil
		}

		for _, phase := range selected {
			units, err := cat.ListUnits(phase)
			if err != nil {
				return err
			}

			PrintSection(phase)

			rows := make([][]string, 0, len(units))
			for _, u := range units {
				status := "pending"
				if st.IsCompleted(u.Phase, u.Name) {
					status = "completed"
				}

				var notes []string
				if u.Manifest.RequiresReboot {
					notes = append(notes, "reboot")
				}
				if u.Manifest.Config != nil {
					notes = append(notes, "config:"+u.Manifest.Config.Category)
				}

				rows = append(rows, []string{u.Name, status, strings.Join(notes, ", ")})
			}
			PrintTable([]string{"UNIT", "STATUS", "NOTES"}, rows)
		}
		return nil
	},
}

func init() {
	phasesCmd.Flags().StringVar(&phasesUnits, "units", "", "Unit catalog directory (default from RIG_UNITS or config)")
	phasesCmd.Flags().StringSliceVarP(&phasesOnly, "phase", "p", nil, "Show only phases matching these tokens")
	phasesCmd.Flags().StringSliceVar(&phasesSkipPhases, "skip-phases", nil, "Hide phases matching these tokens")
}
