package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusUnits string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show provisioning progress and the resume position",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}

		st, err := rt.store.Load()
		if err != nil {
			return err
		}

		PrintSection("Provisioning Status")

		if st.CurrentPhase != "" {
			PrintLabelValue("Current phase", st.CurrentPhase)
		}
		if st.Resume != nil {
			PrintLabelValue("Resumes at", st.Resume.Phase+"/"+st.Resume.Unit)
		}
		PrintLabelValue("Completed", PrintCount(len(st.Completed), "unit", "units"))

		if len(st.Completed) == 0 {
			PrintEmptyState("No units completed yet. Run 'rig run' to start provisioning.")
			return nil
		}

		rows := make([][]string, 0, len(st.Completed))
		for _, c := range st.Completed {
			rows = append(rows, []string{c.Phase, c.Unit, c.At.UTC().Format(time.RFC3339)})
		}
		fmt.Println()
		PrintTable([]string{"PHASE", "UNIT", "COMPLETED AT"}, rows)

		// With a catalog available, report how much work remains.
		cat, err := rt.newCatalog(statusUnits)
		if err != nil {
			return nil
		}
		phases, err := cat.ListPhases()
		if err != nil {
			return nil
		}

		remaining := 0
		for _, phase := range phases {
			units, err := cat.ListUnits(phase)
			if err != nil {
				return nil
			}
			for _, u := range units {
				if !st.IsCompleted(u.Phase, u.Name) {
					remaining++
				}
			}
		}

		fmt.Println()
		if remaining == 0 {
			PrintSuccess("All catalog units completed")
		} else {
			PrintInfo(fmt.Sprintf("%s remaining", PrintCount(remaining, "unit", "units")))
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusUnits, "units", "", "Unit catalog directory (default from RIG_UNITS or config)")
}
