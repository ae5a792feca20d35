package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/rig/internal/catalog"
	"github.com/danieljhkim/rig/internal/config"
	"github.com/danieljhkim/rig/internal/gitx"
	"github.com/danieljhkim/rig/internal/logging"
	"github.com/danieljhkim/rig/internal/syncer"
)

var (
	syncUnits string
	syncRepo  string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile configuration between repository and filesystem",
	Long: `Reconcile the configuration paths declared by unit manifests with the
version-controlled configuration repository, outside a provisioning run.

'restore' links repository entries into their live locations (what rig
does before a unit runs); 'adopt' moves live files into the repository
and links back (what rig does after a unit succeeds).`,
}

var syncRestoreCmd = &cobra.Command{
	Use:   "restore [category [path...]]",
	Short: "Link repository config entries into their live locations",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(args, func(s *syncer.Syncer, spec *catalog.ConfigSpec) (string, error) {
			res, err := s.Restore(spec.Category, spec.Paths)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s: restored %d, backed up %d, missing %d",
				spec.Category, len(res.Restored), len(res.BackedUp), len(res.Missing)), nil
		})
	},
}

var syncAdoptCmd = &cobra.Command{
	Use:   "adopt [category [path...]]",
	Short: "Move live config files into the repository and link back",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(args, func(s *syncer.Syncer, spec *catalog.ConfigSpec) (string, error) {
			res, err := s.Adopt(spec.Category, spec.Paths)
			if err != nil {
				return "", err
			}
			line := fmt.Sprintf("%s: adopted %d, backed up %d, missing %d",
				spec.Category, len(res.Adopted), len(res.BackedUp), len(res.Missing))
			if len(res.Adopted) > 0 && !res.Committed {
				line += " (not committed)"
			}
			return line, nil
		})
	},
}

// runSync applies op to config specs: every spec in the catalog, only
// the named category, or, when explicit paths are given, exactly that
// category and those paths without consulting the catalog (the form
// units themselves invoke).
func runSync(args []string, op func(*syncer.Syncer, *catalog.ConfigSpec) (string, error)) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	repoRoot, err := rt.repoRoot(syncRepo)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(config.Resolve("", "RIG_LOG_LEVEL", rt.cfg.LogLevel))
	if err != nil {
		return err
	}
	runLog, err := logging.NewRunLog("", logging.ModeMinimal, level, rt.clk.Now())
	if err != nil {
		return err
	}
	defer runLog.Close()

	s := syncer.New(rt.fs, gitx.NewRealGit(), rt.clk, runLog.Logger, repoRoot)

	if len(args) > 1 {
		line, err := op(s, &catalog.ConfigSpec{Category: args[0], Paths: args[1:]})
		if err != nil {
			return err
		}
		PrintSuccess(line)
		return nil
	}

	cat, err := rt.newCatalog(syncUnits)
	if err != nil {
		return err
	}
	specs, err := collectConfigSpecs(cat)
	if err != nil {
		return err
	}

	var category string
	if len(args) > 0 {
		category = args[0]
	}

	matched := 0
	for _, spec := range specs {
		if category != "" && spec.Category != category {
			continue
		}
		matched++

		line, err := op(s, spec)
		if err != nil {
			return err
		}
		PrintSuccess(line)
	}

	if matched == 0 {
		if category != "" {
			return fmt.Errorf("no unit manifest declares config category %q", category)
		}
		PrintEmptyState("No unit manifests declare config paths.")
	}
	return nil
}

// collectConfigSpecs gathers the config declarations of every unit in
// catalog order, merging paths of specs that share a category.
func collectConfigSpecs(cat catalog.Catalog) ([]*catalog.ConfigSpec, error) {
	phases, err := cat.ListPhases()
	if err != nil {
		return nil, err
	}

	var specs []*catalog.ConfigSpec
	byCategory := map[string]*catalog.ConfigSpec{}

	for _, phase := range phases {
		units, err := cat.ListUnits(phase)
		if err != nil {
			return nil, err
		}
		for _, u := range units {
			cfg := u.Manifest.Config
			if cfg == nil {
				continue
			}
			if existing, ok := byCategory[cfg.Category]; ok {
				existing.Paths = append(existing.Paths, cfg.Paths...)
				continue
			}
			spec := &catalog.ConfigSpec{Category: cfg.Category, Paths: append([]string(nil), cfg.Paths...)}
			byCategory[cfg.Category] = spec
			specs = append(specs, spec)
		}
	}

	return specs, nil
}

func init() {
	syncCmd.PersistentFlags().StringVar(&syncUnits, "units", "", "Unit catalog directory (default from RIG_UNITS or config)")
	syncCmd.PersistentFlags().StringVar(&syncRepo, "repo", "", "Config repository root (default from RIG_REPO or config)")
	syncCmd.AddCommand(syncRestoreCmd)
	syncCmd.AddCommand(syncAdoptCmd)
}
