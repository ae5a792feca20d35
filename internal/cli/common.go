package cli

import (
	"fmt"
	"os"
	"os/user"

	"github.com/danieljhkim/rig/internal/catalog"
	"github.com/danieljhkim/rig/internal/clock"
	"github.com/danieljhkim/rig/internal/config"
	"github.com/danieljhkim/rig/internal/fsops"
	"github.com/danieljhkim/rig/internal/state"
)

// runtime bundles the real implementations every command wires up.
type runtime struct {
	paths *config.Paths
	cfg   *config.Config
	fs    fsops.FS
	clk   clock.Clock
	store *state.FileStore
}

// newRuntime resolves paths, loads the optional config file and creates
// the shared dependencies.
func newRuntime() (*runtime, error) {
	paths, err := config.DefaultPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get config paths: %w", err)
	}

	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	cfg, err := config.Load(paths.Config)
	if err != nil {
		return nil, err
	}

	fs := fsops.NewRealFS()
	clk := &clock.RealClock{}

	return &runtime{
		paths: paths,
		cfg:   cfg,
		fs:    fs,
		clk:   clk,
		store: state.NewFileStore(fs, paths.State, clk),
	}, nil
}

// unitsDir resolves the catalog root (flag > RIG_UNITS > config file).
func (r *runtime) unitsDir(flagValue string) (string, error) {
	dir := config.Resolve(flagValue, "RIG_UNITS", r.cfg.UnitsDir)
	if dir == "" {
		return "", fmt.Errorf("units directory not set (use --units, RIG_UNITS or unitsDir in %s)", r.paths.Config)
	}
	return dir, nil
}

// repoRoot resolves the config repository root (flag > RIG_REPO > config file).
func (r *runtime) repoRoot(flagValue string) (string, error) {
	root := config.Resolve(flagValue, "RIG_REPO", r.cfg.RepoRoot)
	if root == "" {
		return "", fmt.Errorf("config repository not set (use --repo, RIG_REPO or repoRoot in %s)", r.paths.Config)
	}
	return root, nil
}

// newCatalog creates the unit catalog over the resolved units directory.
func (r *runtime) newCatalog(flagValue string) (*catalog.DirCatalog, error) {
	dir, err := r.unitsDir(flagValue)
	if err != nil {
		return nil, err
	}
	return catalog.NewDirCatalog(r.fs, dir), nil
}

// checkPrivileges rejects unprivileged provisioning runs. Units install
// packages and write system paths; running them as a regular user fails
// halfway through in confusing ways. Dry runs are exempt, and
// RIG_ALLOW_UNPRIVILEGED=1 overrides for container and test setups.
func checkPrivileges(dryRun bool) error {
	if dryRun || os.Getenv("RIG_ALLOW_UNPRIVILEGED") == "1" {
		return nil
	}
	if os.Geteuid() != 0 {
		return fmt.Errorf("rig run needs root privileges (re-run with sudo, or set RIG_ALLOW_UNPRIVILEGED=1)")
	}
	return nil
}

// provisionUser is the identity units provision for: the invoking user
// behind sudo when present, otherwise the current user.
func provisionUser() string {
	if u := os.Getenv("SUDO_USER"); u != "" {
		return u
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}
