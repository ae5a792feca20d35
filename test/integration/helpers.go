package integration

import (
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/danieljhkim/rig/internal/catalog"
	"github.com/danieljhkim/rig/internal/clock"
	"github.com/danieljhkim/rig/internal/executor"
	"github.com/danieljhkim/rig/internal/fsops"
	"github.com/danieljhkim/rig/internal/gitx"
	"github.com/danieljhkim/rig/internal/orchestrator"
	"github.com/danieljhkim/rig/internal/state"
	"github.com/danieljhkim/rig/internal/syncer"
)

// env is a full rig setup over real directories: a unit catalog of
// shell scripts, a git config repository, and a state directory.
type env struct {
	unitsDir  string
	repoRoot  string
	stateDir  string
	workDir   string
	fs        fsops.FS
	clk       *clock.FakeClock
	store     *state.FileStore
	catalog   *catalog.DirCatalog
	rebooter  *executor.NoopRebooter
	logger    *slog.Logger
	sysReboot string
}

func newEnv(t *testing.T) *env {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	root := t.TempDir()
	e := &env{
		unitsDir:  filepath.Join(root, "units"),
		repoRoot:  filepath.Join(root, "config-repo"),
		stateDir:  filepath.Join(root, "state"),
		workDir:   filepath.Join(root, "work"),
		fs:        fsops.NewRealFS(),
		clk:       clock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		rebooter:  &executor.NoopRebooter{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		sysReboot: filepath.Join(root, "never-exists"),
	}

	for _, dir := range []string{e.unitsDir, e.repoRoot, e.stateDir, e.workDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}

	for _, args := range [][]string{
		{"init"},
		{"config", "user.email", "rig@test.local"},
		{"config", "user.name", "rig test"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = e.repoRoot
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}

	e.store = state.NewFileStore(e.fs, e.stateDir, e.clk)
	e.catalog = catalog.NewDirCatalog(e.fs, e.unitsDir)
	return e
}

// addUnit writes an executable shell script into a phase directory.
func (e *env) addUnit(t *testing.T, phase, name, body string) {
	t.Helper()

	phaseDir := filepath.Join(e.unitsDir, phase)
	if err := os.MkdirAll(phaseDir, 0755); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(filepath.Join(phaseDir, name), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
}

// addManifest writes a unit's YAML sidecar.
func (e *env) addManifest(t *testing.T, phase, unitName, body string) {
	t.Helper()

	base := unitName[:len(unitName)-len(filepath.Ext(unitName))]
	path := filepath.Join(e.unitsDir, phase, base+".yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

// engine wires a real runner and syncer into an orchestrator, with
// scripted prompt answers and a recording rebooter.
func (e *env) engine(t *testing.T, answers ...bool) *orchestrator.Engine {
	t.Helper()

	prompter := executor.NewScriptedPrompter(answers...)
	runner := executor.NewRunner(e.fs, e.store, e.logger, prompter, executor.Options{
		Output:           io.Discard,
		SystemRebootPath: e.sysReboot,
	})
	sync := syncer.New(e.fs, gitx.NewRealGit(), e.clk, e.logger, e.repoRoot)

	return orchestrator.New(e.catalog, e.store, runner, sync,
		e.rebooter, prompter, e.clk, e.logger)
}

func (e *env) unitContext() executor.UnitContext {
	return executor.UnitContext{
		User:     "tester",
		RepoRoot: e.repoRoot,
		StateDir: e.stateDir,
	}
}

// probe returns the path a unit script can touch to prove it ran.
func (e *env) probe(name string) string {
	return filepath.Join(e.workDir, name)
}

func exists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Lstat(path)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	return err == nil
}
