package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPaths(t *testing.T) {
	t.Run("respects RIG_ROOT override", func(t *testing.T) {
		tmpDir := t.TempDir()
		t.Setenv("RIG_ROOT", tmpDir)

		paths, err := DefaultPaths()
		if err != nil {
			t.Fatalf("DefaultPaths failed: %v", err)
		}

		if paths.Root != tmpDir {
			t.Errorf("Root = %q, want %q", paths.Root, tmpDir)
		}
		if paths.State != filepath.Join(tmpDir, "state") {
			t.Errorf("State = %q, want %q", paths.State, filepath.Join(tmpDir, "state"))
		}
		if paths.Logs != filepath.Join(tmpDir, "logs") {
			t.Errorf("Logs = %q, want %q", paths.Logs, filepath.Join(tmpDir, "logs"))
		}
	})

	t.Run("defaults under home directory", func(t *testing.T) {
		t.Setenv("RIG_ROOT", "")

		home, err := os.UserHomeDir()
		if err != nil {
			t.Skipf("no home directory: %v", err)
		}

		paths, err := DefaultPaths()
		if err != nil {
			t.Fatalf("DefaultPaths failed: %v", err)
		}
		if paths.Root != filepath.Join(home, ".rig") {
			t.Errorf("Root = %q, want %q", paths.Root, filepath.Join(home, ".rig"))
		}
	})
}

func TestEnsureDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("RIG_ROOT", filepath.Join(tmpDir, "data"))

	paths, err := DefaultPaths()
	if err != nil {
		t.Fatalf("DefaultPaths failed: %v", err)
	}

	if err := paths.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{paths.Root, paths.State, paths.Logs} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("directory %s not created: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}

	// Idempotent
	if err := paths.EnsureDirectories(); err != nil {
		t.Errorf("second EnsureDirectories should not fail: %v", err)
	}
}
