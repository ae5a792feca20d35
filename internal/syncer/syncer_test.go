package syncer

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danieljhkim/rig/internal/clock"
	"github.com/danieljhkim/rig/internal/fsops"
	"github.com/danieljhkim/rig/internal/gitx"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupRepo creates a git-initialized repository root for the syncer.
func setupRepo(t *testing.T) string {
	t.Helper()

	repo := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = repo
		if output, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v: %s", args, err, output)
		}
	}
	run("init")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test User")

	return repo
}

func newTestSyncer(t *testing.T, repoRoot string) *Syncer {
	t.Helper()
	clk := clock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	return New(fsops.NewRealFS(), gitx.NewRealGit(), clk, discardLogger(), repoRoot)
}

func gitLog(t *testing.T, root string) string {
	t.Helper()
	cmd := exec.Command("git", "log", "--pretty=%s")
	cmd.Dir = root
	output, err := cmd.Output()
	if err != nil {
		t.Fatalf("git log failed: %v", err)
	}
	return string(output)
}

func gitCommitCount(t *testing.T, root string) int {
	t.Helper()
	log := strings.TrimSpace(gitLog(t, root))
	if log == "" {
		return 0
	}
	return len(strings.Split(log, "\n"))
}

func TestSyncer_Adopt(t *testing.T) {
	t.Run("adopts live file, links it, keeps the original as backup", func(t *testing.T) {
		repo := setupRepo(t)
		live := t.TempDir()
		s := newTestSyncer(t, repo)

		bashrc := filepath.Join(live, ".bashrc")
		if err := os.WriteFile(bashrc, []byte("X"), 0644); err != nil {
			t.Fatalf("failed to create live file: %v", err)
		}

		result, err := s.Adopt("shell", []string{bashrc})
		if err != nil {
			t.Fatalf("Adopt failed: %v", err)
		}

		if len(result.Adopted) != 1 || result.Adopted[0] != bashrc {
			t.Errorf("Adopted = %v, want [%s]", result.Adopted, bashrc)
		}

		repoCopy := filepath.Join(repo, "shell", ".bashrc")
		content, err := os.ReadFile(repoCopy)
		if err != nil {
			t.Fatalf("repository copy missing: %v", err)
		}
		if string(content) != "X" {
			t.Errorf("repository content = %q, want %q", content, "X")
		}

		target, err := os.Readlink(bashrc)
		if err != nil {
			t.Fatalf("live path should be a symlink: %v", err)
		}
		if target != repoCopy {
			t.Errorf("symlink target = %q, want %q", target, repoCopy)
		}

		// The original survives as a timestamped backup next to the link.
		wantBackup := bashrc + ".orig.20240501-120000"
		if len(result.BackedUp) != 1 || result.BackedUp[0] != wantBackup {
			t.Fatalf("BackedUp = %v, want [%s]", result.BackedUp, wantBackup)
		}
		backupContent, err := os.ReadFile(wantBackup)
		if err != nil {
			t.Fatalf("backup of the original missing: %v", err)
		}
		if string(backupContent) != "X" {
			t.Errorf("backup content = %q, want %q", backupContent, "X")
		}

		if !result.Committed {
			t.Error("adoption should have been committed")
		}
		if log := gitLog(t, repo); !strings.Contains(log, "shell: adopt .bashrc") {
			t.Errorf("commit message missing, log = %q", log)
		}
	})

	t.Run("adopts directories", func(t *testing.T) {
		repo := setupRepo(t)
		live := t.TempDir()
		s := newTestSyncer(t, repo)

		confDir := filepath.Join(live, "nvim")
		if err := os.MkdirAll(confDir, 0755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(confDir, "init.lua"), []byte("-- cfg"), 0644); err != nil {
			t.Fatalf("failed to create file: %v", err)
		}

		result, err := s.Adopt("editor", []string{confDir})
		if err != nil {
			t.Fatalf("Adopt failed: %v", err)
		}
		if len(result.Adopted) != 1 {
			t.Fatalf("Adopted = %v, want one entry", result.Adopted)
		}

		content, err := os.ReadFile(filepath.Join(repo, "editor", "nvim", "init.lua"))
		if err != nil {
			t.Fatalf("repository copy missing: %v", err)
		}
		if string(content) != "-- cfg" {
			t.Errorf("content = %q", content)
		}
		if _, err := os.Readlink(confDir); err != nil {
			t.Errorf("live dir should be a symlink: %v", err)
		}
	})

	t.Run("missing live path is a warning not an error", func(t *testing.T) {
		repo := setupRepo(t)
		s := newTestSyncer(t, repo)

		missing := filepath.Join(t.TempDir(), "absent.conf")
		result, err := s.Adopt("misc", []string{missing})
		if err != nil {
			t.Fatalf("Adopt should not fail on a missing live path: %v", err)
		}
		if len(result.Missing) != 1 || result.Missing[0] != missing {
			t.Errorf("Missing = %v, want [%s]", result.Missing, missing)
		}
		if result.Committed {
			t.Error("nothing adopted, nothing to commit")
		}
	})

	t.Run("missing repository root is fatal", func(t *testing.T) {
		s := newTestSyncer(t, filepath.Join(t.TempDir(), "no-repo"))
		if _, err := s.Adopt("misc", []string{"/tmp/whatever"}); err == nil {
			t.Error("Adopt should fail when the repository root is missing")
		}
	})

	t.Run("plain directory root warns that history will not be captured", func(t *testing.T) {
		repo := t.TempDir()
		live := t.TempDir()

		var logs bytes.Buffer
		clk := clock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
		logger := slog.New(slog.NewTextHandler(&logs, nil))
		s := New(fsops.NewRealFS(), gitx.NewRealGit(), clk, logger, repo)

		conf := filepath.Join(live, "app.conf")
		if err := os.WriteFile(conf, []byte("k=v"), 0644); err != nil {
			t.Fatalf("failed to create live file: %v", err)
		}

		if _, err := s.Adopt("apps", []string{conf}); err != nil {
			t.Fatalf("Adopt failed: %v", err)
		}
		if !strings.Contains(logs.String(), "not under version control") {
			t.Errorf("expected version-control warning, logs = %q", logs.String())
		}
	})

	t.Run("commit failure is a warning, filesystem state still correct", func(t *testing.T) {
		// A plain directory: staging/committing fails, adoption must not.
		repo := t.TempDir()
		live := t.TempDir()
		s := newTestSyncer(t, repo)

		conf := filepath.Join(live, "app.conf")
		if err := os.WriteFile(conf, []byte("k=v"), 0644); err != nil {
			t.Fatalf("failed to create live file: %v", err)
		}

		result, err := s.Adopt("apps", []string{conf})
		if err != nil {
			t.Fatalf("Adopt failed: %v", err)
		}
		if len(result.Adopted) != 1 {
			t.Fatalf("Adopted = %v", result.Adopted)
		}
		if result.Committed {
			t.Error("commit should have failed outside a git repository")
		}
		if _, err := os.Readlink(conf); err != nil {
			t.Errorf("live path should still be a symlink: %v", err)
		}
	})
}

func TestSyncer_Restore(t *testing.T) {
	t.Run("creates symlink and parent directories", func(t *testing.T) {
		repo := setupRepo(t)
		live := t.TempDir()
		s := newTestSyncer(t, repo)

		repoCopy := filepath.Join(repo, "shell", ".bashrc")
		if err := os.MkdirAll(filepath.Dir(repoCopy), 0755); err != nil {
			t.Fatalf("failed to create repo dir: %v", err)
		}
		if err := os.WriteFile(repoCopy, []byte("from repo"), 0644); err != nil {
			t.Fatalf("failed to create repo copy: %v", err)
		}

		livePath := filepath.Join(live, "deep", "nested", ".bashrc")
		result, err := s.Restore("shell", []string{livePath})
		if err != nil {
			t.Fatalf("Restore failed: %v", err)
		}

		if len(result.Restored) != 1 {
			t.Fatalf("Restored = %v, want one entry", result.Restored)
		}
		target, err := os.Readlink(livePath)
		if err != nil {
			t.Fatalf("live path should be a symlink: %v", err)
		}
		if target != repoCopy {
			t.Errorf("target = %q, want %q", target, repoCopy)
		}
	})

	t.Run("replaces foreign symlink", func(t *testing.T) {
		repo := setupRepo(t)
		live := t.TempDir()
		s := newTestSyncer(t, repo)

		repoCopy := filepath.Join(repo, "shell", ".profile")
		if err := os.MkdirAll(filepath.Dir(repoCopy), 0755); err != nil {
			t.Fatalf("failed to create repo dir: %v", err)
		}
		if err := os.WriteFile(repoCopy, []byte("canonical"), 0644); err != nil {
			t.Fatalf("failed to create repo copy: %v", err)
		}

		livePath := filepath.Join(live, ".profile")
		foreign := filepath.Join(live, "elsewhere")
		if err := os.WriteFile(foreign, []byte("other"), 0644); err != nil {
			t.Fatalf("failed to create foreign target: %v", err)
		}
		if err := os.Symlink(foreign, livePath); err != nil {
			t.Fatalf("failed to create foreign symlink: %v", err)
		}

		result, err := s.Restore("shell", []string{livePath})
		if err != nil {
			t.Fatalf("Restore failed: %v", err)
		}
		if len(result.Restored) != 1 {
			t.Fatalf("Restored = %v", result.Restored)
		}
		if len(result.BackedUp) != 0 {
			t.Errorf("replacing a foreign symlink needs no backup, got %v", result.BackedUp)
		}

		target, err := os.Readlink(livePath)
		if err != nil {
			t.Fatalf("live path should be a symlink: %v", err)
		}
		if target != repoCopy {
			t.Errorf("target = %q, want %q", target, repoCopy)
		}
	})

	t.Run("conflicting regular file is backed up, never deleted", func(t *testing.T) {
		repo := setupRepo(t)
		live := t.TempDir()
		s := newTestSyncer(t, repo)

		repoCopy := filepath.Join(repo, "shell", ".bashrc")
		if err := os.MkdirAll(filepath.Dir(repoCopy), 0755); err != nil {
			t.Fatalf("failed to create repo dir: %v", err)
		}
		if err := os.WriteFile(repoCopy, []byte("canonical"), 0644); err != nil {
			t.Fatalf("failed to create repo copy: %v", err)
		}

		livePath := filepath.Join(live, ".bashrc")
		if err := os.WriteFile(livePath, []byte("X"), 0644); err != nil {
			t.Fatalf("failed to create conflicting file: %v", err)
		}

		result, err := s.Restore("shell", []string{livePath})
		if err != nil {
			t.Fatalf("Restore failed: %v", err)
		}

		wantBackup := livePath + ".orig.20240501-120000"
		if len(result.BackedUp) != 1 || result.BackedUp[0] != wantBackup {
			t.Fatalf("BackedUp = %v, want [%s]", result.BackedUp, wantBackup)
		}

		content, err := os.ReadFile(wantBackup)
		if err != nil {
			t.Fatalf("backup missing: %v", err)
		}
		if string(content) != "X" {
			t.Errorf("backup content = %q, want %q", content, "X")
		}

		target, err := os.Readlink(livePath)
		if err != nil {
			t.Fatalf("live path should be a symlink: %v", err)
		}
		if target != repoCopy {
			t.Errorf("target = %q, want %q", target, repoCopy)
		}
	})

	t.Run("missing repository root is fatal", func(t *testing.T) {
		s := newTestSyncer(t, filepath.Join(t.TempDir(), "no-repo"))
		if _, err := s.Restore("shell", []string{"/tmp/whatever"}); err == nil {
			t.Error("Restore should fail when the repository root is missing")
		}
	})

	t.Run("untracked path is skipped with a warning", func(t *testing.T) {
		repo := setupRepo(t)
		s := newTestSyncer(t, repo)

		missing := filepath.Join(t.TempDir(), "nothing.conf")
		result, err := s.Restore("misc", []string{missing})
		if err != nil {
			t.Fatalf("Restore failed: %v", err)
		}
		if len(result.Missing) != 1 {
			t.Errorf("Missing = %v, want one entry", result.Missing)
		}
	})
}

func TestSyncer_RoundTripIdempotence(t *testing.T) {
	// Restore, Adopt, Restore again: the second Restore finds every entry
	// linked and makes no filesystem changes and no commits.
	repo := setupRepo(t)
	live := t.TempDir()
	s := newTestSyncer(t, repo)

	bashrc := filepath.Join(live, ".bashrc")
	if err := os.WriteFile(bashrc, []byte("X"), 0644); err != nil {
		t.Fatalf("failed to create live file: %v", err)
	}
	profile := filepath.Join(live, ".profile")
	if err := os.WriteFile(profile, []byte("Y"), 0644); err != nil {
		t.Fatalf("failed to create live file: %v", err)
	}

	paths := []string{bashrc, profile}

	// First pass adopts both files.
	first, err := s.Adopt("shell", paths)
	if err != nil {
		t.Fatalf("Adopt failed: %v", err)
	}
	if len(first.Adopted) != 2 {
		t.Fatalf("Adopted = %v, want both paths", first.Adopted)
	}
	commitsAfterAdopt := gitCommitCount(t, repo)

	// Restore finds everything linked.
	restored, err := s.Restore("shell", paths)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if len(restored.Restored) != 0 || len(restored.BackedUp) != 0 {
		t.Errorf("second pass should change nothing, got %+v", restored)
	}

	// Adopt again: nothing adoptable, no new commits.
	again, err := s.Adopt("shell", paths)
	if err != nil {
		t.Fatalf("second Adopt failed: %v", err)
	}
	if len(again.Adopted) != 0 || again.Committed {
		t.Errorf("second Adopt should be a no-op, got %+v", again)
	}
	if got := gitCommitCount(t, repo); got != commitsAfterAdopt {
		t.Errorf("commit count changed from %d to %d", commitsAfterAdopt, got)
	}

	// Content is stable through the round trip.
	content, err := os.ReadFile(bashrc)
	if err != nil {
		t.Fatalf("failed to read through symlink: %v", err)
	}
	if string(content) != "X" {
		t.Errorf("content = %q, want %q", content, "X")
	}
}

func TestSyncer_Classify(t *testing.T) {
	repo := setupRepo(t)
	live := t.TempDir()
	s := newTestSyncer(t, repo)

	repoCopy := filepath.Join(repo, "shell", ".bashrc")
	if err := os.MkdirAll(filepath.Dir(repoCopy), 0755); err != nil {
		t.Fatalf("failed to create repo dir: %v", err)
	}
	if err := os.WriteFile(repoCopy, []byte("canonical"), 0644); err != nil {
		t.Fatalf("failed to create repo copy: %v", err)
	}

	t.Run("linked", func(t *testing.T) {
		livePath := filepath.Join(live, ".bashrc")
		if err := os.Symlink(repoCopy, livePath); err != nil {
			t.Fatalf("failed to link: %v", err)
		}
		defer os.Remove(livePath)

		entry, err := s.classify("shell", livePath)
		if err != nil {
			t.Fatalf("classify failed: %v", err)
		}
		if entry.State != StateLinked {
			t.Errorf("state = %v, want linked", entry.State)
		}
	})

	t.Run("restorable with backup", func(t *testing.T) {
		livePath := filepath.Join(live, ".bashrc")
		if err := os.WriteFile(livePath, []byte("local"), 0644); err != nil {
			t.Fatalf("failed to create file: %v", err)
		}
		defer os.Remove(livePath)

		entry, err := s.classify("shell", livePath)
		if err != nil {
			t.Fatalf("classify failed: %v", err)
		}
		if entry.State != StateRestorable || !entry.NeedsBackup {
			t.Errorf("entry = %+v, want restorable with backup", entry)
		}
	})

	t.Run("adoptable", func(t *testing.T) {
		livePath := filepath.Join(live, ".vimrc")
		if err := os.WriteFile(livePath, []byte("set nu"), 0644); err != nil {
			t.Fatalf("failed to create file: %v", err)
		}
		defer os.Remove(livePath)

		entry, err := s.classify("shell", livePath)
		if err != nil {
			t.Fatalf("classify failed: %v", err)
		}
		if entry.State != StateAdoptable {
			t.Errorf("state = %v, want adoptable", entry.State)
		}
	})

	t.Run("untracked", func(t *testing.T) {
		entry, err := s.classify("shell", filepath.Join(live, ".nothing"))
		if err != nil {
			t.Fatalf("classify failed: %v", err)
		}
		if entry.State != StateUntracked {
			t.Errorf("state = %v, want untracked", entry.State)
		}
	})

	t.Run("relative symlink target still counts as linked", func(t *testing.T) {
		livePath := filepath.Join(live, ".bashrc")
		relTarget, err := filepath.Rel(live, repoCopy)
		if err != nil {
			t.Fatalf("failed to compute relative target: %v", err)
		}
		if err := os.Symlink(relTarget, livePath); err != nil {
			t.Fatalf("failed to create relative link: %v", err)
		}
		defer os.Remove(livePath)

		entry, err := s.classify("shell", livePath)
		if err != nil {
			t.Fatalf("classify failed: %v", err)
		}
		if entry.State != StateLinked {
			t.Errorf("state = %v, want linked", entry.State)
		}
	})
}
