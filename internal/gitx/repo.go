// Package gitx wraps the git operations needed to capture adopted
// configuration files in the repository's history.
package gitx

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Git provides an abstraction for git repository operations.
type Git interface {
	// IsRepo reports whether root is inside a git repository.
	IsRepo(root string) bool

	// Add stages the given paths (relative to root).
	Add(root string, paths ...string) error

	// Commit records staged changes with the given message.
	Commit(root, message string) error
}

// RealGit implements Git using the git binary.
type RealGit struct{}

// NewRealGit creates a new RealGit.
func NewRealGit() *RealGit {
	return &RealGit{}
}

// IsRepo reports whether root is inside a git repository by walking up
// looking for a .git entry. .git can be a directory or a file (worktrees).
func (g *RealGit) IsRepo(root string) bool {
	absPath, err := filepath.Abs(root)
	if err != nil {
		return false
	}

	current := absPath
	for {
		gitDir := filepath.Join(current, ".git")
		if info, err := os.Stat(gitDir); err == nil {
			if info.IsDir() || info.Mode().IsRegular() {
				return true
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			return false
		}
		current = parent
	}
}

// Add stages the given paths.
func (g *RealGit) Add(root string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}

	args := append([]string{"add", "--"}, paths...)
	cmd := exec.Command("git", args...)
	cmd.Dir = root
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git add failed: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Commit records staged changes. A commit with nothing staged is an error,
// matching git's own behavior; callers only commit after staging adoptions.
func (g *RealGit) Commit(root, message string) error {
	cmd := exec.Command("git", "commit", "-m", message)
	cmd.Dir = root
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git commit failed: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
