// Package syncer reconciles a version-controlled configuration
// repository with the live filesystem via symbolic links.
//
// Restore runs before a unit and links repository entries into their
// live locations; Adopt runs after and moves new live files into the
// repository, linking back. Both are idempotent: once every entry is
// linked, further invocations make no filesystem changes and no
// commits. User data is never deleted silently; a conflicting regular
// file is renamed aside before its path is linked.
package syncer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/danieljhkim/rig/internal/clock"
	"github.com/danieljhkim/rig/internal/fsops"
	"github.com/danieljhkim/rig/internal/gitx"
)

// backupTimeFormat stamps conflict backups: <path>.orig.<timestamp>.
const backupTimeFormat = "20060102-150405"

// Syncer is the config sync engine for one repository root.
type Syncer struct {
	fs       fsops.FS
	git      gitx.Git
	clock    clock.Clock
	logger   *slog.Logger
	repoRoot string
}

// New creates a Syncer. The repository root must be a pre-existing
// version-controlled directory; the syncer never initializes it.
func New(fs fsops.FS, git gitx.Git, clk clock.Clock, logger *slog.Logger, repoRoot string) *Syncer {
	return &Syncer{
		fs:       fs,
		git:      git,
		clock:    clk,
		logger:   logger,
		repoRoot: repoRoot,
	}
}

// RestoreResult reports what Restore changed.
type RestoreResult struct {
	// Restored lists live paths whose symlink was (re)created.
	Restored []string

	// BackedUp lists conflict backups created (full backup paths).
	BackedUp []string

	// Missing lists paths skipped because neither side exists.
	Missing []string
}

// AdoptResult reports what Adopt changed.
type AdoptResult struct {
	// Adopted lists live paths moved into the repository.
	Adopted []string

	// BackedUp lists the renamed originals (full backup paths).
	BackedUp []string

	// Missing lists paths skipped because neither side exists.
	Missing []string

	// Committed is true when the adoption was captured in history.
	Committed bool
}

// checkRepoRoot fails the whole sync call when the repository is absent.
func (s *Syncer) checkRepoRoot() error {
	info, err := s.fs.Stat(s.repoRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("repository root %s does not exist", s.repoRoot)
		}
		return fmt.Errorf("failed to stat repository root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("repository root %s is not a directory", s.repoRoot)
	}
	if !s.git.IsRepo(s.repoRoot) {
		// Sync still works against a plain directory, but adoptions
		// will not be captured in history.
		s.logger.Warn("repository root is not under version control", "root", s.repoRoot)
	}
	return nil
}

// Restore creates symlinks for every restorable entry of the category.
// Linked entries are untouched; untracked paths are logged and skipped.
func (s *Syncer) Restore(category string, livePaths []string) (*RestoreResult, error) {
	if err := s.checkRepoRoot(); err != nil {
		return nil, err
	}

	result := &RestoreResult{
		Restored: []string{},
		BackedUp: []string{},
		Missing:  []string{},
	}

	for _, livePath := range livePaths {
		entry, err := s.classify(category, livePath)
		if err != nil {
			return nil, err
		}

		switch entry.State {
		case StateLinked:
			s.logger.Debug("already linked", "category", category, "path", livePath)

		case StateUntracked:
			s.logger.Warn("path tracked by no side, skipping", "category", category, "path", livePath)
			result.Missing = append(result.Missing, livePath)

		case StateAdoptable:
			// Restore never moves live files into the repository.
			s.logger.Debug("live file not in repository, leaving for adopt", "category", category, "path", livePath)

		case StateRestorable:
			backup, err := s.link(entry)
			if err != nil {
				return nil, err
			}
			if backup != "" {
				result.BackedUp = append(result.BackedUp, backup)
			}
			result.Restored = append(result.Restored, livePath)
			s.logger.Info("restored symlink", "category", category, "path", livePath, "target", entry.RepoPath)
		}
	}

	return result, nil
}

// Adopt copies every adoptable entry of the category into the
// repository, renames the original aside as a timestamped backup,
// replaces it with a symlink, and commits the batch. This is the only
// operation that mutates repository history.
func (s *Syncer) Adopt(category string, livePaths []string) (*AdoptResult, error) {
	if err := s.checkRepoRoot(); err != nil {
		return nil, err
	}

	result := &AdoptResult{
		Adopted:  []string{},
		BackedUp: []string{},
		Missing:  []string{},
	}
	var adoptedNames []string

	for _, livePath := range livePaths {
		entry, err := s.classify(category, livePath)
		if err != nil {
			return nil, err
		}

		switch entry.State {
		case StateLinked, StateRestorable:
			s.logger.Debug("nothing to adopt", "category", category, "path", livePath, "state", entry.State.String())

		case StateUntracked:
			s.logger.Warn("path tracked by no side, skipping", "category", category, "path", livePath)
			result.Missing = append(result.Missing, livePath)

		case StateAdoptable:
			if err := s.fs.Copy(livePath, entry.RepoPath); err != nil {
				return nil, fmt.Errorf("failed to copy %s into repository: %w", livePath, err)
			}
			// The original is renamed aside, never deleted: if the copy
			// turns out bad the user's file is still on disk.
			backup := livePath + ".orig." + s.clock.Now().UTC().Format(backupTimeFormat)
			if err := s.fs.Rename(livePath, backup); err != nil {
				return nil, fmt.Errorf("failed to back up original %s: %w", livePath, err)
			}
			if err := s.fs.Symlink(entry.RepoPath, livePath); err != nil {
				return nil, fmt.Errorf("failed to link %s: %w", livePath, err)
			}

			result.Adopted = append(result.Adopted, livePath)
			result.BackedUp = append(result.BackedUp, backup)
			adoptedNames = append(adoptedNames, filepath.Base(livePath))
			s.logger.Info("adopted into repository", "category", category, "path", livePath, "repo", entry.RepoPath)
		}
	}

	if len(adoptedNames) > 0 {
		result.Committed = s.commitAdoption(category, adoptedNames)
	}

	return result, nil
}

// link creates the symlink for a restorable entry, backing up a
// conflicting regular file first. Returns the backup path, if any.
func (s *Syncer) link(entry ConfigEntry) (string, error) {
	if err := s.fs.MkdirAll(filepath.Dir(entry.LivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create parent directories for %s: %w", entry.LivePath, err)
	}

	backup := ""
	exists, err := s.fs.Exists(entry.LivePath)
	if err != nil {
		return "", fmt.Errorf("failed to check %s: %w", entry.LivePath, err)
	}
	if exists {
		if entry.NeedsBackup {
			backup = entry.LivePath + ".orig." + s.clock.Now().UTC().Format(backupTimeFormat)
			if err := s.fs.Rename(entry.LivePath, backup); err != nil {
				return "", fmt.Errorf("failed to back up %s: %w", entry.LivePath, err)
			}
			s.logger.Info("backed up conflicting file", "path", entry.LivePath, "backup", backup)
		} else {
			// Foreign symlink; replacing it loses no data.
			if err := s.fs.Remove(entry.LivePath); err != nil {
				return "", fmt.Errorf("failed to remove foreign symlink %s: %w", entry.LivePath, err)
			}
		}
	}

	if err := s.fs.Symlink(entry.RepoPath, entry.LivePath); err != nil {
		return "", fmt.Errorf("failed to link %s: %w", entry.LivePath, err)
	}

	return backup, nil
}

// commitAdoption stages and commits newly adopted files. A failed commit
// is a warning, not an error: the symlink state on disk is already
// correct even if history capture failed.
func (s *Syncer) commitAdoption(category string, names []string) bool {
	message := fmt.Sprintf("%s: adopt %s", category, strings.Join(names, ", "))

	if err := s.git.Add(s.repoRoot, category); err != nil {
		s.logger.Warn("failed to stage adopted files", "category", category, "error", err)
		return false
	}
	if err := s.git.Commit(s.repoRoot, message); err != nil {
		s.logger.Warn("failed to commit adopted files", "category", category, "error", err)
		return false
	}

	s.logger.Info("committed adoption", "category", category, "files", len(names))
	return true
}
