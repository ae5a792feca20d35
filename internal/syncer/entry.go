package syncer

import (
	"fmt"
	"os"
	"path/filepath"
)

// EntryState is the reconciliation state of one config entry, computed
// from two lstats. One tagged classification replaces separate
// pre-install / post-install / generic code paths.
type EntryState int

const (
	// StateLinked means livePath is a symlink to repoPath. Nothing to do.
	StateLinked EntryState = iota

	// StateAdoptable means livePath is a regular file or directory and the
	// repository holds no copy yet. Adopt moves it into the repository.
	StateAdoptable

	// StateRestorable means the repository holds a copy but livePath is
	// absent, a foreign symlink, or a conflicting regular file. Restore
	// (re)creates the symlink.
	StateRestorable

	// StateUntracked means neither side exists. Logged and skipped.
	StateUntracked
)

// String returns the state name for log records.
func (s EntryState) String() string {
	switch s {
	case StateLinked:
		return "linked"
	case StateAdoptable:
		return "adoptable"
	case StateRestorable:
		return "restorable"
	case StateUntracked:
		return "untracked"
	}
	return "unknown"
}

// ConfigEntry is a tracked (repository copy, live path) pair. Entries are
// transient: they carry no identity beyond the paths themselves and are
// reclassified on every sync invocation.
type ConfigEntry struct {
	// Category is the software category (repository subdirectory).
	Category string

	// LivePath is the absolute path in the live filesystem.
	LivePath string

	// RepoPath is repoRoot/category/basename(livePath).
	RepoPath string

	// State is the computed reconciliation state.
	State EntryState

	// NeedsBackup is set when a regular file occupies LivePath while the
	// repository already holds a copy; the conflict rule renames it aside
	// before linking.
	NeedsBackup bool
}

// classify computes the entry for one live path.
func (s *Syncer) classify(category, livePath string) (ConfigEntry, error) {
	entry := ConfigEntry{
		Category: category,
		LivePath: livePath,
		RepoPath: filepath.Join(s.repoRoot, category, filepath.Base(livePath)),
	}

	repoExists, err := s.fs.Exists(entry.RepoPath)
	if err != nil {
		return entry, fmt.Errorf("failed to check repository copy %s: %w", entry.RepoPath, err)
	}

	liveInfo, err := s.fs.Lstat(livePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return entry, fmt.Errorf("failed to stat %s: %w", livePath, err)
		}
		// Live side absent.
		if repoExists {
			entry.State = StateRestorable
		} else {
			entry.State = StateUntracked
		}
		return entry, nil
	}

	if liveInfo.Mode()&os.ModeSymlink != 0 {
		target, err := s.fs.Readlink(livePath)
		if err != nil {
			return entry, fmt.Errorf("failed to read symlink %s: %w", livePath, err)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(livePath), target)
		}
		if filepath.Clean(target) == filepath.Clean(entry.RepoPath) {
			entry.State = StateLinked
			return entry, nil
		}
		// Foreign symlink: restorable if we hold a copy, otherwise there is
		// nothing to reconcile against.
		if repoExists {
			entry.State = StateRestorable
		} else {
			entry.State = StateUntracked
		}
		return entry, nil
	}

	// Regular file or directory.
	if repoExists {
		entry.State = StateRestorable
		entry.NeedsBackup = true
	} else {
		entry.State = StateAdoptable
	}
	return entry, nil
}
