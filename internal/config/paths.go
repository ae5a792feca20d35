// Package config manages rig configuration and filesystem paths.
//
// Configuration includes the locations of rig data directories, which can
// be customized via environment variables. The default root is ~/.rig/
// containing state/ and logs/. The unit catalog directory and the config
// repository root live outside the data root and are resolved from flags,
// environment variables, or the optional config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains all the filesystem paths used by rig.
type Paths struct {
	// Root is the base directory for all rig data (default: ~/.rig)
	Root string

	// State is the directory holding the durable run state
	State string

	// Logs is the directory holding per-run execution logs
	Logs string

	// Config is the path to the optional config file
	Config string
}

// DefaultPaths returns the default paths for rig.
// Paths can be overridden with environment variables:
// - RIG_ROOT: Override the root directory
func DefaultPaths() (*Paths, error) {
	root := os.Getenv("RIG_ROOT")
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		root = filepath.Join(home, ".rig")
	}

	return &Paths{
		Root:   root,
		State:  filepath.Join(root, "state"),
		Logs:   filepath.Join(root, "logs"),
		Config: filepath.Join(root, "config.yaml"),
	}, nil
}

// EnsureDirectories creates all necessary directories if they don't exist.
func (p *Paths) EnsureDirectories() error {
	dirs := []string{
		p.Root,
		p.State,
		p.Logs,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
