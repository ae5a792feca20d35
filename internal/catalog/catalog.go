// Package catalog discovers the ordered phases and units of a
// provisioning catalog.
//
// The catalog is a directory tree: one subdirectory per phase, named
// with a sortable key ("00-core", "10-desktop"), each containing unit
// artifacts: executable files ordered lexically by name. A unit may
// carry a YAML sidecar manifest declaring that it requires a reboot and
// which configuration paths to synchronize around its execution.
//
// Discovery is deterministic and side-effect-free.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danieljhkim/rig/internal/fsops"
)

// ConfigSpec names the configuration entries to reconcile around a unit.
type ConfigSpec struct {
	// Category is the software category (repository subdirectory).
	Category string `yaml:"category"`

	// Paths are the live filesystem paths tracked for this category.
	Paths []string `yaml:"paths"`
}

// Manifest is a unit's optional sidecar declaration. The reboot
// requirement is decided here, at catalog-authoring time, instead of by
// scanning the artifact for a marker string.
type Manifest struct {
	// RequiresReboot declares that the machine must reboot after the unit.
	RequiresReboot bool `yaml:"requiresReboot"`

	// Config, if present, wraps the unit with restore/adopt of the named paths.
	Config *ConfigSpec `yaml:"config,omitempty"`
}

// Unit is one executable step within a phase.
type Unit struct {
	// Phase is the phase key this unit belongs to.
	Phase string

	// Name is the unit's file name, unique within the phase.
	Name string

	// Path is the absolute path to the executable artifact.
	Path string

	// Manifest holds the sidecar declaration (zero value if absent).
	Manifest Manifest
}

// Ref returns the unit's (phase, name) identity as a display string.
func (u Unit) Ref() string {
	return u.Phase + "/" + u.Name
}

// Catalog enumerates phases and units.
type Catalog interface {
	// ListPhases returns the ordered phase keys.
	ListPhases() ([]string, error)

	// ListUnits returns the ordered units of one phase.
	ListUnits(phase string) ([]Unit, error)
}

// DirCatalog implements Catalog over a units directory.
type DirCatalog struct {
	fs   fsops.FS
	root string
}

// NewDirCatalog creates a catalog rooted at the units directory.
func NewDirCatalog(fs fsops.FS, root string) *DirCatalog {
	return &DirCatalog{fs: fs, root: root}
}

// ListPhases returns the phase directory names sorted lexically.
func (c *DirCatalog) ListPhases() ([]string, error) {
	entries, err := c.fs.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read units directory %s: %w", c.root, err)
	}

	var phases []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		phases = append(phases, entry.Name())
	}

	if len(phases) == 0 {
		return nil, fmt.Errorf("no phases found in %s", c.root)
	}

	return phases, nil
}

// ListUnits returns the executable units of phase, sorted lexically.
// YAML sidecars, dotfiles and non-executable files are not units.
func (c *DirCatalog) ListUnits(phase string) ([]Unit, error) {
	phaseDir := filepath.Join(c.root, phase)

	entries, err := c.fs.ReadDir(phaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read phase %s: %w", phase, err)
	}

	var units []Unit
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat unit %s: %w", name, err)
		}
		if info.Mode()&0111 == 0 {
			continue
		}

		unit := Unit{
			Phase: phase,
			Name:  name,
			Path:  filepath.Join(phaseDir, name),
		}

		manifest, err := c.loadManifest(phaseDir, name)
		if err != nil {
			return nil, err
		}
		unit.Manifest = manifest

		units = append(units, unit)
	}

	if len(units) == 0 {
		return nil, fmt.Errorf("phase %s contains no executable units", phase)
	}

	return units, nil
}

// loadManifest reads the sidecar manifest for a unit, if one exists.
// For "10-base.sh" the sidecar is "10-base.yaml".
func (c *DirCatalog) loadManifest(phaseDir, unitName string) (Manifest, error) {
	base := strings.TrimSuffix(unitName, filepath.Ext(unitName))
	path := filepath.Join(phaseDir, base+".yaml")

	data, err := c.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, nil
		}
		return Manifest{}, fmt.Errorf("failed to read manifest for %s: %w", unitName, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("malformed manifest for %s: %w", unitName, err)
	}
	if m.Config != nil && m.Config.Category == "" {
		return Manifest{}, fmt.Errorf("manifest for %s declares config without a category", unitName)
	}

	return m, nil
}
