package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the user-editable settings from <root>/config.yaml.
// Every field can be overridden by an environment variable or a flag;
// precedence is flag > environment > file.
type Config struct {
	// UnitsDir is the root of the unit catalog (phase directories).
	UnitsDir string `yaml:"unitsDir"`

	// RepoRoot is the version-controlled configuration repository.
	RepoRoot string `yaml:"repoRoot"`

	// LogMode is the default log mode (full, minimal, quiet).
	LogMode string `yaml:"logMode"`

	// LogLevel is the default log level (DEBUG, INFO, WARNING, ERROR).
	LogLevel string `yaml:"logLevel"`
}

// Load reads the config file at path. A missing file is not an error;
// an empty Config is returned so flags and environment still apply.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// Resolve returns the effective value among flag, environment and file,
// in that order of precedence.
func Resolve(flagValue, envName, fileValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(envName); v != "" {
		return v
	}
	return fileValue
}
