// Package config loads the small YAML document a Treasury-backed host
// program hands to treasury.Open, log.Init, and Registry.LoadImportersDir
// at startup.
package config

import (
	"fmt"
	"os"

	"github.com/cuemby/treasury/pkg/log"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk shape of a Treasury host program's configuration.
type Config struct {
	// Root is the registry root directory.
	Root string `yaml:"root"`
	// Overwrite controls whether New is allowed to replace an existing
	// manifest; ignored when the registry is opened rather than created.
	Overwrite bool `yaml:"overwrite"`

	Log struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"log"`

	// ImporterDirs are directories the host program loads importer
	// plugins from and passes to Registry.LoadImportersDir.
	ImporterDirs []string `yaml:"importerDirs"`
}

// Load reads and parses the YAML document at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	if cfg.Root == "" {
		return nil, fmt.Errorf("config: %q: root is required", path)
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = string(log.InfoLevel)
	}

	return &cfg, nil
}

// LogConfig adapts the parsed log section to log.Config.
func (c *Config) LogConfig() log.Config {
	return log.Config{
		Level:      log.Level(c.Log.Level),
		JSONOutput: c.Log.JSON,
	}
}
