// Package config loads the per-workspace configuration file. Missing files
// and missing keys fall back to defaults, so a workspace works with no config
// at all.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/adalundhe/agentvc/core/model"
)

// Config is the workspace configuration, stored as YAML under the project
// metadata directory.
type Config struct {
	Watcher WatcherConfig `yaml:"watcher"`
	Server  ServerConfig  `yaml:"server"`
	Agent   AgentConfig   `yaml:"agent"`
}

type WatcherConfig struct {
	// Debounce is the quiet period before buffered events flush.
	Debounce time.Duration `yaml:"debounce"`

	// IgnorePatterns are substring-matched against root-relative paths.
	IgnorePatterns []string `yaml:"ignore_patterns"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
}

type AgentConfig struct {
	ID string `yaml:"id"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Watcher: WatcherConfig{
			Debounce:       500 * time.Millisecond,
			IgnorePatterns: model.DefaultIgnorePatterns(),
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:3030",
		},
		Agent: AgentConfig{
			ID: "agentvc",
		},
	}
}

// Load reads the config at path, merging defaults under any missing values.
// A missing file yields the defaults without error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the config as YAML to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Watcher.Debounce <= 0 {
		c.Watcher.Debounce = defaults.Watcher.Debounce
	}
	if len(c.Watcher.IgnorePatterns) == 0 {
		c.Watcher.IgnorePatterns = defaults.Watcher.IgnorePatterns
	}
	if c.Server.Listen == "" {
		c.Server.Listen = defaults.Server.Listen
	}
	if c.Agent.ID == "" {
		c.Agent.ID = defaults.Agent.ID
	}
}
