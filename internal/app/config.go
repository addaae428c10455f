package app

import (
	"errors"
	"os"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the optional per-workspace settings document. The build
// file describes what to build; this file only tunes how the tool runs.
const ConfigFileName = "planforge.toml"

// Config holds everything an App instance needs to run.
type Config struct {
	BuildFile string `toml:"build-file"`
	Target    string `toml:"target"`

	LogFormat string `toml:"log-format"`
	LogLevel  string `toml:"log-level"`
	Workers   int    `toml:"workers"`
	CacheSize int    `toml:"cache-size"`
}

// NewConfig validates a config and fills defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.BuildFile == "" {
		return nil, errors.New("BuildFile is a required configuration field and cannot be empty")
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &cfg, nil
}

// LoadConfigFile reads settings from a planforge.toml, if present. A missing
// file is not an error; flags fill the rest.
func LoadConfigFile(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
