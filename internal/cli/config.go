package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds settings read from certgen.toml. Flags override config
// values, which override the built-in defaults.
type Config struct {
	FontDir    string `toml:"font_dir"`
	OutputDir  string `toml:"output_dir"`
	HistoryDir string `toml:"history_dir"`
	Workers    int    `toml:"workers"`
	Quality    int    `toml:"quality"`
	Formats    string `toml:"formats"`
	BudgetMiB  int    `toml:"budget_mib"`
	CooldownMs int    `toml:"cooldown_ms"`

	Server ServerConfig `toml:"server"`
}

// ServerConfig holds settings for the serve command.
type ServerConfig struct {
	Addr        string `toml:"addr"`
	ArtifactDir string `toml:"artifact_dir"`

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		OutputDir: "output",
		Formats:   "jpg",
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// LoadConfig reads certgen.toml from the given path, or from the default
// config directory when path is empty. A missing file is not an error; the
// defaults are returned.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		dir, err := configDir()
		if err != nil {
			return cfg, nil
		}
		path = filepath.Join(dir, appName+".toml")
	}

	if _, err := os.Stat(path); err != nil {
		if explicit {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
