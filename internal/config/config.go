package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/plandeck/plandeck/internal/apperr"
)

// Config carries the process-level settings for the backend core.
// Values come from ~/.plandeck/config.toml; the PLANDECK_DB and
// PLANDECK_LOG environment variables override the file.
type Config struct {
	DatabasePath string `toml:"database_path"`
	// LogUseCases enables the slog use-case observer on every service.
	LogUseCases bool `toml:"log_use_cases"`
	// LogPath receives use-case telemetry; empty means stderr.
	LogPath string `toml:"log_path"`
}

func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		DatabasePath: filepath.Join(homeDir, ".plandeck", "plandeck.db"),
		LogUseCases:  true,
	}
}

func PlandeckDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".plandeck"), nil
}

func ConfigPath() (string, error) {
	if p := os.Getenv("PLANDECK_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := PlandeckDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file, creating it with defaults on first run,
// then applies environment overrides.
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}
		if err := Save(cfg, configPath); err != nil {
			return nil, err
		}
	} else {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, apperr.Config("parsing %s: %v", configPath, err)
		}
	}

	if p := os.Getenv("PLANDECK_DB"); p != "" {
		cfg.DatabasePath = p
	}
	if p := os.Getenv("PLANDECK_LOG"); p != "" {
		cfg.LogPath = p
		cfg.LogUseCases = true
	}

	cfg.DatabasePath = expandPath(cfg.DatabasePath)
	cfg.LogPath = expandPath(cfg.LogPath)

	if cfg.DatabasePath == "" {
		return nil, apperr.Config("database_path must not be empty")
	}
	return cfg, nil
}

func Save(cfg *Config, configPath string) error {
	f, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
