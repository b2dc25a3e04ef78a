package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Aidan3445/castaway/internal/freshness"
)

// Config is the companion's file-based configuration. Everything has a
// working default so the binary runs with no config file at all.
type Config struct {
	Remote struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"remote"`
	Cache struct {
		SnapshotPath string `yaml:"snapshot_path"`
	} `yaml:"cache"`
	Freshness freshness.TableConfig `yaml:"freshness"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadConfig reads the yaml config when present; a missing file yields
// the zero Config and the defaults take over. Env vars win over yaml.
func loadConfig(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Remote.BaseURL = getEnv("REMOTE_BASE_URL", firstNonEmpty(config.Remote.BaseURL, "http://localhost:8082"))
	config.Cache.SnapshotPath = getEnv("CACHE_SNAPSHOT_PATH", firstNonEmpty(config.Cache.SnapshotPath, "castaway-cache.json"))
	return &config, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
