package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ConfigFileName is the expected configuration file name
const ConfigFileName = "voxbridge.jsonc"

// Load reads voxbridge.jsonc from configDir, layering file values over the
// built-in defaults. A missing file is not an error; defaults apply.
func Load(configDir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(configDir, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := json.Unmarshal(StripJSONComments(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config in %s: %w", path, err)
	}

	return cfg, nil
}

// defaultConfigFile is written on first install so operators have a
// commented starting point to edit
const defaultConfigFile = `{
  // voxbridge configuration

  "server": {
    "port": 3000,
    "mount_path": "/bb-mcp"
  },

  "session": {
    "inactivity_timeout_seconds": 300,
    "ping_interval_seconds": 30, // 0 disables liveness probing
    "max_failed_pings": 3
  },

  "rate_limit": {
    "requests_per_second": 10,
    "burst": 20
  },

  "journal": {
    "enabled": true,
    "data_dir": "data",
    "retention_days": 30,
    "cleanup_schedule": "0 3 * * *"
  },

  "log_dir": "logs"
}
`

// WriteDefault creates the default config file in configDir if none exists.
// An existing file is never overwritten.
func WriteDefault(configDir string) error {
	path := filepath.Join(configDir, ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(defaultConfigFile), 0o644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}
