package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// knownKeys are the valid top-level keys in the config file. Unknown
// keys are fatal; silently ignoring a typo in a config file leads to
// hard-to-debug behavior.
var knownKeys = map[string]bool{
	"host": true, "database": true, "username": true,
	"session_file": true, "pool_config_url": true, "log_level": true,
}

// Load reads and parses a TOML config file, rejecting unknown keys.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with defaults so first runs work without one.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// ReadEnvOverrides collects the recognized FMCLOUD_* environment variables.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		Host:     os.Getenv("FMCLOUD_HOST"),
		Database: os.Getenv("FMCLOUD_DATABASE"),
		Username: os.Getenv("FMCLOUD_USERNAME"),
	}
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment. CLI flags are applied by the
// command layer on top of the result.
func Resolve(configPath string, env EnvOverrides) (*Config, error) {
	path := configPath
	if path == "" {
		path = DefaultConfigPath()
	}

	cfg, err := LoadOrDefault(path)
	if err != nil {
		return nil, err
	}

	if env.Host != "" {
		cfg.Host = env.Host
	}

	if env.Database != "" {
		cfg.Database = env.Database
	}

	if env.Username != "" {
		cfg.Username = env.Username
	}

	return cfg, nil
}

// checkUnknownKeys fails on any key toml did not decode into Config.
func checkUnknownKeys(md *toml.MetaData) error {
	var unknown []string

	for _, key := range md.Undecoded() {
		name := key.String()
		if !knownKeys[name] {
			unknown = append(unknown, name)
		}
	}

	if len(unknown) == 0 {
		return nil
	}

	sort.Strings(unknown)

	return fmt.Errorf("unknown keys: %s", strings.Join(unknown, ", "))
}
