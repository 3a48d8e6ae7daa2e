// Package config implements TOML configuration loading and
// platform-specific path resolution for fmcloud-go. Overrides apply in
// the order defaults -> config file -> environment -> CLI flags, so a
// flag always wins.
package config

// Config is the top-level structure parsed from config.toml.
type Config struct {
	// Host is the service root, e.g. "https://example.account.filemaker-cloud.com".
	Host string `toml:"host"`

	// Database is the hosted database name appended to the OData path.
	Database string `toml:"database"`

	// Username is the FMID account used for sign-in. The password is
	// never stored in the config file; it comes from FMCLOUD_PASSWORD
	// or an interactive prompt.
	Username string `toml:"username"`

	// SessionFile overrides where the cached session is persisted.
	SessionFile string `toml:"session_file"`

	// PoolConfigURL overrides the user pool descriptor endpoint.
	// Only useful for testing against a mock identity stack.
	PoolConfigURL string `toml:"pool_config_url"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		SessionFile: DefaultSessionPath(),
		LogLevel:    "info",
	}
}

// EnvOverrides carries the recognized environment variables.
type EnvOverrides struct {
	Host     string
	Database string
	Username string
}
