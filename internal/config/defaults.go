package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default values
const (
	DefaultHost        = "::"
	DefaultPort        = 8080
	DefaultHTTPWorkers = 4

	DefaultDataDir       = "data"
	DefaultGitExecutable = "git"
	DefaultZigExecutable = "zig"

	DefaultResolveCacheEnabled = true
	DefaultResolveCacheTTL     = 10 * time.Minute

	DefaultLogLevel  = "info"
	DefaultLogFormat = "pretty"
)

// ConfigDir returns the config directory path
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zigdocs"
	}
	return filepath.Join(home, ".zigdocs")
}

// ResolveCacheDir returns the default resolution cache directory
func ResolveCacheDir() string {
	return filepath.Join(ConfigDir(), "resolve-cache")
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Host:          DefaultHost,
		Port:          DefaultPort,
		HTTPWorkers:   DefaultHTTPWorkers,
		DataDir:       DefaultDataDir,
		GitExecutable: DefaultGitExecutable,
		ZigExecutable: DefaultZigExecutable,
		ResolveCache: ResolveCacheConfig{
			Enabled:   DefaultResolveCacheEnabled,
			TTL:       DefaultResolveCacheTTL,
			Directory: ResolveCacheDir(),
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
