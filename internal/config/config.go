package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config represents the service configuration
type Config struct {
	Host          string             `mapstructure:"host" yaml:"host"`
	Port          int                `mapstructure:"port" yaml:"port"`
	HTTPWorkers   int                `mapstructure:"http_workers" yaml:"http_workers"`
	DataDir       string             `mapstructure:"data_dir" yaml:"data_dir"`
	GitExecutable string             `mapstructure:"git_executable" yaml:"git_executable"`
	ZigExecutable string             `mapstructure:"zig_executable" yaml:"zig_executable"`
	ZigCacheDir   string             `mapstructure:"zig_cache_dir" yaml:"zig_cache_dir"`
	PreloadFile   string             `mapstructure:"preload_file" yaml:"preload_file"`
	ResolveCache  ResolveCacheConfig `mapstructure:"resolve_cache" yaml:"resolve_cache"`
	Logging       LoggingConfig      `mapstructure:"logging" yaml:"logging"`
}

// ResolveCacheConfig contains settings for the latest-version resolution cache
type ResolveCacheConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Directory string        `mapstructure:"directory" yaml:"directory"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Validate validates the configuration and applies fallbacks for values
// the service cannot run with
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.HTTPWorkers < 1 {
		c.HTTPWorkers = DefaultHTTPWorkers
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.GitExecutable == "" {
		c.GitExecutable = DefaultGitExecutable
	}
	if c.ZigExecutable == "" {
		c.ZigExecutable = DefaultZigExecutable
	}
	if c.ResolveCache.TTL < time.Minute {
		c.ResolveCache.TTL = DefaultResolveCacheTTL
	}
	return nil
}

// ListenAddr returns the host:port pair the server binds to
func (c *Config) ListenAddr() string {
	host := c.Host
	if host == "" {
		host = DefaultHost
	}
	return net.JoinHostPort(host, strconv.Itoa(c.Port))
}
