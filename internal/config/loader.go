package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration from file, environment, and defaults
// Uses the global viper instance to access CLI flag bindings
func Load() (*Config, error) {
	v := viper.GetViper()
	return load(v)
}

// LoadWithViper loads configuration from a fresh viper instance, ignoring
// any CLI flag bindings. Useful for tests and embedding.
func LoadWithViper() (*Config, *viper.Viper, error) {
	v := viper.New()
	cfg, err := load(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// Search paths apply only when no config file was set explicitly
	// (--config); SetConfigName would otherwise clear that file.
	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
		v.AddConfigPath(".")
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Environment variables (ZIGDOCS_*)
	v.SetEnvPrefix("ZIGDOCS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("host", DefaultHost)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("http_workers", DefaultHTTPWorkers)

	v.SetDefault("data_dir", DefaultDataDir)
	v.SetDefault("git_executable", DefaultGitExecutable)
	v.SetDefault("zig_executable", DefaultZigExecutable)
	v.SetDefault("zig_cache_dir", "")
	v.SetDefault("preload_file", "")

	v.SetDefault("resolve_cache.enabled", DefaultResolveCacheEnabled)
	v.SetDefault("resolve_cache.ttl", DefaultResolveCacheTTL)
	v.SetDefault("resolve_cache.directory", ResolveCacheDir())

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)
}
