// Package config loads the Kestrel configuration from defaults, TOML
// config files, and KESTREL_* environment variables, in that precedence
// order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the core Kestrel configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	KQL      KQLConfig      `mapstructure:"kql"`
	Schema   SchemaConfig   `mapstructure:"schema"`
}

// DatabaseConfig configures the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the query API server.
type ServerConfig struct {
	Port         int     `mapstructure:"port"`
	RateLimitRPS float64 `mapstructure:"rate_limit_rps"` // per-client request rate, 0 disables
}

// KQLConfig configures the query engine dialect and execution bounds.
type KQLConfig struct {
	// Operators is the enabled WHERE/FILTER operator set. The supported
	// operator set is an explicit configuration, not a hidden assumption.
	Operators []string `mapstructure:"operators"`
	// Strict aborts queries on the first failed semantic check.
	Strict bool `mapstructure:"strict"`
	// StringOrdering permits > < >= <= on string operands (default: off).
	StringOrdering bool `mapstructure:"string_ordering"`
	// DefaultLimit applies when a FIND carries no LIMIT (0 = unlimited).
	DefaultLimit int `mapstructure:"default_limit"`
	// MaxLimit caps any requested LIMIT (0 = no cap).
	MaxLimit int `mapstructure:"max_limit"`
	// TimeoutSeconds bounds each query execution (0 = no deadline).
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// SchemaConfig configures the schema registry.
type SchemaConfig struct {
	// File optionally points at a YAML file of additional schemas loaded
	// at startup.
	File string `mapstructure:"file"`
	// CacheTTLSeconds bounds how long validation results are cached.
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`
	// CacheMaxEntries bounds the validation cache size.
	CacheMaxEntries int `mapstructure:"cache_max_entries"`
}

var globalConfig *Config
var viperInstance *viper.Viper

// Load reads the Kestrel configuration using Viper.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViper()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	globalConfig = &config
	return globalConfig, nil
}

// GetViper returns the Viper instance for advanced configuration access.
func GetViper() *viper.Viper {
	return initViper()
}

// LoadWithViper loads configuration using a provided Viper instance.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config from %s: %w", configPath, err)
	}

	return &config, nil
}

// Reset clears the cached configuration (useful for testing).
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

// initViper initializes Viper with configuration sources and defaults.
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	v.SetEnvPrefix("KESTREL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if configPath := findProjectConfig(); configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		// Best effort; a missing or unreadable file falls back to defaults
		_ = v.ReadInConfig()
	}

	viperInstance = v
	return v
}

// findProjectConfig searches for kestrel.toml by walking up the directory
// tree. Returns the first config file found, or empty string if none.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(dir, "kestrel.toml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
