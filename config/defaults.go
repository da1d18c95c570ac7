package config

import (
	"github.com/spf13/viper"
)

// Server port constant.
const (
	DefaultServerPort = 8710
)

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "kestrel.db")

	// Server defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.rate_limit_rps", 25.0)

	// Query engine defaults. The operator set is deliberately explicit so
	// restricting the dialect is a config change, not a code change.
	v.SetDefault("kql.operators", []string{"=", "!=", "CONTAINS", ">", "<", ">=", "<="})
	v.SetDefault("kql.strict", false)
	v.SetDefault("kql.string_ordering", false)
	v.SetDefault("kql.default_limit", 100)
	v.SetDefault("kql.max_limit", 1000)
	v.SetDefault("kql.timeout_seconds", 30)

	// Schema registry defaults
	v.SetDefault("schema.cache_ttl_seconds", 300)
	v.SetDefault("schema.cache_max_entries", 4096)
}
