package extension

import "time"

// Config holds the entitle extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.entitle" or "entitle" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// EntitlementCacheTTL controls how long resolved snapshots are cached
	// in-process before re-reading the store (default: 5s).
	EntitlementCacheTTL time.Duration `json:"entitlement_cache_ttl" mapstructure:"entitlement_cache_ttl" yaml:"entitlement_cache_ttl"`

	// DisableAdvisoryCounting skips counting usage of unlimited resources.
	DisableAdvisoryCounting bool `json:"disable_advisory_counting" mapstructure:"disable_advisory_counting" yaml:"disable_advisory_counting"`

	// CatalogPath points to a YAML plan and module catalog. When empty the
	// built-in catalog is used.
	CatalogPath string `json:"catalog_path" mapstructure:"catalog_path" yaml:"catalog_path"`

	// PluginTimeout bounds each plugin hook call (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout"`

	// Redis enables cross-instance cache invalidation when Addr is set.
	Redis RedisConfig `json:"redis" mapstructure:"redis" yaml:"redis"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// RedisConfig configures the invalidation bus.
type RedisConfig struct {
	Addr     string `json:"addr" mapstructure:"addr" yaml:"addr"`
	Password string `json:"password" mapstructure:"password" yaml:"password"`
	DB       int    `json:"db" mapstructure:"db" yaml:"db"`
	Channel  string `json:"channel" mapstructure:"channel" yaml:"channel"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		EntitlementCacheTTL: 5 * time.Second,
		PluginTimeout:       5 * time.Second,
		Redis: RedisConfig{
			Channel: "entitle:invalidations",
		},
	}
}
