package extension

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{})
	assert.Equal(t, 5*time.Second, cfg.EntitlementCacheTTL)
	assert.Equal(t, 5*time.Second, cfg.PluginTimeout)
	assert.Equal(t, "entitle:invalidations", cfg.Redis.Channel)
	assert.False(t, cfg.DisableAdvisoryCounting)

	cfg = mergeWithDefaults(Config{EntitlementCacheTTL: time.Second})
	assert.Equal(t, time.Second, cfg.EntitlementCacheTTL)
}

func TestMergeConfigurations(t *testing.T) {
	yamlCfg := Config{
		EntitlementCacheTTL: 2 * time.Second,
		CatalogPath:         "/etc/entitle/catalog.yaml",
	}
	programmatic := Config{
		DisableMigrate:      true,
		EntitlementCacheTTL: 10 * time.Second,
		CatalogPath:         "ignored.yaml",
		PluginTimeout:       time.Second,
		Redis:               RedisConfig{Addr: "localhost:6379"},
	}

	cfg := mergeConfigurations(yamlCfg, programmatic)
	assert.True(t, cfg.DisableMigrate)
	assert.Equal(t, 2*time.Second, cfg.EntitlementCacheTTL)
	assert.Equal(t, "/etc/entitle/catalog.yaml", cfg.CatalogPath)
	assert.Equal(t, time.Second, cfg.PluginTimeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "entitle:invalidations", cfg.Redis.Channel)
}

func TestBuildEngineOptsRejectsMissingCatalog(t *testing.T) {
	e := New(WithCatalogPath("/nonexistent/catalog.yaml"))
	e.config = mergeWithDefaults(e.config)

	_, err := e.buildEngineOpts()
	assert.Error(t, err)
}
