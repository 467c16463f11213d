package entitle

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/xraph/entitle/catalog"
	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/plugin"
	"github.com/xraph/entitle/store"
)

// Engine is the entitlement and quota-enforcement engine.
type Engine struct {
	store   store.Store
	catalog *catalog.Catalog
	cache   *entitlement.Cache
	plugins *plugin.Registry
	logger  *slog.Logger
	now     func() time.Time

	// Miss collapsing for concurrent resolves of one tenant.
	resolves singleflight.Group

	// Configuration
	entitlementCacheTTL time.Duration
	advisoryCounting    bool
	migrateOnStart      bool
}

// New creates a new Engine backed by s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:               s,
		catalog:             catalog.Default(),
		plugins:             plugin.NewRegistry(),
		logger:              slog.Default(),
		now:                 time.Now,
		entitlementCacheTTL: entitlement.DefaultCacheTTL,
		advisoryCounting:    true,
		migrateOnStart:      true,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.cache == nil {
		e.cache = entitlement.NewCache(e.entitlementCacheTTL, entitlement.WithClock(e.now))
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithCatalog replaces the built-in plan and module catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(e *Engine) {
		if c != nil {
			e.catalog = c
		}
	}
}

// WithEntitlementCacheTTL sets the snapshot cache TTL. Ignored when
// WithCache supplies a cache.
func WithEntitlementCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.entitlementCacheTTL = ttl
	}
}

// WithCache supplies the snapshot cache.
func WithCache(c *entitlement.Cache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithClock sets the time source used for snapshot timestamps, billing
// month boundaries and cache expiry.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithAdvisoryCounting controls whether checks against unlimited resources
// still count usage. The count is informational and never denies.
func WithAdvisoryCounting(enabled bool) Option {
	return func(e *Engine) {
		e.advisoryCounting = enabled
	}
}

// WithMigrateOnStart controls whether Start runs store migrations.
func WithMigrateOnStart(enabled bool) Option {
	return func(e *Engine) {
		e.migrateOnStart = enabled
	}
}

// WithPluginTimeout bounds each plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.plugins.WithTimeout(d)
	}
}

// Start migrates the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if e.migrateOnStart {
		if err := e.store.Migrate(ctx); err != nil {
			return err
		}
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("entitle started",
		"cache_ttl", e.cache.TTL(),
		"advisory_counting", e.advisoryCounting,
		"plugins", e.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (e *Engine) Stop() error {
	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// Ping checks the store.
func (e *Engine) Ping(ctx context.Context) error {
	return e.store.Ping(ctx)
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Catalog returns the plan and module catalog in use.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// Cache returns the snapshot cache.
func (e *Engine) Cache() *entitlement.Cache { return e.cache }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }
