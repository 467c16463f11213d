package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/entitle/catalog"
	"github.com/xraph/entitle/credit"
	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/subscription"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so dispatch never type-asserts.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                    []OnInit
	onShutdown                []OnShutdown
	onEntitlementsResolved    []OnEntitlementsResolved
	onEntitlementsInvalidated []OnEntitlementsInvalidated
	onQuotaChecked            []OnQuotaChecked
	onQuotaExceeded           []OnQuotaExceeded
	onModuleChecked           []OnModuleChecked
	onModuleDenied            []OnModuleDenied
	onCreditsConsumed         []OnCreditsConsumed
	onCreditsInsufficient     []OnCreditsInsufficient
	onCreditsGranted          []OnCreditsGranted
	onSubscriptionChanged     []OnSubscriptionChanged
	onModuleChanged           []OnModuleChanged
	onStoreError              []OnStoreError
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	var hooks []string
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
		hooks = append(hooks, "OnInit")
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
		hooks = append(hooks, "OnShutdown")
	}
	if v, ok := p.(OnEntitlementsResolved); ok {
		r.onEntitlementsResolved = append(r.onEntitlementsResolved, v)
		hooks = append(hooks, "OnEntitlementsResolved")
	}
	if v, ok := p.(OnEntitlementsInvalidated); ok {
		r.onEntitlementsInvalidated = append(r.onEntitlementsInvalidated, v)
		hooks = append(hooks, "OnEntitlementsInvalidated")
	}
	if v, ok := p.(OnQuotaChecked); ok {
		r.onQuotaChecked = append(r.onQuotaChecked, v)
		hooks = append(hooks, "OnQuotaChecked")
	}
	if v, ok := p.(OnQuotaExceeded); ok {
		r.onQuotaExceeded = append(r.onQuotaExceeded, v)
		hooks = append(hooks, "OnQuotaExceeded")
	}
	if v, ok := p.(OnModuleChecked); ok {
		r.onModuleChecked = append(r.onModuleChecked, v)
		hooks = append(hooks, "OnModuleChecked")
	}
	if v, ok := p.(OnModuleDenied); ok {
		r.onModuleDenied = append(r.onModuleDenied, v)
		hooks = append(hooks, "OnModuleDenied")
	}
	if v, ok := p.(OnCreditsConsumed); ok {
		r.onCreditsConsumed = append(r.onCreditsConsumed, v)
		hooks = append(hooks, "OnCreditsConsumed")
	}
	if v, ok := p.(OnCreditsInsufficient); ok {
		r.onCreditsInsufficient = append(r.onCreditsInsufficient, v)
		hooks = append(hooks, "OnCreditsInsufficient")
	}
	if v, ok := p.(OnCreditsGranted); ok {
		r.onCreditsGranted = append(r.onCreditsGranted, v)
		hooks = append(hooks, "OnCreditsGranted")
	}
	if v, ok := p.(OnSubscriptionChanged); ok {
		r.onSubscriptionChanged = append(r.onSubscriptionChanged, v)
		hooks = append(hooks, "OnSubscriptionChanged")
	}
	if v, ok := p.(OnModuleChanged); ok {
		r.onModuleChanged = append(r.onModuleChanged, v)
		hooks = append(hooks, "OnModuleChanged")
	}
	if v, ok := p.(OnStoreError); ok {
		r.onStoreError = append(r.onStoreError, v)
		hooks = append(hooks, "OnStoreError")
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", hooks,
	)

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit dispatches fn to every plugin in list. Hook failures are logged and
// never propagate to the caller.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, list []T, fn func(T) error) {
	for _, p := range list {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

func hooksOf[T any](r *Registry, list *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *list
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	emit(ctx, r, "OnInit", hooksOf(r, &r.onInit), func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", hooksOf(r, &r.onShutdown), func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitEntitlementsResolved emits a resolve event.
func (r *Registry) EmitEntitlementsResolved(ctx context.Context, snap *entitlement.Entitlements, cacheHit bool, elapsed time.Duration) {
	emit(ctx, r, "OnEntitlementsResolved", hooksOf(r, &r.onEntitlementsResolved), func(p OnEntitlementsResolved) error {
		return p.OnEntitlementsResolved(ctx, snap, cacheHit, elapsed)
	})
}

// EmitEntitlementsInvalidated emits a cache invalidation event.
func (r *Registry) EmitEntitlementsInvalidated(ctx context.Context, tenantIDs []string, remote bool) {
	emit(ctx, r, "OnEntitlementsInvalidated", hooksOf(r, &r.onEntitlementsInvalidated), func(p OnEntitlementsInvalidated) error {
		return p.OnEntitlementsInvalidated(ctx, tenantIDs, remote)
	})
}

// EmitQuotaChecked emits a quota check event, and a quota exceeded event
// when the verdict denies.
func (r *Registry) EmitQuotaChecked(ctx context.Context, tenantID string, verdict entitlement.QuotaVerdict) {
	emit(ctx, r, "OnQuotaChecked", hooksOf(r, &r.onQuotaChecked), func(p OnQuotaChecked) error {
		return p.OnQuotaChecked(ctx, tenantID, verdict)
	})
	if verdict.Allowed {
		return
	}
	emit(ctx, r, "OnQuotaExceeded", hooksOf(r, &r.onQuotaExceeded), func(p OnQuotaExceeded) error {
		return p.OnQuotaExceeded(ctx, tenantID, verdict)
	})
}

// EmitModuleChecked emits a module check event, and a module denied event
// when the verdict denies.
func (r *Registry) EmitModuleChecked(ctx context.Context, tenantID string, verdict entitlement.ModuleVerdict) {
	emit(ctx, r, "OnModuleChecked", hooksOf(r, &r.onModuleChecked), func(p OnModuleChecked) error {
		return p.OnModuleChecked(ctx, tenantID, verdict)
	})
	if verdict.Allowed() {
		return
	}
	emit(ctx, r, "OnModuleDenied", hooksOf(r, &r.onModuleDenied), func(p OnModuleDenied) error {
		return p.OnModuleDenied(ctx, tenantID, verdict)
	})
}

// EmitCreditsConsumed emits a committed consumption.
func (r *Registry) EmitCreditsConsumed(ctx context.Context, entry *credit.Consumption, remaining int64) {
	emit(ctx, r, "OnCreditsConsumed", hooksOf(r, &r.onCreditsConsumed), func(p OnCreditsConsumed) error {
		return p.OnCreditsConsumed(ctx, entry, remaining)
	})
}

// EmitCreditsInsufficient emits a refused consumption.
func (r *Registry) EmitCreditsInsufficient(ctx context.Context, tenantID, operationType string, amount, available int64) {
	emit(ctx, r, "OnCreditsInsufficient", hooksOf(r, &r.onCreditsInsufficient), func(p OnCreditsInsufficient) error {
		return p.OnCreditsInsufficient(ctx, tenantID, operationType, amount, available)
	})
}

// EmitCreditsGranted emits a purchased credit grant.
func (r *Registry) EmitCreditsGranted(ctx context.Context, grant *credit.Grant) {
	emit(ctx, r, "OnCreditsGranted", hooksOf(r, &r.onCreditsGranted), func(p OnCreditsGranted) error {
		return p.OnCreditsGranted(ctx, grant)
	})
}

// EmitSubscriptionChanged emits a subscription write.
func (r *Registry) EmitSubscriptionChanged(ctx context.Context, sub *subscription.Subscription) {
	emit(ctx, r, "OnSubscriptionChanged", hooksOf(r, &r.onSubscriptionChanged), func(p OnSubscriptionChanged) error {
		return p.OnSubscriptionChanged(ctx, sub)
	})
}

// EmitModuleChanged emits a module activation change.
func (r *Registry) EmitModuleChanged(ctx context.Context, tenantID string, moduleID catalog.ModuleID, tier catalog.Tier) {
	emit(ctx, r, "OnModuleChanged", hooksOf(r, &r.onModuleChanged), func(p OnModuleChanged) error {
		return p.OnModuleChanged(ctx, tenantID, moduleID, tier)
	})
}

// EmitStoreError emits a fail-closed store failure.
func (r *Registry) EmitStoreError(ctx context.Context, op string, err error) {
	emit(ctx, r, "OnStoreError", hooksOf(r, &r.onStoreError), func(p OnStoreError) error {
		return p.OnStoreError(ctx, op, err)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins must never block enforcement.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
