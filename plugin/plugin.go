// Package plugin provides the hook system of the entitlement engine.
// Plugins implement any subset of the hook interfaces below and are
// dispatched synchronously with a per-call timeout.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/entitle/catalog"
	"github.com/xraph/entitle/credit"
	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/subscription"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. engine is the *entitle.Engine.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Resolution hooks
// ──────────────────────────────────────────────────

// OnEntitlementsResolved is called after every successful resolve.
type OnEntitlementsResolved interface {
	Plugin
	OnEntitlementsResolved(ctx context.Context, snap *entitlement.Entitlements, cacheHit bool, elapsed time.Duration) error
}

// OnEntitlementsInvalidated is called after cached snapshots were dropped.
// An empty tenantIDs means every tenant. remote is true when the
// invalidation arrived from another process.
type OnEntitlementsInvalidated interface {
	Plugin
	OnEntitlementsInvalidated(ctx context.Context, tenantIDs []string, remote bool) error
}

// ──────────────────────────────────────────────────
// Enforcement hooks
// ──────────────────────────────────────────────────

// OnQuotaChecked is called for every completed quota check.
type OnQuotaChecked interface {
	Plugin
	OnQuotaChecked(ctx context.Context, tenantID string, verdict entitlement.QuotaVerdict) error
}

// OnQuotaExceeded is called when a quota check denies.
type OnQuotaExceeded interface {
	Plugin
	OnQuotaExceeded(ctx context.Context, tenantID string, verdict entitlement.QuotaVerdict) error
}

// OnModuleChecked is called for every completed module check.
type OnModuleChecked interface {
	Plugin
	OnModuleChecked(ctx context.Context, tenantID string, verdict entitlement.ModuleVerdict) error
}

// OnModuleDenied is called when a module check denies, either because the
// module is inactive or because its quota is exhausted.
type OnModuleDenied interface {
	Plugin
	OnModuleDenied(ctx context.Context, tenantID string, verdict entitlement.ModuleVerdict) error
}

// ──────────────────────────────────────────────────
// Credit hooks
// ──────────────────────────────────────────────────

// OnCreditsConsumed is called after a consumption was committed.
type OnCreditsConsumed interface {
	Plugin
	OnCreditsConsumed(ctx context.Context, entry *credit.Consumption, remaining int64) error
}

// OnCreditsInsufficient is called when a consumption was refused.
type OnCreditsInsufficient interface {
	Plugin
	OnCreditsInsufficient(ctx context.Context, tenantID, operationType string, amount, available int64) error
}

// OnCreditsGranted is called after purchased credits were added.
type OnCreditsGranted interface {
	Plugin
	OnCreditsGranted(ctx context.Context, grant *credit.Grant) error
}

// ──────────────────────────────────────────────────
// Subscription hooks
// ──────────────────────────────────────────────────

// OnSubscriptionChanged is called after a subscription write.
type OnSubscriptionChanged interface {
	Plugin
	OnSubscriptionChanged(ctx context.Context, sub *subscription.Subscription) error
}

// OnModuleChanged is called after a module was activated, re-tiered or
// deactivated. tier is empty on deactivation.
type OnModuleChanged interface {
	Plugin
	OnModuleChanged(ctx context.Context, tenantID string, moduleID catalog.ModuleID, tier catalog.Tier) error
}

// ──────────────────────────────────────────────────
// Failure hooks
// ──────────────────────────────────────────────────

// OnStoreError is called when an operation failed closed because the store
// was unavailable.
type OnStoreError interface {
	Plugin
	OnStoreError(ctx context.Context, op string, err error) error
}
