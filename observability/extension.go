// Package observability provides a metrics extension for the entitlement
// engine that records decision and ledger counts via a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/entitle/credit"
	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/plugin"
	"github.com/xraph/entitle/subscription"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                    = (*MetricsExtension)(nil)
	_ plugin.OnEntitlementsResolved    = (*MetricsExtension)(nil)
	_ plugin.OnEntitlementsInvalidated = (*MetricsExtension)(nil)
	_ plugin.OnQuotaChecked            = (*MetricsExtension)(nil)
	_ plugin.OnQuotaExceeded           = (*MetricsExtension)(nil)
	_ plugin.OnModuleChecked           = (*MetricsExtension)(nil)
	_ plugin.OnModuleDenied            = (*MetricsExtension)(nil)
	_ plugin.OnCreditsConsumed         = (*MetricsExtension)(nil)
	_ plugin.OnCreditsInsufficient     = (*MetricsExtension)(nil)
	_ plugin.OnCreditsGranted          = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionChanged     = (*MetricsExtension)(nil)
	_ plugin.OnStoreError              = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records engine-wide metrics.
// Register it as a plugin to track entitlement decisions automatically.
type MetricsExtension struct {
	// Resolution metrics
	ResolveCacheHits   Counter
	ResolveCacheMisses Counter
	ResolveLatency     Histogram
	Invalidations      Counter
	RemoteInvalidation Counter

	// Quota metrics
	QuotaChecks   Counter
	QuotaDenied   Counter
	QuotaAdvisory Counter

	// Module metrics
	ModuleChecks Counter
	ModuleDenied Counter

	// Credit metrics
	CreditsConsumed     Counter
	CreditsFromMonthly  Counter
	CreditsFromPurchase Counter
	CreditsInsufficient Counter
	CreditsGranted      Counter

	// Subscription metrics
	SubscriptionChanges Counter

	// Error metrics
	StoreErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions or NewPrometheusFactory elsewhere.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		// Resolution metrics
		ResolveCacheHits:   factory.Counter("entitle.resolve.cache.hits"),
		ResolveCacheMisses: factory.Counter("entitle.resolve.cache.misses"),
		ResolveLatency:     factory.Histogram("entitle.resolve.latency_ms"),
		Invalidations:      factory.Counter("entitle.cache.invalidations"),
		RemoteInvalidation: factory.Counter("entitle.cache.invalidations.remote"),

		// Quota metrics
		QuotaChecks:   factory.Counter("entitle.quota.checks"),
		QuotaDenied:   factory.Counter("entitle.quota.denied"),
		QuotaAdvisory: factory.Counter("entitle.quota.advisory"),

		// Module metrics
		ModuleChecks: factory.Counter("entitle.module.checks"),
		ModuleDenied: factory.Counter("entitle.module.denied"),

		// Credit metrics
		CreditsConsumed:     factory.Counter("entitle.credits.consumed"),
		CreditsFromMonthly:  factory.Counter("entitle.credits.consumed.monthly"),
		CreditsFromPurchase: factory.Counter("entitle.credits.consumed.purchased"),
		CreditsInsufficient: factory.Counter("entitle.credits.insufficient"),
		CreditsGranted:      factory.Counter("entitle.credits.granted"),

		// Subscription metrics
		SubscriptionChanges: factory.Counter("entitle.subscription.changes"),

		// Error metrics
		StoreErrors: factory.Counter("entitle.store.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ──────────────────────────────────────────────────
// Resolution hooks
// ──────────────────────────────────────────────────

// OnEntitlementsResolved implements plugin.OnEntitlementsResolved.
func (m *MetricsExtension) OnEntitlementsResolved(_ context.Context, _ *entitlement.Entitlements, cacheHit bool, elapsed time.Duration) error {
	if cacheHit {
		m.ResolveCacheHits.Inc()
	} else {
		m.ResolveCacheMisses.Inc()
	}
	m.ResolveLatency.Observe(float64(elapsed.Microseconds()) / 1000)
	return nil
}

// OnEntitlementsInvalidated implements plugin.OnEntitlementsInvalidated.
func (m *MetricsExtension) OnEntitlementsInvalidated(_ context.Context, _ []string, remote bool) error {
	if remote {
		m.RemoteInvalidation.Inc()
		return nil
	}
	m.Invalidations.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Quota and module hooks
// ──────────────────────────────────────────────────

// OnQuotaChecked implements plugin.OnQuotaChecked.
func (m *MetricsExtension) OnQuotaChecked(_ context.Context, _ string, v entitlement.QuotaVerdict) error {
	m.QuotaChecks.Inc()
	if v.Advisory {
		m.QuotaAdvisory.Inc()
	}
	return nil
}

// OnQuotaExceeded implements plugin.OnQuotaExceeded.
func (m *MetricsExtension) OnQuotaExceeded(_ context.Context, _ string, _ entitlement.QuotaVerdict) error {
	m.QuotaDenied.Inc()
	return nil
}

// OnModuleChecked implements plugin.OnModuleChecked.
func (m *MetricsExtension) OnModuleChecked(_ context.Context, _ string, _ entitlement.ModuleVerdict) error {
	m.ModuleChecks.Inc()
	return nil
}

// OnModuleDenied implements plugin.OnModuleDenied.
func (m *MetricsExtension) OnModuleDenied(_ context.Context, _ string, _ entitlement.ModuleVerdict) error {
	m.ModuleDenied.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Credit hooks
// ──────────────────────────────────────────────────

// OnCreditsConsumed implements plugin.OnCreditsConsumed.
func (m *MetricsExtension) OnCreditsConsumed(_ context.Context, entry *credit.Consumption, _ int64) error {
	m.CreditsConsumed.Add(float64(entry.Amount))
	m.CreditsFromMonthly.Add(float64(entry.FromMonthly))
	m.CreditsFromPurchase.Add(float64(entry.FromPurchased))
	return nil
}

// OnCreditsInsufficient implements plugin.OnCreditsInsufficient.
func (m *MetricsExtension) OnCreditsInsufficient(_ context.Context, _, _ string, _, _ int64) error {
	m.CreditsInsufficient.Inc()
	return nil
}

// OnCreditsGranted implements plugin.OnCreditsGranted.
func (m *MetricsExtension) OnCreditsGranted(_ context.Context, g *credit.Grant) error {
	m.CreditsGranted.Add(float64(g.Amount))
	return nil
}

// ──────────────────────────────────────────────────
// Subscription and error hooks
// ──────────────────────────────────────────────────

// OnSubscriptionChanged implements plugin.OnSubscriptionChanged.
func (m *MetricsExtension) OnSubscriptionChanged(_ context.Context, _ *subscription.Subscription) error {
	m.SubscriptionChanges.Inc()
	return nil
}

// OnStoreError implements plugin.OnStoreError.
func (m *MetricsExtension) OnStoreError(_ context.Context, _ string, _ error) error {
	m.StoreErrors.Inc()
	return nil
}
