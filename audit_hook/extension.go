// Package audithook bridges entitlement engine events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import an
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/entitle/catalog"
	"github.com/xraph/entitle/credit"
	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/plugin"
	"github.com/xraph/entitle/subscription"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                    = (*Extension)(nil)
	_ plugin.OnSubscriptionChanged     = (*Extension)(nil)
	_ plugin.OnModuleChanged           = (*Extension)(nil)
	_ plugin.OnQuotaExceeded           = (*Extension)(nil)
	_ plugin.OnModuleDenied            = (*Extension)(nil)
	_ plugin.OnCreditsConsumed         = (*Extension)(nil)
	_ plugin.OnCreditsInsufficient     = (*Extension)(nil)
	_ plugin.OnCreditsGranted          = (*Extension)(nil)
	_ plugin.OnEntitlementsInvalidated = (*Extension)(nil)
	_ plugin.OnStoreError              = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	TenantID   string         `json:"tenant_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges engine events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Subscription hooks
// ──────────────────────────────────────────────────

// OnSubscriptionChanged implements plugin.OnSubscriptionChanged.
func (e *Extension) OnSubscriptionChanged(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, event{
		action:     ActionSubscriptionChanged,
		severity:   SeverityInfo,
		outcome:    OutcomeSuccess,
		resource:   ResourceSubscription,
		resourceID: sub.ID.String(),
		tenantID:   sub.TenantID,
		category:   CategorySubscription,
	},
		"plan", string(sub.Plan),
		"status", string(sub.Status),
		"cancel_at_period_end", sub.CancelAtPeriodEnd,
	)
}

// OnModuleChanged implements plugin.OnModuleChanged.
func (e *Extension) OnModuleChanged(ctx context.Context, tenantID string, moduleID catalog.ModuleID, tier catalog.Tier) error {
	action := ActionModuleActivated
	if tier == "" {
		action = ActionModuleDeactivated
	}
	return e.record(ctx, event{
		action:     action,
		severity:   SeverityInfo,
		outcome:    OutcomeSuccess,
		resource:   ResourceModule,
		resourceID: string(moduleID),
		tenantID:   tenantID,
		category:   CategorySubscription,
	},
		"tier", string(tier),
	)
}

// ──────────────────────────────────────────────────
// Enforcement hooks
// ──────────────────────────────────────────────────

// OnQuotaExceeded implements plugin.OnQuotaExceeded.
func (e *Extension) OnQuotaExceeded(ctx context.Context, tenantID string, v entitlement.QuotaVerdict) error {
	return e.record(ctx, event{
		action:     ActionQuotaExceeded,
		severity:   SeverityWarning,
		outcome:    OutcomeDenied,
		resource:   ResourceQuota,
		resourceID: string(v.Resource),
		tenantID:   tenantID,
		category:   CategoryAccess,
	},
		"current", v.Current,
		"limit", int64(v.Limit),
	)
}

// OnModuleDenied implements plugin.OnModuleDenied.
func (e *Extension) OnModuleDenied(ctx context.Context, tenantID string, v entitlement.ModuleVerdict) error {
	kv := []any{"active", v.Active, "tier", string(v.Tier)}
	if v.Verdict != nil {
		kv = append(kv,
			"resource", string(v.Verdict.Resource),
			"current", v.Verdict.Current,
			"limit", int64(v.Verdict.Limit),
		)
	}
	return e.record(ctx, event{
		action:     ActionModuleDenied,
		severity:   SeverityWarning,
		outcome:    OutcomeDenied,
		resource:   ResourceModule,
		resourceID: string(v.Module),
		tenantID:   tenantID,
		category:   CategoryAccess,
	}, kv...)
}

// ──────────────────────────────────────────────────
// Credit hooks
// ──────────────────────────────────────────────────

// OnCreditsConsumed implements plugin.OnCreditsConsumed.
func (e *Extension) OnCreditsConsumed(ctx context.Context, entry *credit.Consumption, remaining int64) error {
	return e.record(ctx, event{
		action:     ActionCreditsConsumed,
		severity:   SeverityInfo,
		outcome:    OutcomeSuccess,
		resource:   ResourceCredits,
		resourceID: entry.ID.String(),
		tenantID:   entry.TenantID,
		category:   CategoryCredits,
	},
		"operation", entry.OperationType,
		"amount", entry.Amount,
		"from_monthly", entry.FromMonthly,
		"from_purchased", entry.FromPurchased,
		"remaining", remaining,
	)
}

// OnCreditsInsufficient implements plugin.OnCreditsInsufficient.
func (e *Extension) OnCreditsInsufficient(ctx context.Context, tenantID, operationType string, amount, available int64) error {
	return e.record(ctx, event{
		action:   ActionCreditsInsufficient,
		severity: SeverityWarning,
		outcome:  OutcomeDenied,
		resource: ResourceCredits,
		tenantID: tenantID,
		category: CategoryCredits,
	},
		"operation", operationType,
		"amount", amount,
		"available", available,
	)
}

// OnCreditsGranted implements plugin.OnCreditsGranted.
func (e *Extension) OnCreditsGranted(ctx context.Context, g *credit.Grant) error {
	return e.record(ctx, event{
		action:     ActionCreditsGranted,
		severity:   SeverityInfo,
		outcome:    OutcomeSuccess,
		resource:   ResourceCredits,
		resourceID: g.ID.String(),
		tenantID:   g.TenantID,
		category:   CategoryCredits,
	},
		"amount", g.Amount,
		"reference", g.Reference,
	)
}

// ──────────────────────────────────────────────────
// System hooks
// ──────────────────────────────────────────────────

// OnEntitlementsInvalidated implements plugin.OnEntitlementsInvalidated.
func (e *Extension) OnEntitlementsInvalidated(ctx context.Context, tenantIDs []string, remote bool) error {
	return e.record(ctx, event{
		action:   ActionEntitlementsInvalidated,
		severity: SeverityInfo,
		outcome:  OutcomeSuccess,
		resource: ResourceEntitlement,
		category: CategorySystem,
	},
		"tenants", tenantIDs,
		"all", len(tenantIDs) == 0,
		"remote", remote,
	)
}

// OnStoreError implements plugin.OnStoreError.
func (e *Extension) OnStoreError(ctx context.Context, op string, err error) error {
	return e.record(ctx, event{
		action:   ActionStoreFailed,
		severity: SeverityError,
		outcome:  OutcomeFailure,
		resource: ResourceStore,
		category: CategorySystem,
		err:      err,
	},
		"operation", op,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

type event struct {
	action, severity, outcome string
	resource, resourceID      string
	tenantID, category        string
	err                       error
}

// record builds and sends an audit event if the action is enabled.
// Recorder failures are logged and never returned.
func (e *Extension) record(ctx context.Context, ev event, kvPairs ...any) error {
	if e.enabled != nil && !e.enabled[ev.action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if ev.err != nil {
		reason = ev.err.Error()
		meta["error"] = ev.err.Error()
	}

	evt := &AuditEvent{
		Action:     ev.action,
		Resource:   ev.resource,
		Category:   ev.category,
		ResourceID: ev.resourceID,
		TenantID:   ev.tenantID,
		Metadata:   meta,
		Outcome:    ev.outcome,
		Severity:   ev.severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", ev.action,
			"tenant_id", ev.tenantID,
			"resource_id", ev.resourceID,
			"error", recErr,
		)
	}
	return nil
}
