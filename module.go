package entitle

import (
	"context"
	"time"

	"github.com/xraph/entitle/catalog"
	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/usage"
)

// ──────────────────────────────────────────────────
// Module gate
// ──────────────────────────────────────────────────

// CheckModule reports whether the tenant has moduleID active and, when the
// module declares a quota resource, whether that quota has room.
// Month-scoped quotas count from the start of the tenant's billing month.
//
// An inactive module yields Active false and no count is made. Errors fail
// closed.
func (e *Engine) CheckModule(ctx context.Context, moduleID catalog.ModuleID, tenantID string) (entitlement.ModuleVerdict, error) {
	def, _ := e.catalog.Module(moduleID)
	return e.checkModule(ctx, moduleID, def.Quota, tenantID)
}

// CheckModuleQuota is CheckModule for a specific module resource other than
// the module's primary quota.
func (e *Engine) CheckModuleQuota(
	ctx context.Context,
	moduleID catalog.ModuleID,
	res catalog.Resource,
	tenantID string,
) (entitlement.ModuleVerdict, error) {
	return e.checkModule(ctx, moduleID, res, tenantID)
}

// RequireModule returns nil when the module is active with quota to spare,
// a *DeniedError wrapping ErrModuleInactive or ErrQuotaExceeded, or the
// infrastructure error.
func (e *Engine) RequireModule(ctx context.Context, moduleID catalog.ModuleID, tenantID string) error {
	v, err := e.CheckModule(ctx, moduleID, tenantID)
	if err != nil {
		return err
	}
	switch {
	case !v.Active:
		return &DeniedError{TenantID: tenantID, Reason: ErrModuleInactive, Module: string(moduleID)}
	case v.Verdict != nil && !v.Verdict.Allowed:
		return &DeniedError{TenantID: tenantID, Reason: ErrQuotaExceeded, Verdict: v.Verdict, Module: string(moduleID)}
	}
	return nil
}

func (e *Engine) checkModule(
	ctx context.Context,
	moduleID catalog.ModuleID,
	res catalog.Resource,
	tenantID string,
) (entitlement.ModuleVerdict, error) {
	v := entitlement.ModuleVerdict{Module: moduleID}

	snap, err := e.Resolve(ctx, tenantID)
	if err != nil {
		return v, err
	}

	grant, ok := snap.Module(moduleID)
	if !ok {
		e.plugins.EmitModuleChecked(ctx, tenantID, v)
		return v, nil
	}

	v.Active = true
	v.Tier = grant.Tier
	if res == "" {
		e.plugins.EmitModuleChecked(ctx, tenantID, v)
		return v, nil
	}

	def, _ := e.catalog.Module(moduleID)
	var since *time.Time
	if def.Period != catalog.PeriodNone {
		start := usage.BillingMonthStart(e.now(), snap.PeriodStart)
		since = &start
	}

	qv, err := e.evaluate(ctx, tenantID, res, grant.Limits[res], since)
	v.Verdict = &qv
	if err != nil {
		e.plugins.EmitStoreError(ctx, "check module", err)
		return v, err
	}

	e.plugins.EmitModuleChecked(ctx, tenantID, v)
	return v, nil
}
