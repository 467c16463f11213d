package entitle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/entitle/catalog"
	"github.com/xraph/entitle/entitlement"
)

// ──────────────────────────────────────────────────
// Quota enforcement
// ──────────────────────────────────────────────────

// CheckQuota reports whether the tenant may create one more unit of res
// under its plan. The count is always live.
//
// Errors fail closed: whenever err is non-nil the verdict denies.
func (e *Engine) CheckQuota(ctx context.Context, res catalog.Resource, tenantID string) (entitlement.QuotaVerdict, error) {
	denied := entitlement.QuotaVerdict{Allowed: false, Resource: res}

	snap, err := e.Resolve(ctx, tenantID)
	if err != nil {
		return denied, err
	}

	v, err := e.evaluate(ctx, tenantID, res, snap.Limit(res), nil)
	if err != nil {
		e.plugins.EmitStoreError(ctx, "check quota", err)
		return v, err
	}

	e.plugins.EmitQuotaChecked(ctx, tenantID, v)
	return v, nil
}

// RequireQuota is CheckQuota for call sites that only branch on errors. It
// returns nil when allowed, a *DeniedError wrapping ErrQuotaExceeded when
// the limit is reached, or the infrastructure error.
func (e *Engine) RequireQuota(ctx context.Context, res catalog.Resource, tenantID string) error {
	v, err := e.CheckQuota(ctx, res, tenantID)
	if err != nil {
		return err
	}
	if !v.Allowed {
		return &DeniedError{TenantID: tenantID, Reason: ErrQuotaExceeded, Verdict: &v}
	}
	return nil
}

// evaluate compares a live count against limit. since scopes the count to
// records created at or after it; nil counts everything.
//
// A zero limit denies without counting. An unlimited limit allows; its
// count, when enabled, is advisory and a failure only marks the verdict.
func (e *Engine) evaluate(
	ctx context.Context,
	tenantID string,
	res catalog.Resource,
	limit catalog.Limit,
	since *time.Time,
) (entitlement.QuotaVerdict, error) {
	v := entitlement.QuotaVerdict{Resource: res, Limit: limit}

	switch {
	case limit == 0:
		return v, nil

	case limit.IsUnlimited():
		v.Allowed = true
		if !e.advisoryCounting {
			v.Advisory = true
			return v, nil
		}
		n, err := e.count(ctx, tenantID, res, since)
		if err != nil {
			e.logger.Warn("advisory usage count failed",
				"tenant_id", tenantID,
				"resource", res,
				"error", err,
			)
			v.Advisory = true
			return v, nil
		}
		v.Current = n
		return v, nil
	}

	n, err := e.count(ctx, tenantID, res, since)
	if err != nil {
		return v, err
	}
	v.Current = n
	v.Allowed = limit.Allows(n)
	return v, nil
}

func (e *Engine) count(ctx context.Context, tenantID string, res catalog.Resource, since *time.Time) (int64, error) {
	var (
		n   int64
		err error
	)
	if since == nil {
		n, err = e.store.CountResource(ctx, tenantID, res)
	} else {
		n, err = e.store.CountResourceSince(ctx, tenantID, res, *since)
	}

	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, ErrResourceNotMapped):
		return 0, fmt.Errorf("count %s: %w", res, err)
	default:
		return 0, unavailable("count "+string(res), err)
	}
}
