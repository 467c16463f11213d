// Package entitlement defines the resolved entitlement snapshot, the verdicts
// returned by quota and module checks, and the snapshot cache.
package entitlement

import (
	"fmt"
	"time"

	"github.com/xraph/entitle/catalog"
	"github.com/xraph/entitle/subscription"
)

// Entitlements is the resolved snapshot of everything a tenant may do.
// Snapshots are shared between callers through the cache and must be
// treated as read-only.
type Entitlements struct {
	TenantID           string                           `json:"tenant_id"`
	Plan               catalog.Plan                     `json:"plan"`
	SubscriptionStatus subscription.Status              `json:"subscription_status,omitempty"`
	PeriodStart        *time.Time                       `json:"period_start,omitempty"`
	Limits             catalog.Limits                   `json:"limits"`
	ActiveModules      map[catalog.ModuleID]ModuleGrant `json:"active_modules"`
	CreditsAvailable   int64                            `json:"credits_available"`
	ResolvedAt         time.Time                        `json:"resolved_at"`
}

// ModuleGrant is an active module and the limits its tier grants.
type ModuleGrant struct {
	Tier   catalog.Tier   `json:"tier"`
	Limits catalog.Limits `json:"limits"`
}

// Limit returns the plan limit for res, zero when res is not granted.
func (e *Entitlements) Limit(res catalog.Resource) catalog.Limit {
	return e.Limits[res]
}

// Module returns the grant for an active module.
func (e *Entitlements) Module(mod catalog.ModuleID) (ModuleGrant, bool) {
	g, ok := e.ActiveModules[mod]
	return g, ok
}

// HasModule reports whether mod is active.
func (e *Entitlements) HasModule(mod catalog.ModuleID) bool {
	_, ok := e.ActiveModules[mod]
	return ok
}

// QuotaVerdict is the outcome of a quota check. Current is the live count
// at check time; for unlimited resources it is advisory and may be zero.
type QuotaVerdict struct {
	Allowed  bool             `json:"allowed"`
	Resource catalog.Resource `json:"resource"`
	Current  int64            `json:"current"`
	Limit    catalog.Limit    `json:"limit"`
	Advisory bool             `json:"advisory,omitempty"`
}

// Unlimited reports whether the verdict was for an unlimited resource.
func (v QuotaVerdict) Unlimited() bool { return v.Limit.IsUnlimited() }

// Remaining returns how many more units fit, or -1 when unlimited.
func (v QuotaVerdict) Remaining() int64 {
	if v.Unlimited() {
		return -1
	}
	return max(0, int64(v.Limit)-v.Current)
}

// Reason renders a human-readable denial reason, empty when allowed.
func (v QuotaVerdict) Reason() string {
	if v.Allowed {
		return ""
	}
	return fmt.Sprintf("%s limit reached (%d/%d)", v.Resource, v.Current, v.Limit)
}

// ModuleVerdict is the outcome of a module check. Verdict is nil when the
// module is inactive or declares no quota resource.
type ModuleVerdict struct {
	Active  bool             `json:"active"`
	Module  catalog.ModuleID `json:"module"`
	Tier    catalog.Tier     `json:"tier,omitempty"`
	Verdict *QuotaVerdict    `json:"verdict,omitempty"`
}

// Allowed reports whether the gated operation may proceed.
func (v ModuleVerdict) Allowed() bool {
	if !v.Active {
		return false
	}
	return v.Verdict == nil || v.Verdict.Allowed
}
