package entitle

import (
	"context"
	"slices"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/entitle/catalog"
	"github.com/xraph/entitle/credit"
	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/subscription"
)

// ──────────────────────────────────────────────────
// Entitlement resolution
// ──────────────────────────────────────────────────

// Resolve returns the tenant's entitlement snapshot, from cache when fresh.
//
// On a miss the subscription, module subscriptions and credit account are
// read concurrently. A missing subscription resolves to the free plan and a
// missing account to zero credits; any other read failure fails the whole
// call and nothing is cached. There is no stale fallback.
func (e *Engine) Resolve(ctx context.Context, tenantID string) (*entitlement.Entitlements, error) {
	if tenantID == "" {
		return nil, ValidationError{Field: "tenant_id", Message: "required"}
	}

	start := time.Now()
	if snap, ok := e.cache.Get(tenantID); ok {
		e.plugins.EmitEntitlementsResolved(ctx, snap, true, time.Since(start))
		return snap, nil
	}

	// The token must be taken before any store read so an invalidation that
	// lands mid-resolve keeps this snapshot out of the cache.
	token := e.cache.Token()
	key := tenantID + "@" + strconv.FormatUint(uint64(token), 10)

	v, err, shared := e.resolves.Do(key, func() (any, error) {
		snap, err := e.load(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		if !e.cache.PutIfFresh(tenantID, token, snap) {
			e.logger.Debug("entitlements invalidated during resolve, not cached",
				"tenant_id", tenantID,
			)
		}
		return snap, nil
	})
	if err != nil {
		e.plugins.EmitStoreError(ctx, "resolve", err)
		return nil, err
	}

	snap := v.(*entitlement.Entitlements)
	e.logger.Debug("entitlements resolved",
		"tenant_id", tenantID,
		"plan", snap.Plan,
		"modules", len(snap.ActiveModules),
		"shared", shared,
	)
	e.plugins.EmitEntitlementsResolved(ctx, snap, false, time.Since(start))

	return snap, nil
}

// load reads the three authoritative sources and builds a snapshot.
func (e *Engine) load(ctx context.Context, tenantID string) (*entitlement.Entitlements, error) {
	var (
		sub  *subscription.Subscription
		mods []*subscription.Module
		acct *credit.Account
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s, err := e.store.GetSubscription(gctx, tenantID)
		switch {
		case err == nil:
			sub = s
		case IsNotFound(err):
		default:
			return unavailable("get subscription", err)
		}
		return nil
	})

	g.Go(func() error {
		m, err := e.store.ListModules(gctx, tenantID)
		if err != nil && !IsNotFound(err) {
			return unavailable("list modules", err)
		}
		mods = m
		return nil
	})

	g.Go(func() error {
		a, err := e.store.GetAccount(gctx, tenantID)
		switch {
		case err == nil:
			acct = a
		case IsNotFound(err):
		default:
			return unavailable("get credit account", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return e.build(tenantID, sub, mods, acct), nil
}

// build derives the snapshot from raw records. It is pure apart from
// logging.
func (e *Engine) build(
	tenantID string,
	sub *subscription.Subscription,
	mods []*subscription.Module,
	acct *credit.Account,
) *entitlement.Entitlements {
	plan := sub.EffectivePlan()
	if !e.catalog.HasPlan(plan) {
		e.logger.Warn("subscription names unknown plan, applying free limits",
			"tenant_id", tenantID,
			"plan", plan,
		)
		plan = catalog.PlanFree
	}

	snap := &entitlement.Entitlements{
		TenantID:         tenantID,
		Plan:             plan,
		Limits:           e.catalog.Limits(plan),
		ActiveModules:    make(map[catalog.ModuleID]entitlement.ModuleGrant, len(mods)),
		CreditsAvailable: acct.Available(),
		ResolvedAt:       e.now().UTC(),
	}
	if sub != nil {
		snap.SubscriptionStatus = sub.Status
		snap.PeriodStart = sub.CurrentPeriodStart
	}

	for _, m := range mods {
		if _, ok := e.catalog.Module(m.ModuleID); !ok {
			e.logger.Warn("module subscription names unknown module, ignoring",
				"tenant_id", tenantID,
				"module", m.ModuleID,
			)
			continue
		}
		snap.ActiveModules[m.ModuleID] = entitlement.ModuleGrant{
			Tier:   m.Tier,
			Limits: e.catalog.ModuleLimits(m.ModuleID, m.Tier),
		}
	}

	return snap
}

// ──────────────────────────────────────────────────
// Cache invalidation
// ──────────────────────────────────────────────────

// InvalidateEntitlementCache drops the cached snapshots of the given
// tenants, or of every tenant when none are given. It completes before
// returning: the next resolve for those tenants reads the store.
func (e *Engine) InvalidateEntitlementCache(ctx context.Context, tenantIDs ...string) {
	e.invalidate(ctx, false, tenantIDs)
}

// ApplyRemoteInvalidation applies an invalidation published by another
// process. Plugins see it with remote set, so broadcasters do not echo it.
func (e *Engine) ApplyRemoteInvalidation(ctx context.Context, tenantIDs ...string) {
	e.invalidate(ctx, true, tenantIDs)
}

func (e *Engine) invalidate(ctx context.Context, remote bool, tenantIDs []string) {
	if len(tenantIDs) == 0 {
		e.cache.InvalidateAll()
		e.logger.Debug("entitlement cache flushed", "remote", remote)
		e.plugins.EmitEntitlementsInvalidated(ctx, nil, remote)
		return
	}

	ids := slices.DeleteFunc(slices.Clone(tenantIDs), func(s string) bool { return s == "" })
	if len(ids) == 0 {
		return
	}

	e.cache.Invalidate(ids...)
	e.logger.Debug("entitlement cache invalidated",
		"tenants", ids,
		"remote", remote,
	)
	e.plugins.EmitEntitlementsInvalidated(ctx, ids, remote)
}
