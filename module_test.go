package entitle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/entitle"
	"github.com/xraph/entitle/catalog"
	"github.com/xraph/entitle/store/memory"
	"github.com/xraph/entitle/subscription"
)

func TestCheckModuleInactive(t *testing.T) {
	f := newFixture(t)

	v, err := f.engine.CheckModule(context.Background(), catalog.ModuleReturnsHub, "t1")
	require.NoError(t, err)
	assert.False(t, v.Active)
	assert.False(t, v.Allowed())
	assert.Nil(t, v.Verdict)
	assert.Zero(t, f.store.Calls(memory.OpCountResourceSince), "inactive modules are never counted")
	assert.Len(t, f.hooks.moduleDenied, 1)
}

func TestCheckModuleMonthlyQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.engine.ActivateModule(ctx, "t1", catalog.ModuleReturnsHub, catalog.TierStarter))

	now := f.clock.Now()
	lastMonth := time.Date(2026, time.February, 28, 23, 59, 0, 0, time.UTC)
	f.store.RecordN("t1", catalog.ResourceReturnsPerMonth, 49, now)
	f.store.RecordN("t1", catalog.ResourceReturnsPerMonth, 30, lastMonth)

	v, err := f.engine.CheckModule(ctx, catalog.ModuleReturnsHub, "t1")
	require.NoError(t, err)
	assert.True(t, v.Active)
	assert.Equal(t, catalog.TierStarter, v.Tier)
	require.NotNil(t, v.Verdict)
	assert.True(t, v.Verdict.Allowed)
	assert.Equal(t, int64(49), v.Verdict.Current)
	assert.Equal(t, catalog.Limit(50), v.Verdict.Limit)

	f.store.Record("t1", catalog.ResourceReturnsPerMonth, now)
	v, err = f.engine.CheckModule(ctx, catalog.ModuleReturnsHub, "t1")
	require.NoError(t, err)
	assert.True(t, v.Active)
	assert.False(t, v.Allowed())
	assert.Equal(t, "returns_per_month limit reached (50/50)", v.Verdict.Reason())
}

func TestCheckModuleBillingAnniversary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	anchor := time.Date(2025, time.November, 20, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.engine.SaveSubscription(ctx, &subscription.Subscription{
		TenantID:           "t1",
		Plan:               catalog.PlanPro,
		Status:             subscription.StatusActive,
		CurrentPeriodStart: &anchor,
	}))
	require.NoError(t, f.engine.ActivateModule(ctx, "t1", catalog.ModuleReturnsHub, catalog.TierStarter))

	// The clock sits at March 17, so the billing month began February 20.
	f.store.RecordN("t1", catalog.ResourceReturnsPerMonth, 10, time.Date(2026, time.February, 25, 0, 0, 0, 0, time.UTC))
	f.store.RecordN("t1", catalog.ResourceReturnsPerMonth, 10, time.Date(2026, time.February, 19, 0, 0, 0, 0, time.UTC))

	v, err := f.engine.CheckModule(ctx, catalog.ModuleReturnsHub, "t1")
	require.NoError(t, err)
	require.NotNil(t, v.Verdict)
	assert.Equal(t, int64(10), v.Verdict.Current)
}

func TestCheckModuleUnlimitedTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.engine.ActivateModule(ctx, "t1", catalog.ModuleReturnsHub, catalog.TierBusiness))
	f.store.RecordN("t1", catalog.ResourceReturnsPerMonth, 5000, f.clock.Now())

	v, err := f.engine.CheckModule(ctx, catalog.ModuleReturnsHub, "t1")
	require.NoError(t, err)
	assert.True(t, v.Allowed())
	assert.True(t, v.Verdict.Unlimited())
	assert.Equal(t, int64(5000), v.Verdict.Current)
}

func TestCheckModuleLifetimeQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.engine.ActivateModule(ctx, "t1", catalog.ModuleWarehouse, catalog.TierStarter))

	// Locations are not month-scoped: an old record still counts.
	f.store.Record("t1", catalog.ResourceWarehouseLocations, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))

	v, err := f.engine.CheckModule(ctx, catalog.ModuleWarehouse, "t1")
	require.NoError(t, err)
	assert.True(t, v.Active)
	assert.False(t, v.Allowed())
	assert.Equal(t, 1, f.store.Calls(memory.OpCountResource))
	assert.Zero(t, f.store.Calls(memory.OpCountResourceSince))
}

func TestCheckModuleQuotaExplicitResource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.engine.ActivateModule(ctx, "t1", catalog.ModuleSupplierPortal, catalog.TierProfessional))
	f.store.RecordN("t1", catalog.ResourceSupplierInvitesPerMonth, 99, f.clock.Now())

	v, err := f.engine.CheckModuleQuota(ctx, catalog.ModuleSupplierPortal, catalog.ResourceSupplierInvitesPerMonth, "t1")
	require.NoError(t, err)
	assert.True(t, v.Allowed())
	assert.Equal(t, catalog.Limit(100), v.Verdict.Limit)

	// A resource the tier does not grant has a zero limit.
	v, err = f.engine.CheckModuleQuota(ctx, catalog.ModuleSupplierPortal, catalog.ResourceReturnsPerMonth, "t1")
	require.NoError(t, err)
	assert.True(t, v.Active)
	assert.False(t, v.Allowed())
}

func TestCheckModuleUnknownModule(t *testing.T) {
	f := newFixture(t)

	v, err := f.engine.CheckModule(context.Background(), "crm", "t1")
	require.NoError(t, err)
	assert.False(t, v.Active)

	err = f.engine.ActivateModule(context.Background(), "t1", "crm", catalog.TierStarter)
	require.ErrorIs(t, err, entitle.ErrUnknownModule)
}

func TestCheckModuleFailsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.engine.ActivateModule(ctx, "t1", catalog.ModuleReturnsHub, catalog.TierStarter))
	f.store.FailOn(memory.OpCountResourceSince, errBoom)

	v, err := f.engine.CheckModule(ctx, catalog.ModuleReturnsHub, "t1")
	require.Error(t, err)
	assert.True(t, entitle.IsStoreUnavailable(err))
	assert.False(t, v.Allowed())
}

func TestRequireModule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.engine.RequireModule(ctx, catalog.ModuleReturnsHub, "t1")
	require.ErrorIs(t, err, entitle.ErrModuleInactive)
	assert.Contains(t, err.Error(), "module not active")
	assert.True(t, entitle.IsDenied(err))

	require.NoError(t, f.engine.ActivateModule(ctx, "t1", catalog.ModuleReturnsHub, catalog.TierStarter))
	require.NoError(t, f.engine.RequireModule(ctx, catalog.ModuleReturnsHub, "t1"))

	f.store.RecordN("t1", catalog.ResourceReturnsPerMonth, 50, f.clock.Now())
	err = f.engine.RequireModule(ctx, catalog.ModuleReturnsHub, "t1")
	require.ErrorIs(t, err, entitle.ErrQuotaExceeded)
	assert.Contains(t, err.Error(), "returns_hub")
}
