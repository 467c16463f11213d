package entitle_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/entitle"
	"github.com/xraph/entitle/catalog"
	"github.com/xraph/entitle/store/memory"
	"github.com/xraph/entitle/subscription"
)

func TestCheckQuota(t *testing.T) {
	tests := []struct {
		name    string
		plan    catalog.Plan
		res     catalog.Resource
		current int
		allowed bool
		limit   catalog.Limit
	}{
		{"free under limit", catalog.PlanFree, catalog.ResourceProduct, 4, true, 5},
		{"free at limit", catalog.PlanFree, catalog.ResourceProduct, 5, false, 5},
		{"free over limit", catalog.PlanFree, catalog.ResourceProduct, 7, false, 5},
		{"free admin user", catalog.PlanFree, catalog.ResourceAdminUser, 1, false, 1},
		{"pro documents", catalog.PlanPro, catalog.ResourceDocument, 499, true, 500},
		{"pro suppliers exhausted", catalog.PlanPro, catalog.ResourceSupplier, 25, false, 25},
		{"enterprise unlimited", catalog.PlanEnterprise, catalog.ResourceProduct, 10000, true, catalog.Unlimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			if tt.plan != catalog.PlanFree {
				f.subscribe(t, "t1", tt.plan, subscription.StatusActive)
			}
			f.store.RecordN("t1", tt.res, tt.current, f.clock.Now())

			v, err := f.engine.CheckQuota(ctx, tt.res, "t1")
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, v.Allowed)
			assert.Equal(t, tt.limit, v.Limit)
			assert.Equal(t, int64(tt.current), v.Current)
			assert.Equal(t, tt.res, v.Resource)
		})
	}
}

func TestCheckQuotaPastDueUsesFreeLimits(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, "t1", catalog.PlanPro, subscription.StatusPastDue)
	f.store.RecordN("t1", catalog.ResourceProduct, 5, f.clock.Now())

	v, err := f.engine.CheckQuota(context.Background(), catalog.ResourceProduct, "t1")
	require.NoError(t, err)
	assert.False(t, v.Allowed)
	assert.Equal(t, catalog.Limit(5), v.Limit)
	assert.Equal(t, "product limit reached (5/5)", v.Reason())
}

func TestCheckQuotaUnlimitedAdvisory(t *testing.T) {
	t.Run("counted by default", func(t *testing.T) {
		f := newFixture(t)
		f.subscribe(t, "t1", catalog.PlanEnterprise, subscription.StatusActive)
		f.store.RecordN("t1", catalog.ResourceDocument, 3, f.clock.Now())

		v, err := f.engine.CheckQuota(context.Background(), catalog.ResourceDocument, "t1")
		require.NoError(t, err)
		assert.True(t, v.Allowed)
		assert.True(t, v.Unlimited())
		assert.Equal(t, int64(3), v.Current)
		assert.Equal(t, int64(-1), v.Remaining())
		assert.Equal(t, 1, f.store.Calls(memory.OpCountResource))
	})

	t.Run("count disabled", func(t *testing.T) {
		f := newFixture(t, entitle.WithAdvisoryCounting(false))
		f.subscribe(t, "t1", catalog.PlanEnterprise, subscription.StatusActive)

		v, err := f.engine.CheckQuota(context.Background(), catalog.ResourceDocument, "t1")
		require.NoError(t, err)
		assert.True(t, v.Allowed)
		assert.True(t, v.Advisory)
		assert.Zero(t, f.store.Calls(memory.OpCountResource))
	})

	t.Run("count failure does not deny", func(t *testing.T) {
		f := newFixture(t)
		f.subscribe(t, "t1", catalog.PlanEnterprise, subscription.StatusActive)
		f.store.FailOn(memory.OpCountResource, errBoom)

		v, err := f.engine.CheckQuota(context.Background(), catalog.ResourceDocument, "t1")
		require.NoError(t, err)
		assert.True(t, v.Allowed)
		assert.True(t, v.Advisory)
	})
}

func TestCheckQuotaUnknownResourceDenies(t *testing.T) {
	f := newFixture(t)

	v, err := f.engine.CheckQuota(context.Background(), "invoice_template", "t1")
	require.NoError(t, err)
	assert.False(t, v.Allowed)
	assert.Zero(t, v.Limit)
	assert.Zero(t, f.store.Calls(memory.OpCountResource), "a zero limit needs no count")
}

func TestCheckQuotaFailsClosed(t *testing.T) {
	t.Run("count failure", func(t *testing.T) {
		f := newFixture(t)
		f.store.FailOn(memory.OpCountResource, errBoom)

		v, err := f.engine.CheckQuota(context.Background(), catalog.ResourceProduct, "t1")
		require.Error(t, err)
		assert.True(t, entitle.IsStoreUnavailable(err))
		assert.False(t, v.Allowed)
		assert.Equal(t, 1, f.hooks.count(func(r *recorder) int { return len(r.storeErrors) }))
	})

	t.Run("resolve failure", func(t *testing.T) {
		f := newFixture(t)
		f.store.FailOn(memory.OpGetSubscription, errBoom)

		v, err := f.engine.CheckQuota(context.Background(), catalog.ResourceProduct, "t1")
		require.Error(t, err)
		assert.False(t, v.Allowed)
		assert.Zero(t, f.store.Calls(memory.OpCountResource))
	})

	t.Run("unmapped resource", func(t *testing.T) {
		f := newFixture(t)
		f.store.FailOn(memory.OpCountResource, entitle.ErrResourceNotMapped)

		v, err := f.engine.CheckQuota(context.Background(), catalog.ResourceProduct, "t1")
		require.ErrorIs(t, err, entitle.ErrResourceNotMapped)
		assert.False(t, entitle.IsStoreUnavailable(err))
		assert.False(t, v.Allowed)
	})
}

func TestCheckQuotaCountsLive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.RecordN("t1", catalog.ResourceProduct, 4, f.clock.Now())
	v, err := f.engine.CheckQuota(ctx, catalog.ResourceProduct, "t1")
	require.NoError(t, err)
	require.True(t, v.Allowed)

	// The snapshot is cached but the count is not.
	f.store.Record("t1", catalog.ResourceProduct, f.clock.Now())
	v, err = f.engine.CheckQuota(ctx, catalog.ResourceProduct, "t1")
	require.NoError(t, err)
	assert.False(t, v.Allowed)
	assert.Equal(t, 1, f.store.Calls(memory.OpGetSubscription))
	assert.Equal(t, 2, f.store.Calls(memory.OpCountResource))
}

func TestRequireQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.RequireQuota(ctx, catalog.ResourceSupplier, "t1"))

	f.store.RecordN("t1", catalog.ResourceSupplier, 3, f.clock.Now())
	err := f.engine.RequireQuota(ctx, catalog.ResourceSupplier, "t1")
	require.Error(t, err)
	assert.ErrorIs(t, err, entitle.ErrQuotaExceeded)
	assert.True(t, entitle.IsDenied(err))
	assert.Contains(t, err.Error(), "limit reached")

	var denied *entitle.DeniedError
	require.ErrorAs(t, err, &denied)
	require.NotNil(t, denied.Verdict)
	assert.Equal(t, int64(3), denied.Verdict.Current)
	assert.Equal(t, "t1", denied.TenantID)

	recorded := f.hooks.count(func(r *recorder) int { return len(r.exceeded) })
	assert.Equal(t, 1, recorded)
}
