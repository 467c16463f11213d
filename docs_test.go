package entitle_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/entitle"
	"github.com/xraph/entitle/catalog"
	"github.com/xraph/entitle/store/memory"
	"github.com/xraph/entitle/subscription"
)

// TestDocumentationExamples exercises the flows shown in the package docs.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		ms := memory.New()

		e := entitle.New(ms,
			entitle.WithLogger(slog.Default()),
			entitle.WithEntitlementCacheTTL(5*time.Second),
		)

		ctx := context.Background()
		require.NoError(t, e.Start(ctx))
		defer e.Stop()

		require.NoError(t, e.SaveSubscription(ctx, &subscription.Subscription{
			TenantID: "tenant-1",
			Plan:     catalog.PlanPro,
			Status:   subscription.StatusActive,
		}))

		snap, err := e.Resolve(ctx, "tenant-1")
		require.NoError(t, err)
		assert.Equal(t, catalog.PlanPro, snap.Plan)
	})

	t.Run("EnforcementExample", func(t *testing.T) {
		ms := memory.New()
		ms.RecordN("tenant-1", catalog.ResourceProduct, 5, time.Now())
		e := entitle.New(ms)
		ctx := context.Background()

		err := e.RequireQuota(ctx, catalog.ResourceProduct, "tenant-1")
		assert.True(t, entitle.IsDenied(err))
		assert.False(t, entitle.IsStoreUnavailable(err))

		v, err := e.CheckModule(ctx, catalog.ModuleReturnsHub, "tenant-1")
		require.NoError(t, err)
		assert.False(t, v.Allowed())
	})

	t.Run("CreditsExample", func(t *testing.T) {
		e := entitle.New(memory.New())
		ctx := context.Background()

		res, err := e.ConsumeCredits(ctx, 3, "tenant-1", "ai_description")
		require.NoError(t, err)
		assert.False(t, res.Success)

		_, err = e.GrantCredits(ctx, "tenant-1", 10, "order-42")
		require.NoError(t, err)

		res, err = e.ConsumeCredits(ctx, 3, "tenant-1", "ai_description")
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, int64(7), res.Remaining)
	})
}
