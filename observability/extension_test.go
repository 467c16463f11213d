package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/entitle"
	"github.com/xraph/entitle/catalog"
	"github.com/xraph/entitle/credit"
	"github.com/xraph/entitle/observability"
	"github.com/xraph/entitle/store/memory"
)

func TestMetricsExtension(t *testing.T) {
	reg := prometheus.NewRegistry()
	factory := observability.NewPrometheusFactory(reg)
	metrics := observability.NewMetricsExtension(factory)

	ms := memory.New()
	ms.PutAccount(credit.Account{TenantID: "t1", MonthlyAllowance: 3, PurchasedBalance: 2})
	ms.RecordN("t1", catalog.ResourceProduct, 5, time.Now())

	e := entitle.New(ms, entitle.WithPlugin(metrics))
	ctx := context.Background()

	_, err := e.Resolve(ctx, "t1")
	require.NoError(t, err)
	_, err = e.CheckQuota(ctx, catalog.ResourceProduct, "t1")
	require.NoError(t, err)
	_, err = e.CheckModule(ctx, catalog.ModuleReturnsHub, "t1")
	require.NoError(t, err)
	_, err = e.ConsumeCredits(ctx, 4, "t1", "ai_description")
	require.NoError(t, err)
	_, err = e.ConsumeCredits(ctx, 4, "t1", "ai_description")
	require.NoError(t, err)

	assert.Equal(t, float64(1), value(t, metrics.ResolveCacheMisses))
	assert.Equal(t, float64(2), value(t, metrics.ResolveCacheHits))
	assert.Equal(t, float64(1), value(t, metrics.QuotaChecks))
	assert.Equal(t, float64(1), value(t, metrics.QuotaDenied))
	assert.Equal(t, float64(1), value(t, metrics.ModuleDenied))
	assert.Equal(t, float64(4), value(t, metrics.CreditsConsumed))
	assert.Equal(t, float64(3), value(t, metrics.CreditsFromMonthly))
	assert.Equal(t, float64(1), value(t, metrics.CreditsFromPurchase))
	assert.Equal(t, float64(1), value(t, metrics.CreditsInsufficient))
	assert.Equal(t, float64(1), value(t, metrics.Invalidations))
}

func TestPrometheusFactoryReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	factory := observability.NewPrometheusFactory(reg)

	a := factory.Counter("entitle.quota.checks")
	b := factory.Counter("entitle.quota.checks")
	assert.Same(t, a, b)

	a.Add(2)
	n, err := testutil.GatherAndCount(reg, "entitle_quota_checks_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func value(t *testing.T, c observability.Counter) float64 {
	t.Helper()
	col, ok := c.(prometheus.Collector)
	require.True(t, ok, "counter is not a prometheus collector")
	return testutil.ToFloat64(col)
}
