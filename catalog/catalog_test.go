package catalog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/entitle/catalog"
)

func TestDefaultPlanLimits(t *testing.T) {
	c := catalog.Default()
	require.NoError(t, c.Validate())

	tests := []struct {
		plan catalog.Plan
		res  catalog.Resource
		want catalog.Limit
	}{
		{catalog.PlanFree, catalog.ResourceProduct, 5},
		{catalog.PlanFree, catalog.ResourceDocument, 10},
		{catalog.PlanFree, catalog.ResourceAdminUser, 1},
		{catalog.PlanPro, catalog.ResourceProduct, 50},
		{catalog.PlanPro, catalog.ResourceAdminUser, 5},
		{catalog.PlanEnterprise, catalog.ResourceProduct, catalog.Unlimited},
		{catalog.PlanEnterprise, catalog.ResourceDocument, catalog.Unlimited},
		// Unknown plan falls back to the free row.
		{"legacy", catalog.ResourceProduct, 5},
		// Unknown resource denies.
		{catalog.PlanPro, "spaceship", 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.plan)+"/"+string(tt.res), func(t *testing.T) {
			assert.Equal(t, tt.want, c.LimitFor(tt.plan, tt.res))
		})
	}
}

func TestDefaultModuleLimits(t *testing.T) {
	c := catalog.Default()

	assert.Equal(t, catalog.Limit(50), c.ModuleLimitFor(catalog.ModuleReturnsHub, catalog.TierStarter, catalog.ResourceReturnsPerMonth))
	assert.Equal(t, catalog.Limit(300), c.ModuleLimitFor(catalog.ModuleReturnsHub, catalog.TierProfessional, catalog.ResourceReturnsPerMonth))
	assert.Equal(t, catalog.Unlimited, c.ModuleLimitFor(catalog.ModuleReturnsHub, catalog.TierBusiness, catalog.ResourceReturnsPerMonth))

	assert.Equal(t, catalog.Limit(0), c.ModuleLimitFor("teleporter", catalog.TierBusiness, catalog.ResourceReturnsPerMonth))
	assert.Equal(t, catalog.Limit(0), c.ModuleLimitFor(catalog.ModuleReturnsHub, "platinum", catalog.ResourceReturnsPerMonth))

	def, ok := c.Module(catalog.ModuleReturnsHub)
	require.True(t, ok)
	assert.True(t, def.HasQuota())
	assert.Equal(t, catalog.PeriodMonthly, def.Period)
}

func TestLimitsAreCopies(t *testing.T) {
	c := catalog.Default()

	l := c.Limits(catalog.PlanFree)
	l[catalog.ResourceProduct] = 1000
	assert.Equal(t, catalog.Limit(5), c.LimitFor(catalog.PlanFree, catalog.ResourceProduct))

	m := c.ModuleLimits(catalog.ModuleReturnsHub, catalog.TierStarter)
	m[catalog.ResourceReturnsPerMonth] = 1000
	assert.Equal(t, catalog.Limit(50), c.ModuleLimitFor(catalog.ModuleReturnsHub, catalog.TierStarter, catalog.ResourceReturnsPerMonth))

	assert.Empty(t, c.ModuleLimits("teleporter", catalog.TierStarter))
}

func TestLimitAllows(t *testing.T) {
	assert.True(t, catalog.Limit(5).Allows(4))
	assert.False(t, catalog.Limit(5).Allows(5))
	assert.False(t, catalog.Limit(0).Allows(0))
	assert.True(t, catalog.Unlimited.Allows(1_000_000))
}

func TestResourcesSorted(t *testing.T) {
	got := catalog.Default().Resources()
	assert.Equal(t, []catalog.Resource{
		catalog.ResourceAdminUser,
		catalog.ResourceDocument,
		catalog.ResourceProduct,
		catalog.ResourceSupplier,
	}, got)
}

const sampleYAML = `
plans:
  free:
    product: 2
  growth:
    product: 20
    document: unlimited
credits:
  free: 5
  growth: 100
modules:
  returns_hub:
    name: Returns Hub
    quota: returns_per_month
    period: monthly
    tiers:
      starter:
        returns_per_month: 10
      business:
        returns_per_month: unlimited
`

func TestParse(t *testing.T) {
	c, err := catalog.Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, catalog.Limit(20), c.LimitFor("growth", catalog.ResourceProduct))
	assert.Equal(t, catalog.Unlimited, c.LimitFor("growth", catalog.ResourceDocument))
	assert.Equal(t, catalog.Limit(2), c.LimitFor("unknown", catalog.ResourceProduct))
	assert.Equal(t, int64(100), c.MonthlyCredits("growth"))
	assert.Equal(t, int64(5), c.MonthlyCredits("unknown"))
	assert.Equal(t, catalog.Unlimited, c.ModuleLimitFor(catalog.ModuleReturnsHub, catalog.TierBusiness, catalog.ResourceReturnsPerMonth))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	c, err := catalog.Load(path)
	require.NoError(t, err)
	assert.True(t, c.HasPlan("growth"))

	_, err = catalog.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no free row", "plans:\n  pro:\n    product: 1\n"},
		{"limit below unlimited", "plans:\n  free:\n    product: -7\n"},
		{"bad limit literal", "plans:\n  free:\n    product: lots\n"},
		{"negative credits", "plans:\n  free:\n    product: 1\ncredits:\n  free: -1\n"},
		{"unknown period", "plans:\n  free: {}\nmodules:\n  m:\n    quota: x\n    period: weekly\n    tiers:\n      starter:\n        x: 1\n"},
		{"tier missing quota", "plans:\n  free: {}\nmodules:\n  m:\n    quota: x\n    tiers:\n      starter:\n        y: 1\n"},
		{"no tiers", "plans:\n  free: {}\nmodules:\n  m:\n    quota: x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.Parse([]byte(tt.doc))
			require.Error(t, err)
		})
	}
}

func TestParseErrorIsInvalidCatalog(t *testing.T) {
	_, err := catalog.Parse([]byte("plans:\n  pro:\n    product: 1\n"))
	require.ErrorIs(t, err, catalog.ErrInvalidCatalog)
}
