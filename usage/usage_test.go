package usage_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/entitle/catalog"
	"github.com/xraph/entitle/usage"
)

func date(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func TestBillingMonthStart(t *testing.T) {
	tests := []struct {
		name   string
		now    time.Time
		anchor *time.Time
		want   time.Time
	}{
		{"calendar month", date(2026, time.March, 17, 9), nil, date(2026, time.March, 1, 0)},
		{"anniversary this month", date(2026, time.March, 17, 9), ptr(date(2025, time.November, 10, 12)), date(2026, time.March, 10, 12)},
		{"anniversary last month", date(2026, time.March, 5, 9), ptr(date(2025, time.November, 10, 12)), date(2026, time.February, 10, 12)},
		{"year rollover", date(2026, time.January, 3, 0), ptr(date(2025, time.June, 20, 0)), date(2025, time.December, 20, 0)},
		{"clamp to short month", date(2026, time.February, 28, 12), ptr(date(2026, time.January, 31, 0)), date(2026, time.February, 28, 0)},
		{"exact anniversary", date(2026, time.April, 10, 12), ptr(date(2026, time.January, 10, 12)), date(2026, time.April, 10, 12)},
		{"future anchor", date(2026, time.April, 10, 12), ptr(date(2027, time.January, 1, 0)), date(2026, time.April, 1, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, usage.BillingMonthStart(tt.now, tt.anchor))
		})
	}
}

func TestTables(t *testing.T) {
	tables := usage.DefaultTables()
	require.NoError(t, tables.Validate())

	tbl, ok := tables.Lookup(catalog.ResourceProduct)
	require.True(t, ok)
	assert.Equal(t, "products", tbl.Name)
	assert.Equal(t, "tenant_id", tbl.Tenant())
	assert.Equal(t, "created_at", tbl.Created())

	_, ok = tables.Lookup("spaceship")
	assert.False(t, ok)

	merged := tables.Merge(usage.Tables{
		catalog.ResourceProduct: {Name: "catalog.items", TenantColumn: "org_id", CreatedColumn: "inserted_at"},
	})
	tbl, _ = merged.Lookup(catalog.ResourceProduct)
	assert.Equal(t, "org_id", tbl.Tenant())
	assert.Equal(t, "inserted_at", tbl.Created())
	require.NoError(t, merged.Validate())

	// Merge leaves the receiver alone.
	tbl, _ = tables.Lookup(catalog.ResourceProduct)
	assert.Equal(t, "products", tbl.Name)
}

func TestTablesRejectUnsafeIdentifiers(t *testing.T) {
	bad := usage.Tables{
		catalog.ResourceProduct: {Name: "products; DROP TABLE tenants"},
	}
	require.ErrorIs(t, bad.Validate(), usage.ErrInvalidTable)

	bad = usage.Tables{
		catalog.ResourceProduct: {Name: "products", TenantColumn: "tenant id"},
	}
	require.ErrorIs(t, bad.Validate(), usage.ErrInvalidTable)
}

func ptr(t time.Time) *time.Time { return &t }
