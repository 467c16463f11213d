package entitlement_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/entitle/catalog"
	"github.com/xraph/entitle/entitlement"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func snap(tenant string, plan catalog.Plan) *entitlement.Entitlements {
	return &entitlement.Entitlements{TenantID: tenant, Plan: plan}
}

func TestCacheGetPut(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := entitlement.NewCache(5*time.Second, entitlement.WithClock(clk.Now))

	_, ok := c.Get("t1")
	assert.False(t, ok)

	c.Put("t1", snap("t1", catalog.PlanPro))
	got, ok := c.Get("t1")
	require.True(t, ok)
	assert.Equal(t, catalog.PlanPro, got.Plan)

	clk.Advance(4 * time.Second)
	_, ok = c.Get("t1")
	assert.True(t, ok)

	clk.Advance(time.Second)
	_, ok = c.Get("t1")
	assert.False(t, ok, "entry must expire at TTL")
	assert.Equal(t, 0, c.Len())
}

func TestCacheDefaultTTL(t *testing.T) {
	assert.Equal(t, entitlement.DefaultCacheTTL, entitlement.NewCache(0).TTL())
	assert.Equal(t, entitlement.DefaultCacheTTL, entitlement.NewCache(-time.Second).TTL())
}

func TestCacheInvalidate(t *testing.T) {
	c := entitlement.NewCache(time.Minute)
	c.Put("t1", snap("t1", catalog.PlanPro))
	c.Put("t2", snap("t2", catalog.PlanPro))

	c.Invalidate("t1")
	_, ok := c.Get("t1")
	assert.False(t, ok)
	_, ok = c.Get("t2")
	assert.True(t, ok)

	c.InvalidateAll()
	_, ok = c.Get("t2")
	assert.False(t, ok)

	// No-op with no tenants.
	c.Invalidate()
}

func TestCachePutIfFresh(t *testing.T) {
	c := entitlement.NewCache(time.Minute)

	tok := c.Token()
	assert.True(t, c.PutIfFresh("t1", tok, snap("t1", catalog.PlanPro)))

	// A resolve that began before an invalidation cannot repopulate.
	tok = c.Token()
	c.Invalidate("t1")
	assert.False(t, c.PutIfFresh("t1", tok, snap("t1", catalog.PlanPro)))
	_, ok := c.Get("t1")
	assert.False(t, ok)

	// Invalidation of another tenant does not block this one.
	tok = c.Token()
	c.Invalidate("t2")
	assert.True(t, c.PutIfFresh("t1", tok, snap("t1", catalog.PlanFree)))

	// A flush blocks every tenant.
	tok = c.Token()
	c.InvalidateAll()
	assert.False(t, c.PutIfFresh("t3", tok, snap("t3", catalog.PlanPro)))

	// Tokens taken after the flush are fresh again.
	assert.True(t, c.PutIfFresh("t3", c.Token(), snap("t3", catalog.PlanPro)))
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := entitlement.NewCache(time.Minute)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tenant := []string{"a", "b", "c"}[i%3]
			tok := c.Token()
			c.PutIfFresh(tenant, tok, snap(tenant, catalog.PlanPro))
			c.Get(tenant)
			if i%7 == 0 {
				c.Invalidate(tenant)
			}
		}()
	}
	wg.Wait()
}

func TestVerdicts(t *testing.T) {
	v := entitlement.QuotaVerdict{Allowed: false, Resource: catalog.ResourceProduct, Current: 5, Limit: 5}
	assert.Equal(t, "product limit reached (5/5)", v.Reason())
	assert.Zero(t, v.Remaining())

	u := entitlement.QuotaVerdict{Allowed: true, Limit: catalog.Unlimited}
	assert.True(t, u.Unlimited())
	assert.Equal(t, int64(-1), u.Remaining())
	assert.Empty(t, u.Reason())

	assert.False(t, entitlement.ModuleVerdict{Active: false}.Allowed())
	assert.True(t, entitlement.ModuleVerdict{Active: true}.Allowed())
	assert.False(t, entitlement.ModuleVerdict{Active: true, Verdict: &v}.Allowed())
}
