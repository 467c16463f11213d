package entitle_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/entitle"
	"github.com/xraph/entitle/catalog"
	"github.com/xraph/entitle/credit"
	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/store/memory"
	"github.com/xraph/entitle/subscription"
)

var errBoom = errors.New("connection refused")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	engine *entitle.Engine
	store  *memory.Store
	clock  *testClock
	hooks  *recorder
}

func newFixture(t *testing.T, opts ...entitle.Option) *fixture {
	t.Helper()

	f := &fixture{
		store: memory.New(),
		clock: &testClock{now: time.Date(2026, time.March, 17, 10, 0, 0, 0, time.UTC)},
		hooks: &recorder{},
	}

	base := []entitle.Option{
		entitle.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		entitle.WithClock(f.clock.Now),
		entitle.WithPlugin(f.hooks),
	}
	f.engine = entitle.New(f.store, append(base, opts...)...)
	require.NoError(t, f.engine.Start(context.Background()))

	return f
}

func (f *fixture) subscribe(t *testing.T, tenant string, plan catalog.Plan, status subscription.Status) {
	t.Helper()
	require.NoError(t, f.engine.SaveSubscription(context.Background(), &subscription.Subscription{
		TenantID: tenant,
		Plan:     plan,
		Status:   status,
	}))
}

// recorder captures hook invocations.
type recorder struct {
	mu            sync.Mutex
	resolved      []bool
	exceeded      []entitlement.QuotaVerdict
	moduleDenied  []entitlement.ModuleVerdict
	consumed      []*credit.Consumption
	insufficient  []int64
	invalidations [][]string
	storeErrors   []string
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnEntitlementsResolved(_ context.Context, _ *entitlement.Entitlements, hit bool, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = append(r.resolved, hit)
	return nil
}

func (r *recorder) OnQuotaExceeded(_ context.Context, _ string, v entitlement.QuotaVerdict) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exceeded = append(r.exceeded, v)
	return nil
}

func (r *recorder) OnModuleDenied(_ context.Context, _ string, v entitlement.ModuleVerdict) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moduleDenied = append(r.moduleDenied, v)
	return nil
}

func (r *recorder) OnCreditsConsumed(_ context.Context, entry *credit.Consumption, _ int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consumed = append(r.consumed, entry)
	return nil
}

func (r *recorder) OnCreditsInsufficient(_ context.Context, _, _ string, amount, _ int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insufficient = append(r.insufficient, amount)
	return nil
}

func (r *recorder) OnEntitlementsInvalidated(_ context.Context, tenantIDs []string, _ bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidations = append(r.invalidations, tenantIDs)
	return nil
}

func (r *recorder) OnStoreError(_ context.Context, op string, _ error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storeErrors = append(r.storeErrors, op)
	return nil
}

func (r *recorder) count(get func(*recorder) int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return get(r)
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Ping(context.Background()))
	assert.Equal(t, entitlement.DefaultCacheTTL, f.engine.Cache().TTL())
	assert.Equal(t, 1, f.engine.Plugins().Count())

	require.NoError(t, f.engine.Stop())
	require.ErrorIs(t, f.engine.Ping(context.Background()), entitle.ErrStoreClosed)
}

func TestWithEntitlementCacheTTL(t *testing.T) {
	f := newFixture(t, entitle.WithEntitlementCacheTTL(2*time.Second))
	assert.Equal(t, 2*time.Second, f.engine.Cache().TTL())

	c := entitlement.NewCache(time.Minute)
	f = newFixture(t, entitle.WithCache(c))
	assert.Same(t, c, f.engine.Cache())
}

func TestErrorHelpers(t *testing.T) {
	denied := &entitle.DeniedError{Reason: entitle.ErrModuleInactive, Module: "returns_hub"}
	assert.True(t, entitle.IsDenied(denied))
	assert.Contains(t, denied.Error(), "module not active")
	assert.False(t, entitle.IsStoreUnavailable(denied))

	v := entitlement.QuotaVerdict{Resource: catalog.ResourceProduct, Current: 5, Limit: 5}
	denied = &entitle.DeniedError{Reason: entitle.ErrQuotaExceeded, Verdict: &v}
	assert.Contains(t, denied.Error(), "limit reached")
	assert.ErrorIs(t, denied, entitle.ErrQuotaExceeded)

	verr := entitle.ValidationError{Field: "amount", Message: "must be positive"}
	assert.ErrorIs(t, verr, entitle.ErrInvalidInput)
	assert.False(t, entitle.IsDenied(verr))

	assert.True(t, entitle.IsNotFound(entitle.ErrCreditAccountNotFound))
	assert.True(t, entitle.IsRetryable(entitle.ErrConcurrentWrite))
	assert.False(t, entitle.IsRetryable(entitle.ErrQuotaExceeded))
}
