package entitlement

import (
	"sync"
	"time"
)

// DefaultCacheTTL bounds how long a snapshot may be served after the
// underlying subscription or balance changed without an explicit
// invalidation.
const DefaultCacheTTL = 5 * time.Second

// Token is a cache generation captured before a resolve reads the store.
type Token uint64

type cacheEntry struct {
	snap      *Entitlements
	expiresAt time.Time
}

// Cache is an in-process TTL cache of resolved snapshots keyed by tenant.
//
// A snapshot resolved from reads that started before an invalidation must
// not be stored after it. Callers capture a Token before reading and store
// with PutIfFresh; any invalidation of that tenant (or of all tenants)
// after the token was issued makes the put a no-op.
type Cache struct {
	mu          sync.RWMutex
	ttl         time.Duration
	now         func() time.Time
	entries     map[string]cacheEntry
	seq         Token
	invalidated map[string]Token
	flushed     Token
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock sets the time source used for expiry.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCache returns a cache with the given TTL. A non-positive TTL uses
// DefaultCacheTTL.
func NewCache(ttl time.Duration, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &Cache{
		ttl:         ttl,
		now:         time.Now,
		entries:     make(map[string]cacheEntry),
		invalidated: make(map[string]Token),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the cached snapshot for tenantID if present and unexpired.
func (c *Cache) Get(tenantID string) (*Entitlements, bool) {
	c.mu.RLock()
	e, ok := c.entries[tenantID]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		// Re-check: a fresh Put may have replaced the expired entry.
		if cur, ok := c.entries[tenantID]; ok && !c.now().Before(cur.expiresAt) {
			delete(c.entries, tenantID)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.snap, true
}

// Put stores snap unconditionally.
func (c *Cache) Put(tenantID string, snap *Entitlements) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[tenantID] = cacheEntry{snap: snap, expiresAt: c.now().Add(c.ttl)}
}

// Token returns the current generation. Capture it before reading the
// store for a snapshot that will be stored with PutIfFresh.
func (c *Cache) Token() Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seq
}

// PutIfFresh stores snap only if neither tenantID nor the whole cache was
// invalidated after token was issued. It reports whether snap was stored.
func (c *Cache) PutIfFresh(tenantID string, token Token, snap *Entitlements) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.invalidated[tenantID] > token || c.flushed > token {
		return false
	}
	c.entries[tenantID] = cacheEntry{snap: snap, expiresAt: c.now().Add(c.ttl)}
	return true
}

// Invalidate drops the snapshot of every given tenant. It completes before
// returning, so the next Get for those tenants misses.
func (c *Cache) Invalidate(tenantIDs ...string) {
	if len(tenantIDs) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	for _, tenantID := range tenantIDs {
		delete(c.entries, tenantID)
		c.invalidated[tenantID] = c.seq
	}
}

// InvalidateAll drops every snapshot.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.flushed = c.seq
	c.entries = make(map[string]cacheEntry)
	// Per-tenant marks at or below flushed are implied by it.
	c.invalidated = make(map[string]Token)
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
