// Package memory provides an in-memory store. It is safe for concurrent
// use, applies credit draws atomically under its lock, and supports failure
// injection so callers can exercise fail-closed paths.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/xraph/entitle"
	"github.com/xraph/entitle/catalog"
	"github.com/xraph/entitle/credit"
	"github.com/xraph/entitle/store"
	"github.com/xraph/entitle/subscription"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Method names accepted by FailOn.
const (
	OpGetSubscription    = "GetSubscription"
	OpSaveSubscription   = "SaveSubscription"
	OpListModules        = "ListModules"
	OpSaveModule         = "SaveModule"
	OpDeleteModule       = "DeleteModule"
	OpGetAccount         = "GetAccount"
	OpApplyDraw          = "ApplyDraw"
	OpAddPurchased       = "AddPurchased"
	OpResetMonthly       = "ResetMonthly"
	OpListConsumptions   = "ListConsumptions"
	OpCountResource      = "CountResource"
	OpCountResourceSince = "CountResourceSince"
	OpPing               = "Ping"
)

type record struct {
	res catalog.Resource
	at  time.Time
}

type Store struct {
	mu sync.RWMutex

	subscriptions map[string]*subscription.Subscription
	modules       map[string]map[catalog.ModuleID]*subscription.Module

	accounts     map[string]*credit.Account
	consumptions []*credit.Consumption
	grants       []*credit.Grant

	// Host records counted by the usage methods
	records map[string][]record

	failures map[string]error
	calls    map[string]int
	closed   bool
}

func New() *Store {
	return &Store{
		subscriptions: make(map[string]*subscription.Subscription),
		modules:       make(map[string]map[catalog.ModuleID]*subscription.Module),
		accounts:      make(map[string]*credit.Account),
		records:       make(map[string][]record),
		failures:      make(map[string]error),
		calls:         make(map[string]int),
	}
}

// ──────────────────────────────────────────────────
// Test helpers
// ──────────────────────────────────────────────────

// FailOn makes every later call of op return err. A nil err clears it.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Calls returns how many times op was invoked.
func (s *Store) Calls(op string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op]
}

// Record adds one host record of res for tenantID created at at.
func (s *Store) Record(tenantID string, res catalog.Resource, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[tenantID] = append(s.records[tenantID], record{res: res, at: at})
}

// RecordN adds n host records of res for tenantID created at at.
func (s *Store) RecordN(tenantID string, res catalog.Resource, n int, at time.Time) {
	for range n {
		s.Record(tenantID, res, at)
	}
}

// PutAccount replaces the tenant's credit account.
func (s *Store) PutAccount(acct credit.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acct.TenantID] = &acct
}

// enter records the call and returns the injected failure, if any. The
// caller must hold the lock.
func (s *Store) enter(op string) error {
	s.calls[op]++
	if s.closed {
		return entitle.ErrStoreClosed
	}
	return s.failures[op]
}

// ──────────────────────────────────────────────────
// Subscription Store implementation
// ──────────────────────────────────────────────────

func (s *Store) GetSubscription(_ context.Context, tenantID string) (*subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(OpGetSubscription); err != nil {
		return nil, err
	}
	if sub, ok := s.subscriptions[tenantID]; ok {
		cp := *sub
		return &cp, nil
	}
	return nil, entitle.ErrSubscriptionNotFound
}

func (s *Store) SaveSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(OpSaveSubscription); err != nil {
		return err
	}
	cp := *sub
	s.subscriptions[sub.TenantID] = &cp
	return nil
}

func (s *Store) ListModules(_ context.Context, tenantID string) ([]*subscription.Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(OpListModules); err != nil {
		return nil, err
	}
	result := make([]*subscription.Module, 0, len(s.modules[tenantID]))
	for _, m := range s.modules[tenantID] {
		cp := *m
		result = append(result, &cp)
	}
	slices.SortFunc(result, func(a, b *subscription.Module) int {
		return cmp.Compare(a.ModuleID, b.ModuleID)
	})
	return result, nil
}

func (s *Store) SaveModule(_ context.Context, m *subscription.Module) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(OpSaveModule); err != nil {
		return err
	}
	byModule, ok := s.modules[m.TenantID]
	if !ok {
		byModule = make(map[catalog.ModuleID]*subscription.Module)
		s.modules[m.TenantID] = byModule
	}
	cp := *m
	if existing, ok := byModule[m.ModuleID]; ok {
		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
	}
	byModule[m.ModuleID] = &cp
	return nil
}

func (s *Store) DeleteModule(_ context.Context, tenantID string, moduleID catalog.ModuleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(OpDeleteModule); err != nil {
		return err
	}
	if _, ok := s.modules[tenantID][moduleID]; !ok {
		return entitle.ErrModuleNotFound
	}
	delete(s.modules[tenantID], moduleID)
	return nil
}

// ──────────────────────────────────────────────────
// Credit Store implementation
// ──────────────────────────────────────────────────

func (s *Store) GetAccount(_ context.Context, tenantID string) (*credit.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(OpGetAccount); err != nil {
		return nil, err
	}
	if acct, ok := s.accounts[tenantID]; ok {
		cp := *acct
		return &cp, nil
	}
	return nil, entitle.ErrCreditAccountNotFound
}

func (s *Store) ApplyDraw(_ context.Context, tenantID string, d credit.Draw, entry *credit.Consumption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(OpApplyDraw); err != nil {
		return err
	}
	acct, ok := s.accounts[tenantID]
	if !ok || !d.Fits(acct) {
		return entitle.ErrCreditConflict
	}

	updated := d.Apply(*acct)
	updated.Touch()
	s.accounts[tenantID] = &updated

	cp := *entry
	s.consumptions = append(s.consumptions, &cp)
	return nil
}

func (s *Store) AddPurchased(_ context.Context, g *credit.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(OpAddPurchased); err != nil {
		return err
	}
	acct := s.ensureAccount(g.TenantID)
	acct.PurchasedBalance += g.Amount
	acct.Touch()

	cp := *g
	s.grants = append(s.grants, &cp)
	return nil
}

func (s *Store) ResetMonthly(_ context.Context, tenantID string, allowance int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(OpResetMonthly); err != nil {
		return err
	}
	acct := s.ensureAccount(tenantID)
	acct.MonthlyAllowance = allowance
	acct.MonthlyUsed = 0
	acct.Touch()
	return nil
}

func (s *Store) ListConsumptions(_ context.Context, tenantID string, opts credit.ListOpts) ([]*credit.Consumption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(OpListConsumptions); err != nil {
		return nil, err
	}

	result := make([]*credit.Consumption, 0)
	for i := len(s.consumptions) - 1; i >= 0; i-- {
		c := s.consumptions[i]
		if c.TenantID != tenantID {
			continue
		}
		if !opts.Since.IsZero() && c.CreatedAt.Before(opts.Since) {
			continue
		}
		cp := *c
		result = append(result, &cp)
	}

	// Apply limit/offset
	start := min(opts.Offset, len(result))
	end := len(result)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return result[start:end], nil
}

func (s *Store) ensureAccount(tenantID string) *credit.Account {
	acct, ok := s.accounts[tenantID]
	if !ok {
		acct = &credit.Account{TenantID: tenantID}
		acct.Entity.CreatedAt = time.Now().UTC()
		s.accounts[tenantID] = acct
	}
	return acct
}

// ──────────────────────────────────────────────────
// Usage Store implementation
// ──────────────────────────────────────────────────

func (s *Store) CountResource(_ context.Context, tenantID string, res catalog.Resource) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(OpCountResource); err != nil {
		return 0, err
	}
	var n int64
	for _, r := range s.records[tenantID] {
		if r.res == res {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountResourceSince(_ context.Context, tenantID string, res catalog.Resource, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(OpCountResourceSince); err != nil {
		return 0, err
	}
	var n int64
	for _, r := range s.records[tenantID] {
		if r.res == res && !r.at.Before(since) {
			n++
		}
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Core methods
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enter(OpPing)
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

