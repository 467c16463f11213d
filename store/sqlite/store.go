package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/entitle"
	"github.com/xraph/entitle/catalog"
	"github.com/xraph/entitle/credit"
	entitlestore "github.com/xraph/entitle/store"
	"github.com/xraph/entitle/subscription"
	"github.com/xraph/entitle/usage"
)

// compile-time interface check
var _ entitlestore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db     *grove.DB
	sdb    *sqlitedriver.SqliteDB
	tbl    usage.Tables
	tblErr error
}

// Option configures a Store.
type Option func(*Store)

// WithTables overlays the default resource table mapping.
func WithTables(t usage.Tables) Option {
	return func(s *Store) { s.tbl = s.tbl.Merge(t) }
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB, opts ...Option) *Store {
	s := &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
		tbl: usage.DefaultTables(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tblErr = s.tbl.Validate()
	return s
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	if s.tblErr != nil {
		return fmt.Errorf("entitle/sqlite: %w", s.tblErr)
	}
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("entitle/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: entitle/sqlite: %w", entitle.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Subscription Store ====================

func (s *Store) GetSubscription(ctx context.Context, tenantID string) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.sdb.NewSelect(m).
		Where("tenant_id = ?", tenantID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, entitle.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) SaveSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	_, err := s.sdb.NewInsert(m).
		OnConflict("(tenant_id) DO UPDATE").
		Set("plan = excluded.plan").
		Set("status = excluded.status").
		Set("cancel_at_period_end = excluded.cancel_at_period_end").
		Set("current_period_start = excluded.current_period_start").
		Set("current_period_end = excluded.current_period_end").
		Set("provider_id = excluded.provider_id").
		Set("metadata = excluded.metadata").
		Set("updated_at = excluded.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) ListModules(ctx context.Context, tenantID string) ([]*subscription.Module, error) {
	var models []moduleModel
	err := s.sdb.NewSelect(&models).
		Where("tenant_id = ?", tenantID).
		OrderExpr("module_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*subscription.Module, len(models))
	for i := range models {
		m, err := fromModuleModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = m
	}
	return result, nil
}

func (s *Store) SaveModule(ctx context.Context, mod *subscription.Module) error {
	m := toModuleModel(mod)
	_, err := s.sdb.NewInsert(m).
		OnConflict("(tenant_id, module_id) DO UPDATE").
		Set("tier = excluded.tier").
		Set("updated_at = excluded.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) DeleteModule(ctx context.Context, tenantID string, moduleID catalog.ModuleID) error {
	res, err := s.sdb.NewDelete((*moduleModel)(nil)).
		Where("tenant_id = ?", tenantID).
		Where("module_id = ?", string(moduleID)).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return entitle.ErrModuleNotFound
	}
	return nil
}

// ==================== Credit Store ====================

func (s *Store) GetAccount(ctx context.Context, tenantID string) (*credit.Account, error) {
	m := new(accountModel)
	err := s.sdb.NewSelect(m).
		Where("tenant_id = ?", tenantID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, entitle.ErrCreditAccountNotFound
		}
		return nil, err
	}
	return fromAccountModel(m), nil
}

// ApplyDraw applies the guarded update first; SQLite serializes writers, so
// the guard sees the latest committed balance. If the log insert then
// fails, the draw is refunded before the error is returned.
func (s *Store) ApplyDraw(ctx context.Context, tenantID string, d credit.Draw, entry *credit.Consumption) error {
	res, err := s.sdb.NewUpdate((*accountModel)(nil)).
		Set("monthly_used = monthly_used + ?", d.FromMonthly).
		Set("purchased_balance = purchased_balance - ?", d.FromPurchased).
		Set("total_consumed = total_consumed + ?", d.Amount).
		Set("updated_at = ?", now()).
		Where("tenant_id = ?", tenantID).
		Where("monthly_used + ? <= monthly_allowance", d.FromMonthly).
		Where("purchased_balance >= ?", d.FromPurchased).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return entitle.ErrCreditConflict
	}

	if _, err := s.sdb.NewInsert(toConsumptionModel(entry)).Exec(ctx); err != nil {
		if rerr := s.refund(ctx, tenantID, d); rerr != nil {
			return errors.Join(err, fmt.Errorf("refund draw: %w", rerr))
		}
		return err
	}
	return nil
}

func (s *Store) refund(ctx context.Context, tenantID string, d credit.Draw) error {
	_, err := s.sdb.NewUpdate((*accountModel)(nil)).
		Set("monthly_used = monthly_used - ?", d.FromMonthly).
		Set("purchased_balance = purchased_balance + ?", d.FromPurchased).
		Set("total_consumed = total_consumed - ?", d.Amount).
		Set("updated_at = ?", now()).
		Where("tenant_id = ?", tenantID).
		Exec(ctx)
	return err
}

func (s *Store) AddPurchased(ctx context.Context, g *credit.Grant) error {
	t := now()
	acct := &accountModel{
		TenantID:         g.TenantID,
		PurchasedBalance: g.Amount,
		CreatedAt:        t,
		UpdatedAt:        t,
	}
	_, err := s.sdb.NewInsert(acct).
		OnConflict("(tenant_id) DO UPDATE").
		Set("purchased_balance = entitle_credit_accounts.purchased_balance + excluded.purchased_balance").
		Set("updated_at = excluded.updated_at").
		Exec(ctx)
	if err != nil {
		return err
	}

	_, err = s.sdb.NewInsert(toGrantModel(g)).Exec(ctx)
	return err
}

func (s *Store) ResetMonthly(ctx context.Context, tenantID string, allowance int64) error {
	t := now()
	m := &accountModel{
		TenantID:         tenantID,
		MonthlyAllowance: allowance,
		CreatedAt:        t,
		UpdatedAt:        t,
	}
	_, err := s.sdb.NewInsert(m).
		OnConflict("(tenant_id) DO UPDATE").
		Set("monthly_allowance = excluded.monthly_allowance").
		Set("monthly_used = 0").
		Set("updated_at = excluded.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) ListConsumptions(ctx context.Context, tenantID string, opts credit.ListOpts) ([]*credit.Consumption, error) {
	var models []consumptionModel
	q := s.sdb.NewSelect(&models).Where("tenant_id = ?", tenantID)

	if !opts.Since.IsZero() {
		q = q.Where("created_at >= ?", opts.Since)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*credit.Consumption, len(models))
	for i := range models {
		c, err := fromConsumptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}

// ==================== Usage Store ====================

func (s *Store) CountResource(ctx context.Context, tenantID string, res catalog.Resource) (int64, error) {
	tbl, err := s.table(res)
	if err != nil {
		return 0, err
	}

	var n int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = ?`, tbl.Name, tbl.Tenant())
	if err := s.sdb.NewRaw(query, tenantID).Scan(ctx, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) CountResourceSince(ctx context.Context, tenantID string, res catalog.Resource, since time.Time) (int64, error) {
	tbl, err := s.table(res)
	if err != nil {
		return 0, err
	}

	var n int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = ? AND %s >= ?`,
		tbl.Name, tbl.Tenant(), tbl.Created())
	if err := s.sdb.NewRaw(query, tenantID, since.UTC()).Scan(ctx, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) table(res catalog.Resource) (usage.Table, error) {
	if s.tblErr != nil {
		return usage.Table{}, s.tblErr
	}
	tbl, ok := s.tbl.Lookup(res)
	if !ok {
		return usage.Table{}, fmt.Errorf("%w: %s", entitle.ErrResourceNotMapped, res)
	}
	return tbl, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
