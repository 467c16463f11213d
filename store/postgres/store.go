package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
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

// Store implements store.Store using PostgreSQL via Grove ORM. Resource
// counts run against the host application's tables in the same database.
type Store struct {
	db  *grove.DB
	pg  *pgdriver.PgDB
	tbl usage.Tables

	// tblErr is the validation error of tbl, reported by Migrate and by
	// every count.
	tblErr error
}

// Option configures a Store.
type Option func(*Store)

// WithTables overlays the default resource table mapping.
func WithTables(t usage.Tables) Option {
	return func(s *Store) { s.tbl = s.tbl.Merge(t) }
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB, opts ...Option) *Store {
	s := &Store{
		db:  db,
		pg:  pgdriver.Unwrap(db),
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
		return fmt.Errorf("entitle/postgres: %w", s.tblErr)
	}
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("entitle/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: entitle/postgres: %w", entitle.ErrMigrationFailed, err)
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
	err := s.pg.NewSelect(m).
		Where("tenant_id = $1", tenantID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, entitle.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return fromSubscriptionModel(m)
}

// SaveSubscription upserts on tenant_id. The first row's id and created_at
// are kept.
func (s *Store) SaveSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	_, err := s.pg.NewInsert(m).
		OnConflict("(tenant_id) DO UPDATE").
		Set("plan = EXCLUDED.plan").
		Set("status = EXCLUDED.status").
		Set("cancel_at_period_end = EXCLUDED.cancel_at_period_end").
		Set("current_period_start = EXCLUDED.current_period_start").
		Set("current_period_end = EXCLUDED.current_period_end").
		Set("provider_id = EXCLUDED.provider_id").
		Set("metadata = EXCLUDED.metadata").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) ListModules(ctx context.Context, tenantID string) ([]*subscription.Module, error) {
	var models []moduleModel
	err := s.pg.NewSelect(&models).
		Where("tenant_id = $1", tenantID).
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
	_, err := s.pg.NewInsert(m).
		OnConflict("(tenant_id, module_id) DO UPDATE").
		Set("tier = EXCLUDED.tier").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) DeleteModule(ctx context.Context, tenantID string, moduleID catalog.ModuleID) error {
	res, err := s.pg.NewDelete((*moduleModel)(nil)).
		Where("tenant_id = $1", tenantID).
		Where("module_id = $2", string(moduleID)).
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
	err := s.pg.NewSelect(m).
		Where("tenant_id = $1", tenantID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, entitle.ErrCreditAccountNotFound
		}
		return nil, err
	}
	return fromAccountModel(m), nil
}

// ApplyDraw runs the guarded balance update and the log insert as one
// statement, so either both land or neither does.
func (s *Store) ApplyDraw(ctx context.Context, tenantID string, d credit.Draw, entry *credit.Consumption) error {
	var inserted string
	err := s.pg.NewRaw(`
		WITH drawn AS (
			UPDATE entitle_credit_accounts
			SET monthly_used = monthly_used + $2,
			    purchased_balance = purchased_balance - $3,
			    total_consumed = total_consumed + $4,
			    updated_at = $5
			WHERE tenant_id = $1
			  AND monthly_used + $2 <= monthly_allowance
			  AND purchased_balance >= $3
			RETURNING tenant_id
		)
		INSERT INTO entitle_credit_consumptions
			(id, tenant_id, amount, from_monthly, from_purchased, operation_type, created_at)
		SELECT $6, tenant_id, $4, $2, $3, $7, $8 FROM drawn
		RETURNING id
	`, tenantID, d.FromMonthly, d.FromPurchased, d.Amount, now(),
		entry.ID.String(), entry.OperationType, entry.CreatedAt).Scan(ctx, &inserted)
	if err != nil {
		if isNoRows(err) {
			return entitle.ErrCreditConflict
		}
		return err
	}
	return nil
}

func (s *Store) AddPurchased(ctx context.Context, g *credit.Grant) error {
	var inserted string
	err := s.pg.NewRaw(`
		WITH acct AS (
			INSERT INTO entitle_credit_accounts (tenant_id, purchased_balance, created_at, updated_at)
			VALUES ($1, $2, $3, $3)
			ON CONFLICT (tenant_id) DO UPDATE
			SET purchased_balance = entitle_credit_accounts.purchased_balance + EXCLUDED.purchased_balance,
			    updated_at = EXCLUDED.updated_at
			RETURNING tenant_id
		)
		INSERT INTO entitle_credit_grants (id, tenant_id, amount, reference, created_at)
		SELECT $4, tenant_id, $2, $5, $6 FROM acct
		RETURNING id
	`, g.TenantID, g.Amount, now(), g.ID.String(), g.Reference, g.CreatedAt).Scan(ctx, &inserted)
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
	_, err := s.pg.NewInsert(m).
		OnConflict("(tenant_id) DO UPDATE").
		Set("monthly_allowance = EXCLUDED.monthly_allowance").
		Set("monthly_used = 0").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) ListConsumptions(ctx context.Context, tenantID string, opts credit.ListOpts) ([]*credit.Consumption, error) {
	var models []consumptionModel
	q := s.pg.NewSelect(&models).Where("tenant_id = $1", tenantID)

	if !opts.Since.IsZero() {
		q = q.Where("created_at >= $2", opts.Since)
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
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`, tbl.Name, tbl.Tenant())
	if err := s.pg.NewRaw(query, tenantID).Scan(ctx, &n); err != nil {
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
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1 AND %s >= $2`,
		tbl.Name, tbl.Tenant(), tbl.Created())
	if err := s.pg.NewRaw(query, tenantID, since.UTC()).Scan(ctx, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// table returns the validated mapping of res. Identifiers are interpolated
// into SQL only after Tables.Validate accepted them.
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
