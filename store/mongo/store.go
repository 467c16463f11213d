package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/entitle"
	"github.com/xraph/entitle/catalog"
	"github.com/xraph/entitle/credit"
	entitlestore "github.com/xraph/entitle/store"
	"github.com/xraph/entitle/subscription"
	"github.com/xraph/entitle/usage"
)

// Collection name constants.
const (
	colSubscriptions = "entitle_subscriptions"
	colModules       = "entitle_module_subscriptions"
	colAccounts      = "entitle_credit_accounts"
	colConsumptions  = "entitle_credit_consumptions"
	colGrants        = "entitle_credit_grants"
)

// compile-time interface check
var _ entitlestore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM. Resource counts
// run against the host application's collections; Table.Name is the
// collection and the column names are document fields.
type Store struct {
	db     *grove.DB
	mdb    *mongodriver.MongoDB
	tbl    usage.Tables
	tblErr error
}

// Option configures a Store.
type Option func(*Store)

// WithTables overlays the default resource collection mapping.
func WithTables(t usage.Tables) Option {
	return func(s *Store) { s.tbl = s.tbl.Merge(t) }
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB, opts ...Option) *Store {
	s := &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
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

// Migrate creates indexes for all entitlement collections.
func (s *Store) Migrate(ctx context.Context) error {
	if s.tblErr != nil {
		return fmt.Errorf("entitle/mongo: %w", s.tblErr)
	}
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("%w: entitle/mongo: %s indexes: %w", entitle.ErrMigrationFailed, col, err)
		}
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
	var m subscriptionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"tenant_id": tenantID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, entitle.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("entitle/mongo: get subscription: %w", err)
	}
	return fromSubscriptionModel(&m)
}

// SaveSubscription upserts on tenant_id. The first document's _id and
// created_at are kept. Two concurrent first writes can both miss the filter
// and race on the unique index; the loser retries once and then matches.
func (s *Store) SaveSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)

	err := s.upsertSubscription(ctx, m)
	if mongo.IsDuplicateKeyError(err) {
		err = s.upsertSubscription(ctx, m)
	}
	if err != nil {
		return fmt.Errorf("entitle/mongo: save subscription: %w", err)
	}
	return nil
}

func (s *Store) upsertSubscription(ctx context.Context, m *subscriptionModel) error {
	_, err := s.mdb.NewUpdate((*subscriptionModel)(nil)).
		Filter(bson.M{"tenant_id": m.TenantID}).
		SetUpdate(bson.M{
			"$set": bson.M{
				"plan":                 m.Plan,
				"status":               m.Status,
				"cancel_at_period_end": m.CancelAtPeriodEnd,
				"current_period_start": m.CurrentPeriodStart,
				"current_period_end":   m.CurrentPeriodEnd,
				"provider_id":          m.ProviderID,
				"metadata":             m.Metadata,
				"updated_at":           m.UpdatedAt,
			},
			"$setOnInsert": bson.M{
				"_id":        m.ID,
				"created_at": m.CreatedAt,
			},
		}).
		Upsert().
		Exec(ctx)
	return err
}

func (s *Store) ListModules(ctx context.Context, tenantID string) ([]*subscription.Module, error) {
	var models []moduleModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"tenant_id": tenantID}).
		Sort(bson.D{{Key: "module_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("entitle/mongo: list modules: %w", err)
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
	_, err := s.mdb.NewUpdate((*moduleModel)(nil)).
		Filter(bson.M{"tenant_id": mod.TenantID, "module_id": string(mod.ModuleID)}).
		SetUpdate(bson.M{
			"$set": bson.M{
				"tier":       string(mod.Tier),
				"updated_at": mod.UpdatedAt,
			},
			"$setOnInsert": bson.M{
				"_id":        mod.ID.String(),
				"created_at": mod.CreatedAt,
			},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("entitle/mongo: save module: %w", err)
	}
	return nil
}

func (s *Store) DeleteModule(ctx context.Context, tenantID string, moduleID catalog.ModuleID) error {
	res, err := s.mdb.NewDelete((*moduleModel)(nil)).
		Filter(bson.M{"tenant_id": tenantID, "module_id": string(moduleID)}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("entitle/mongo: delete module: %w", err)
	}
	if res.DeletedCount() == 0 {
		return entitle.ErrModuleNotFound
	}
	return nil
}

// ==================== Credit Store ====================

func (s *Store) GetAccount(ctx context.Context, tenantID string) (*credit.Account, error) {
	var m accountModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": tenantID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, entitle.ErrCreditAccountNotFound
		}
		return nil, fmt.Errorf("entitle/mongo: get credit account: %w", err)
	}
	return fromAccountModel(&m), nil
}

// ApplyDraw is a single-document conditional update, atomic in MongoDB. The
// log entry is written afterwards; if that insert fails the draw is
// refunded.
func (s *Store) ApplyDraw(ctx context.Context, tenantID string, d credit.Draw, entry *credit.Consumption) error {
	res, err := s.mdb.NewUpdate((*accountModel)(nil)).
		Filter(bson.M{
			"_id":               tenantID,
			"purchased_balance": bson.M{"$gte": d.FromPurchased},
			"$expr": bson.M{"$lte": bson.A{
				bson.M{"$add": bson.A{"$monthly_used", d.FromMonthly}},
				"$monthly_allowance",
			}},
		}).
		SetUpdate(bson.M{
			"$inc": bson.M{
				"monthly_used":      d.FromMonthly,
				"purchased_balance": -d.FromPurchased,
				"total_consumed":    d.Amount,
			},
			"$set": bson.M{"updated_at": now()},
		}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("entitle/mongo: apply draw: %w", err)
	}
	if res.MatchedCount() == 0 {
		return entitle.ErrCreditConflict
	}

	if _, err := s.mdb.NewInsert(toConsumptionModel(entry)).Exec(ctx); err != nil {
		err = fmt.Errorf("entitle/mongo: log consumption: %w", err)
		if rerr := s.refund(ctx, tenantID, d); rerr != nil {
			return errors.Join(err, fmt.Errorf("entitle/mongo: refund draw: %w", rerr))
		}
		return err
	}
	return nil
}

func (s *Store) refund(ctx context.Context, tenantID string, d credit.Draw) error {
	_, err := s.mdb.NewUpdate((*accountModel)(nil)).
		Filter(bson.M{"_id": tenantID}).
		SetUpdate(bson.M{
			"$inc": bson.M{
				"monthly_used":      -d.FromMonthly,
				"purchased_balance": d.FromPurchased,
				"total_consumed":    -d.Amount,
			},
			"$set": bson.M{"updated_at": now()},
		}).
		Exec(ctx)
	return err
}

func (s *Store) AddPurchased(ctx context.Context, g *credit.Grant) error {
	t := now()
	_, err := s.mdb.NewUpdate((*accountModel)(nil)).
		Filter(bson.M{"_id": g.TenantID}).
		SetUpdate(bson.M{
			"$inc":         bson.M{"purchased_balance": g.Amount},
			"$set":         bson.M{"updated_at": t},
			"$setOnInsert": bson.M{"created_at": t},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("entitle/mongo: add purchased credits: %w", err)
	}

	if _, err := s.mdb.NewInsert(toGrantModel(g)).Exec(ctx); err != nil {
		return fmt.Errorf("entitle/mongo: record grant: %w", err)
	}
	return nil
}

func (s *Store) ResetMonthly(ctx context.Context, tenantID string, allowance int64) error {
	t := now()
	_, err := s.mdb.NewUpdate((*accountModel)(nil)).
		Filter(bson.M{"_id": tenantID}).
		SetUpdate(bson.M{
			"$set": bson.M{
				"monthly_allowance": allowance,
				"monthly_used":      int64(0),
				"updated_at":        t,
			},
			"$setOnInsert": bson.M{
				"purchased_balance": int64(0),
				"total_consumed":    int64(0),
				"created_at":        t,
			},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("entitle/mongo: reset monthly credits: %w", err)
	}
	return nil
}

func (s *Store) ListConsumptions(ctx context.Context, tenantID string, opts credit.ListOpts) ([]*credit.Consumption, error) {
	var models []consumptionModel

	filter := bson.M{"tenant_id": tenantID}
	if !opts.Since.IsZero() {
		filter["created_at"] = bson.M{"$gte": opts.Since}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("entitle/mongo: list consumptions: %w", err)
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

	n, err := s.mdb.Collection(tbl.Name).CountDocuments(ctx, bson.M{tbl.Tenant(): tenantID})
	if err != nil {
		return 0, fmt.Errorf("entitle/mongo: count %s: %w", res, err)
	}
	return n, nil
}

func (s *Store) CountResourceSince(ctx context.Context, tenantID string, res catalog.Resource, since time.Time) (int64, error) {
	tbl, err := s.table(res)
	if err != nil {
		return 0, err
	}

	n, err := s.mdb.Collection(tbl.Name).CountDocuments(ctx, bson.M{
		tbl.Tenant():  tenantID,
		tbl.Created(): bson.M{"$gte": since.UTC()},
	})
	if err != nil {
		return 0, fmt.Errorf("entitle/mongo: count %s: %w", res, err)
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

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all entitlement
// collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colSubscriptions: {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colModules: {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "module_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colAccounts: {},
		colConsumptions: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colGrants: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
}
