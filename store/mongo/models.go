package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/entitle/catalog"
	"github.com/xraph/entitle/credit"
	"github.com/xraph/entitle/id"
	"github.com/xraph/entitle/subscription"
	"github.com/xraph/entitle/types"
)

// ==================== Subscription models ====================

type subscriptionModel struct {
	grove.BaseModel `grove:"table:entitle_subscriptions"`

	ID                 string            `grove:"id,pk"                bson:"_id"`
	TenantID           string            `grove:"tenant_id"            bson:"tenant_id"`
	Plan               string            `grove:"plan"                 bson:"plan"`
	Status             string            `grove:"status"               bson:"status"`
	CancelAtPeriodEnd  bool              `grove:"cancel_at_period_end" bson:"cancel_at_period_end"`
	CurrentPeriodStart *time.Time        `grove:"current_period_start" bson:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time        `grove:"current_period_end"   bson:"current_period_end,omitempty"`
	ProviderID         string            `grove:"provider_id"          bson:"provider_id"`
	Metadata           map[string]string `grove:"metadata"             bson:"metadata,omitempty"`
	CreatedAt          time.Time         `grove:"created_at"           bson:"created_at"`
	UpdatedAt          time.Time         `grove:"updated_at"           bson:"updated_at"`
}

func toSubscriptionModel(s *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:                 s.ID.String(),
		TenantID:           s.TenantID,
		Plan:               string(s.Plan),
		Status:             string(s.Status),
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
		ProviderID:         s.ProviderID,
		Metadata:           s.Metadata,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, err
	}

	return &subscription.Subscription{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                 subID,
		TenantID:           m.TenantID,
		Plan:               catalog.Plan(m.Plan),
		Status:             subscription.Status(m.Status),
		CancelAtPeriodEnd:  m.CancelAtPeriodEnd,
		CurrentPeriodStart: m.CurrentPeriodStart,
		CurrentPeriodEnd:   m.CurrentPeriodEnd,
		ProviderID:         m.ProviderID,
		Metadata:           m.Metadata,
	}, nil
}

// ==================== Module subscription models ====================

type moduleModel struct {
	grove.BaseModel `grove:"table:entitle_module_subscriptions"`

	ID        string    `grove:"id,pk"      bson:"_id"`
	TenantID  string    `grove:"tenant_id"  bson:"tenant_id"`
	ModuleID  string    `grove:"module_id"  bson:"module_id"`
	Tier      string    `grove:"tier"       bson:"tier"`
	CreatedAt time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
}

func fromModuleModel(m *moduleModel) (*subscription.Module, error) {
	modID, err := id.ParseModuleSubscriptionID(m.ID)
	if err != nil {
		return nil, err
	}

	return &subscription.Module{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:       modID,
		TenantID: m.TenantID,
		ModuleID: catalog.ModuleID(m.ModuleID),
		Tier:     catalog.Tier(m.Tier),
	}, nil
}

// ==================== Credit models ====================

// accountModel is keyed by tenant so the guarded draw filters on _id.
type accountModel struct {
	grove.BaseModel `grove:"table:entitle_credit_accounts"`

	TenantID         string    `grove:"tenant_id,pk"      bson:"_id"`
	MonthlyAllowance int64     `grove:"monthly_allowance" bson:"monthly_allowance"`
	MonthlyUsed      int64     `grove:"monthly_used"      bson:"monthly_used"`
	PurchasedBalance int64     `grove:"purchased_balance" bson:"purchased_balance"`
	TotalConsumed    int64     `grove:"total_consumed"    bson:"total_consumed"`
	CreatedAt        time.Time `grove:"created_at"        bson:"created_at"`
	UpdatedAt        time.Time `grove:"updated_at"        bson:"updated_at"`
}

func fromAccountModel(m *accountModel) *credit.Account {
	return &credit.Account{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		TenantID:         m.TenantID,
		MonthlyAllowance: m.MonthlyAllowance,
		MonthlyUsed:      m.MonthlyUsed,
		PurchasedBalance: m.PurchasedBalance,
		TotalConsumed:    m.TotalConsumed,
	}
}

type consumptionModel struct {
	grove.BaseModel `grove:"table:entitle_credit_consumptions"`

	ID            string    `grove:"id,pk"          bson:"_id"`
	TenantID      string    `grove:"tenant_id"      bson:"tenant_id"`
	Amount        int64     `grove:"amount"         bson:"amount"`
	FromMonthly   int64     `grove:"from_monthly"   bson:"from_monthly"`
	FromPurchased int64     `grove:"from_purchased" bson:"from_purchased"`
	OperationType string    `grove:"operation_type" bson:"operation_type"`
	CreatedAt     time.Time `grove:"created_at"     bson:"created_at"`
}

func toConsumptionModel(c *credit.Consumption) *consumptionModel {
	return &consumptionModel{
		ID:            c.ID.String(),
		TenantID:      c.TenantID,
		Amount:        c.Amount,
		FromMonthly:   c.FromMonthly,
		FromPurchased: c.FromPurchased,
		OperationType: c.OperationType,
		CreatedAt:     c.CreatedAt,
	}
}

func fromConsumptionModel(m *consumptionModel) (*credit.Consumption, error) {
	consID, err := id.ParseConsumptionID(m.ID)
	if err != nil {
		return nil, err
	}

	return &credit.Consumption{
		ID:            consID,
		TenantID:      m.TenantID,
		Amount:        m.Amount,
		FromMonthly:   m.FromMonthly,
		FromPurchased: m.FromPurchased,
		OperationType: m.OperationType,
		CreatedAt:     m.CreatedAt,
	}, nil
}

type grantModel struct {
	grove.BaseModel `grove:"table:entitle_credit_grants"`

	ID        string    `grove:"id,pk"      bson:"_id"`
	TenantID  string    `grove:"tenant_id"  bson:"tenant_id"`
	Amount    int64     `grove:"amount"     bson:"amount"`
	Reference string    `grove:"reference"  bson:"reference"`
	CreatedAt time.Time `grove:"created_at" bson:"created_at"`
}

func toGrantModel(g *credit.Grant) *grantModel {
	return &grantModel{
		ID:        g.ID.String(),
		TenantID:  g.TenantID,
		Amount:    g.Amount,
		Reference: g.Reference,
		CreatedAt: g.CreatedAt,
	}
}
