package postgres

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

	ID                 string            `grove:"id,pk"`
	TenantID           string            `grove:"tenant_id"`
	Plan               string            `grove:"plan"`
	Status             string            `grove:"status"`
	CancelAtPeriodEnd  bool              `grove:"cancel_at_period_end"`
	CurrentPeriodStart *time.Time        `grove:"current_period_start"`
	CurrentPeriodEnd   *time.Time        `grove:"current_period_end"`
	ProviderID         string            `grove:"provider_id"`
	Metadata           map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt          time.Time         `grove:"created_at"`
	UpdatedAt          time.Time         `grove:"updated_at"`
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

	ID        string    `grove:"id,pk"`
	TenantID  string    `grove:"tenant_id"`
	ModuleID  string    `grove:"module_id"`
	Tier      string    `grove:"tier"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func toModuleModel(m *subscription.Module) *moduleModel {
	return &moduleModel{
		ID:        m.ID.String(),
		TenantID:  m.TenantID,
		ModuleID:  string(m.ModuleID),
		Tier:      string(m.Tier),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
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

type accountModel struct {
	grove.BaseModel `grove:"table:entitle_credit_accounts"`

	TenantID         string    `grove:"tenant_id,pk"`
	MonthlyAllowance int64     `grove:"monthly_allowance"`
	MonthlyUsed      int64     `grove:"monthly_used"`
	PurchasedBalance int64     `grove:"purchased_balance"`
	TotalConsumed    int64     `grove:"total_consumed"`
	CreatedAt        time.Time `grove:"created_at"`
	UpdatedAt        time.Time `grove:"updated_at"`
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

	ID            string    `grove:"id,pk"`
	TenantID      string    `grove:"tenant_id"`
	Amount        int64     `grove:"amount"`
	FromMonthly   int64     `grove:"from_monthly"`
	FromPurchased int64     `grove:"from_purchased"`
	OperationType string    `grove:"operation_type"`
	CreatedAt     time.Time `grove:"created_at"`
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
