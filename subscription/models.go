package subscription

import (
	"time"

	"github.com/xraph/entitle/catalog"
	"github.com/xraph/entitle/id"
	"github.com/xraph/entitle/types"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

// Subscription is the tenant's plan subscription as last reported by the
// payment processor. At most one exists per tenant.
type Subscription struct {
	types.Entity
	ID                 id.SubscriptionID `json:"id"`
	TenantID           string            `json:"tenant_id"`
	Plan               catalog.Plan      `json:"plan"`
	Status             Status            `json:"status"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CurrentPeriodStart *time.Time        `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time        `json:"current_period_end,omitempty"`
	ProviderID         string            `json:"provider_id,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// IsActive reports whether the subscription grants its plan's limits.
// A subscription scheduled to cancel at period end stays active until the
// processor reports it canceled.
func (s *Subscription) IsActive() bool {
	return s != nil && s.Status == StatusActive
}

// EffectivePlan returns the plan whose limits apply: the subscribed plan
// while active, the free plan otherwise.
func (s *Subscription) EffectivePlan() catalog.Plan {
	if !s.IsActive() || s.Plan == "" {
		return catalog.PlanFree
	}
	return s.Plan
}

// Module is an active add-on module subscription. Deactivation deletes the
// record; there is no inactive state.
type Module struct {
	types.Entity
	ID       id.ModuleSubscriptionID `json:"id"`
	TenantID string                  `json:"tenant_id"`
	ModuleID catalog.ModuleID        `json:"module_id"`
	Tier     catalog.Tier            `json:"tier"`
}
