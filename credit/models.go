// Package credit models a tenant's metered AI credit balance and the
// monthly-first draw policy applied when credits are consumed.
package credit

import (
	"time"

	"github.com/xraph/entitle/id"
	"github.com/xraph/entitle/types"
)

// Account is the authoritative credit balance of one tenant. It holds two
// buckets: a monthly allowance that resets each billing cycle and a
// purchased balance that does not expire.
type Account struct {
	types.Entity
	TenantID         string `json:"tenant_id"`
	MonthlyAllowance int64  `json:"monthly_allowance"`
	MonthlyUsed      int64  `json:"monthly_used"`
	PurchasedBalance int64  `json:"purchased_balance"`
	TotalConsumed    int64  `json:"total_consumed"`
}

// MonthlyAvailable returns the unused part of the monthly allowance.
func (a *Account) MonthlyAvailable() int64 {
	if a == nil {
		return 0
	}
	return max(0, a.MonthlyAllowance-a.MonthlyUsed)
}

// Available returns every credit the tenant can still spend.
func (a *Account) Available() int64 {
	if a == nil {
		return 0
	}
	return a.MonthlyAvailable() + max(0, a.PurchasedBalance)
}

// Consumption is an immutable log entry written for every successful draw.
type Consumption struct {
	ID            id.ConsumptionID `json:"id"`
	TenantID      string           `json:"tenant_id"`
	Amount        int64            `json:"amount"`
	FromMonthly   int64            `json:"from_monthly"`
	FromPurchased int64            `json:"from_purchased"`
	OperationType string           `json:"operation_type"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Grant records a purchased credit top-up.
type Grant struct {
	ID        id.CreditGrantID `json:"id"`
	TenantID  string           `json:"tenant_id"`
	Amount    int64            `json:"amount"`
	Reference string           `json:"reference,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// ConsumptionResult is returned by a consume call. Success is false only
// when the balance was insufficient; infrastructure failures are errors.
type ConsumptionResult struct {
	Success   bool  `json:"success"`
	Remaining int64 `json:"remaining"`
}
