package credit

import (
	"context"
	"time"
)

type Store interface {
	// GetAccount returns the authoritative balance or a not-found error.
	GetAccount(ctx context.Context, tenantID string) (*Account, error)

	// ApplyDraw atomically applies d if, at write time, the monthly bucket
	// still has room for d.FromMonthly and the purchased bucket holds at
	// least d.FromPurchased, and appends entry to the consumption log in the
	// same unit of work. It returns a conflict error when the guard fails
	// and nothing was written.
	ApplyDraw(ctx context.Context, tenantID string, d Draw, entry *Consumption) error

	// AddPurchased increments the purchased bucket, creating the account if
	// needed, and records the grant.
	AddPurchased(ctx context.Context, g *Grant) error

	// ResetMonthly sets the allowance and clears monthly usage, creating the
	// account if needed.
	ResetMonthly(ctx context.Context, tenantID string, allowance int64) error

	ListConsumptions(ctx context.Context, tenantID string, opts ListOpts) ([]*Consumption, error)
}

type ListOpts struct {
	Since  time.Time
	Limit  int
	Offset int
}
