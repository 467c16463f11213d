package entitle

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/entitle/credit"
	"github.com/xraph/entitle/id"
)

// consumeAttempts is the first write plus one retry after a guard conflict.
const consumeAttempts = 2

// ──────────────────────────────────────────────────
// Credit ledger
// ──────────────────────────────────────────────────

// ConsumeCredits draws amount credits for operationType, monthly allowance
// first. The balance is read from the store, never from the snapshot cache.
//
// Insufficient balance is not an error: the result reports Success false
// and nothing is written. A write that loses a race with another consumer
// is re-read and retried once; a second loss fails with an error matching
// both ErrStoreUnavailable and ErrConcurrentWrite. On success the tenant's
// cached snapshot is invalidated before returning.
func (e *Engine) ConsumeCredits(ctx context.Context, amount int64, tenantID, operationType string) (credit.ConsumptionResult, error) {
	switch {
	case amount <= 0:
		return credit.ConsumptionResult{}, ValidationError{Field: "amount", Message: "must be positive"}
	case tenantID == "":
		return credit.ConsumptionResult{}, ValidationError{Field: "tenant_id", Message: "required"}
	case operationType == "":
		return credit.ConsumptionResult{}, ValidationError{Field: "operation_type", Message: "required"}
	}

	for attempt := 1; attempt <= consumeAttempts; attempt++ {
		acct, err := e.account(ctx, tenantID)
		if err != nil {
			e.plugins.EmitStoreError(ctx, "consume credits", err)
			return credit.ConsumptionResult{}, err
		}

		draw, ok := credit.Plan(acct, amount)
		if !ok {
			available := acct.Available()
			e.logger.Debug("insufficient credits",
				"tenant_id", tenantID,
				"operation", operationType,
				"amount", amount,
				"available", available,
			)
			e.plugins.EmitCreditsInsufficient(ctx, tenantID, operationType, amount, available)
			return credit.ConsumptionResult{Success: false, Remaining: available}, nil
		}

		entry := &credit.Consumption{
			ID:            id.NewConsumptionID(),
			TenantID:      tenantID,
			Amount:        amount,
			FromMonthly:   draw.FromMonthly,
			FromPurchased: draw.FromPurchased,
			OperationType: operationType,
			CreatedAt:     e.now().UTC(),
		}

		err = e.store.ApplyDraw(ctx, tenantID, draw, entry)
		if err == nil {
			after := draw.Apply(*acct)
			remaining := after.Available()

			e.invalidate(ctx, false, []string{tenantID})

			e.logger.Debug("credits consumed",
				"tenant_id", tenantID,
				"operation", operationType,
				"from_monthly", draw.FromMonthly,
				"from_purchased", draw.FromPurchased,
				"remaining", remaining,
			)
			e.plugins.EmitCreditsConsumed(ctx, entry, remaining)
			return credit.ConsumptionResult{Success: true, Remaining: remaining}, nil
		}

		if !errors.Is(err, ErrCreditConflict) {
			err = unavailable("apply credit draw", err)
			e.plugins.EmitStoreError(ctx, "consume credits", err)
			return credit.ConsumptionResult{}, err
		}

		e.logger.Debug("credit balance changed during draw",
			"tenant_id", tenantID,
			"attempt", attempt,
		)
	}

	err := fmt.Errorf("%w: consume credits for %s: %w", ErrStoreUnavailable, tenantID, ErrConcurrentWrite)
	e.plugins.EmitStoreError(ctx, "consume credits", err)
	return credit.ConsumptionResult{}, err
}

// Account returns the tenant's authoritative credit balance. A tenant
// without an account has an empty one.
func (e *Engine) Account(ctx context.Context, tenantID string) (*credit.Account, error) {
	if tenantID == "" {
		return nil, ValidationError{Field: "tenant_id", Message: "required"}
	}
	return e.account(ctx, tenantID)
}

func (e *Engine) account(ctx context.Context, tenantID string) (*credit.Account, error) {
	acct, err := e.store.GetAccount(ctx, tenantID)
	switch {
	case err == nil:
		return acct, nil
	case IsNotFound(err):
		return &credit.Account{TenantID: tenantID}, nil
	default:
		return nil, unavailable("get credit account", err)
	}
}

// GrantCredits adds purchased credits to the tenant's balance. The cached
// snapshot is invalidated whether or not the write succeeded.
func (e *Engine) GrantCredits(ctx context.Context, tenantID string, amount int64, reference string) (*credit.Grant, error) {
	switch {
	case amount <= 0:
		return nil, ValidationError{Field: "amount", Message: "must be positive"}
	case tenantID == "":
		return nil, ValidationError{Field: "tenant_id", Message: "required"}
	}

	g := &credit.Grant{
		ID:        id.NewCreditGrantID(),
		TenantID:  tenantID,
		Amount:    amount,
		Reference: reference,
		CreatedAt: e.now().UTC(),
	}

	err := e.store.AddPurchased(ctx, g)
	e.invalidate(ctx, false, []string{tenantID})
	if err != nil {
		return nil, unavailable("add purchased credits", err)
	}

	e.plugins.EmitCreditsGranted(ctx, g)
	return g, nil
}

// ResetMonthlyCredits starts a new billing cycle for the tenant: the
// allowance is set and monthly usage returns to zero. Purchased credits are
// untouched.
func (e *Engine) ResetMonthlyCredits(ctx context.Context, tenantID string, allowance int64) error {
	switch {
	case allowance < 0:
		return ValidationError{Field: "allowance", Message: "must not be negative"}
	case tenantID == "":
		return ValidationError{Field: "tenant_id", Message: "required"}
	}

	err := e.store.ResetMonthly(ctx, tenantID, allowance)
	e.invalidate(ctx, false, []string{tenantID})
	if err != nil {
		return unavailable("reset monthly credits", err)
	}

	e.logger.Info("monthly credits reset",
		"tenant_id", tenantID,
		"allowance", allowance,
	)
	return nil
}

// ResetMonthlyCreditsForPlan resets the tenant's cycle using the catalog
// allowance of its effective plan, read from the store.
func (e *Engine) ResetMonthlyCreditsForPlan(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return ValidationError{Field: "tenant_id", Message: "required"}
	}

	sub, err := e.store.GetSubscription(ctx, tenantID)
	if err != nil && !IsNotFound(err) {
		return unavailable("get subscription", err)
	}

	return e.ResetMonthlyCredits(ctx, tenantID, e.catalog.MonthlyCredits(sub.EffectivePlan()))
}

// ListConsumptions returns the tenant's consumption log, newest first.
func (e *Engine) ListConsumptions(ctx context.Context, tenantID string, opts credit.ListOpts) ([]*credit.Consumption, error) {
	if tenantID == "" {
		return nil, ValidationError{Field: "tenant_id", Message: "required"}
	}
	out, err := e.store.ListConsumptions(ctx, tenantID, opts)
	if err != nil {
		return nil, unavailable("list consumptions", err)
	}
	return out, nil
}
