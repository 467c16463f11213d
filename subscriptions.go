package entitle

import (
	"context"
	"fmt"

	"github.com/xraph/entitle/catalog"
	"github.com/xraph/entitle/id"
	"github.com/xraph/entitle/subscription"
	"github.com/xraph/entitle/types"
)

// ──────────────────────────────────────────────────
// Subscription write paths
// ──────────────────────────────────────────────────
//
// Every write to subscription or module state goes through these methods so
// the tenant's cached snapshot is dropped before the call returns. The
// invalidation runs even when the write fails, since a failed write may
// still have been applied.

// SaveSubscription records the tenant's plan subscription as reported by
// the payment processor.
func (e *Engine) SaveSubscription(ctx context.Context, sub *subscription.Subscription) error {
	if err := validateSubscription(sub); err != nil {
		return err
	}

	if sub.ID.IsNil() {
		sub.ID = id.NewSubscriptionID()
	}
	if sub.Entity.IsZero() {
		sub.Entity = types.NewEntity()
	} else {
		sub.Touch()
	}

	err := e.store.SaveSubscription(ctx, sub)
	e.invalidate(ctx, false, []string{sub.TenantID})
	if err != nil {
		return unavailable("save subscription", err)
	}

	e.logger.Info("subscription saved",
		"tenant_id", sub.TenantID,
		"plan", sub.Plan,
		"status", sub.Status,
	)
	e.plugins.EmitSubscriptionChanged(ctx, sub)
	return nil
}

// Subscription returns the tenant's stored subscription.
func (e *Engine) Subscription(ctx context.Context, tenantID string) (*subscription.Subscription, error) {
	if tenantID == "" {
		return nil, ValidationError{Field: "tenant_id", Message: "required"}
	}
	sub, err := e.store.GetSubscription(ctx, tenantID)
	if err != nil {
		if IsNotFound(err) {
			return nil, err
		}
		return nil, unavailable("get subscription", err)
	}
	return sub, nil
}

// ActivateModule subscribes the tenant to moduleID at tier, replacing any
// existing tier.
func (e *Engine) ActivateModule(ctx context.Context, tenantID string, moduleID catalog.ModuleID, tier catalog.Tier) error {
	if tenantID == "" {
		return ValidationError{Field: "tenant_id", Message: "required"}
	}
	def, ok := e.catalog.Module(moduleID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModule, moduleID)
	}
	if _, ok := def.Tiers[tier]; !ok {
		return ValidationError{Field: "tier", Message: fmt.Sprintf("module %s has no tier %q", moduleID, tier)}
	}

	m := &subscription.Module{
		Entity:   types.NewEntity(),
		ID:       id.NewModuleSubscriptionID(),
		TenantID: tenantID,
		ModuleID: moduleID,
		Tier:     tier,
	}

	err := e.store.SaveModule(ctx, m)
	e.invalidate(ctx, false, []string{tenantID})
	if err != nil {
		return unavailable("save module", err)
	}

	e.logger.Info("module activated",
		"tenant_id", tenantID,
		"module", moduleID,
		"tier", tier,
	)
	e.plugins.EmitModuleChanged(ctx, tenantID, moduleID, tier)
	return nil
}

// DeactivateModule removes the tenant's subscription to moduleID.
// Deactivating an inactive module is not an error.
func (e *Engine) DeactivateModule(ctx context.Context, tenantID string, moduleID catalog.ModuleID) error {
	if tenantID == "" {
		return ValidationError{Field: "tenant_id", Message: "required"}
	}

	err := e.store.DeleteModule(ctx, tenantID, moduleID)
	e.invalidate(ctx, false, []string{tenantID})
	if err != nil && !IsNotFound(err) {
		return unavailable("delete module", err)
	}

	e.logger.Info("module deactivated",
		"tenant_id", tenantID,
		"module", moduleID,
	)
	e.plugins.EmitModuleChanged(ctx, tenantID, moduleID, "")
	return nil
}

func validateSubscription(sub *subscription.Subscription) error {
	switch {
	case sub == nil:
		return ValidationError{Field: "subscription", Message: "required"}
	case sub.TenantID == "":
		return ValidationError{Field: "tenant_id", Message: "required"}
	case sub.Plan == "":
		return ValidationError{Field: "plan", Message: "required"}
	}

	switch sub.Status {
	case subscription.StatusActive, subscription.StatusPastDue, subscription.StatusCanceled:
		return nil
	default:
		return ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", sub.Status)}
	}
}
