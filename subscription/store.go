package subscription

import (
	"context"

	"github.com/xraph/entitle/catalog"
)

type Store interface {
	// GetSubscription returns the tenant's subscription or a not-found error.
	GetSubscription(ctx context.Context, tenantID string) (*Subscription, error)
	// SaveSubscription inserts or replaces the tenant's subscription.
	SaveSubscription(ctx context.Context, s *Subscription) error
	ListModules(ctx context.Context, tenantID string) ([]*Module, error)
	// SaveModule inserts or replaces the tenant's subscription to m.ModuleID.
	SaveModule(ctx context.Context, m *Module) error
	DeleteModule(ctx context.Context, tenantID string, moduleID catalog.ModuleID) error
}
