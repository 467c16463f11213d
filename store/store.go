package store

import (
	"context"

	"github.com/xraph/entitle/credit"
	"github.com/xraph/entitle/subscription"
	"github.com/xraph/entitle/usage"
)

// Store is the unified storage interface of the engine.
//
// Backends return the not-found sentinels of the root package for missing
// records; every other error is treated as an infrastructure failure.
type Store interface {
	subscription.Store
	credit.Store
	usage.Store

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
