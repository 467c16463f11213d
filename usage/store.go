// Package usage counts the records a tenant owns so quota checks can compare
// live usage against catalog limits.
package usage

import (
	"context"
	"time"

	"github.com/xraph/entitle/catalog"
)

// Store counts resource records. Counts are always live; nothing here is
// cached.
type Store interface {
	CountResource(ctx context.Context, tenantID string, res catalog.Resource) (int64, error)
	// CountResourceSince counts records created at or after since.
	CountResourceSince(ctx context.Context, tenantID string, res catalog.Resource, since time.Time) (int64, error)
}
