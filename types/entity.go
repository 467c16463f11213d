// Package types provides common types shared by persisted entitlement records.
package types

import "time"

// Entity carries the bookkeeping timestamps of a persisted record.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity creates a new Entity with current timestamps.
func NewEntity() Entity {
	now := time.Now().UTC()
	return Entity{
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch updates the UpdatedAt timestamp to now.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}

// IsZero reports whether the entity was never stamped.
func (e Entity) IsZero() bool {
	return e.CreatedAt.IsZero()
}
