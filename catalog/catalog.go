// Package catalog holds the static table of plans, add-on modules, tiers and
// the resource limits each of them grants.
//
// The catalog is pure data. Lookups never fail: an unknown plan resolves to
// the free row and an unknown resource resolves to a limit of zero, so a
// missing entry denies rather than allows.
package catalog

import (
	"maps"
	"slices"
)

// Plan is a subscription plan identifier.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// Resource names a countable thing a tenant owns or produces.
type Resource string

const (
	ResourceProduct                 Resource = "product"
	ResourceDocument                Resource = "document"
	ResourceAdminUser               Resource = "admin_user"
	ResourceSupplier                Resource = "supplier"
	ResourceReturnsPerMonth         Resource = "returns_per_month"
	ResourceWarehouseLocations      Resource = "warehouse_locations"
	ResourceSupplierInvitesPerMonth Resource = "supplier_invites_per_month"
)

// ModuleID identifies an add-on module.
type ModuleID string

const (
	ModuleReturnsHub     ModuleID = "returns_hub"
	ModuleWarehouse      ModuleID = "warehouse"
	ModuleSupplierPortal ModuleID = "supplier_portal"
)

// Tier is a module subscription level.
type Tier string

const (
	TierStarter      Tier = "starter"
	TierProfessional Tier = "professional"
	TierBusiness     Tier = "business"
)

// Period scopes how a module's quota resource is counted.
type Period string

const (
	// PeriodNone counts every record the tenant owns.
	PeriodNone Period = "none"
	// PeriodMonthly counts records created since the billing month start.
	PeriodMonthly Period = "monthly"
)

// Limit is a resource ceiling. Unlimited (-1) means no ceiling; every other
// value is a hard ceiling, including zero.
type Limit int64

// Unlimited marks a resource without a ceiling.
const Unlimited Limit = -1

// IsUnlimited reports whether l is the unlimited sentinel.
func (l Limit) IsUnlimited() bool { return l == Unlimited }

// Allows reports whether one more unit fits under l given current usage.
func (l Limit) Allows(current int64) bool {
	if l.IsUnlimited() {
		return true
	}
	return current < int64(l)
}

// Limits maps resources to their ceilings.
type Limits map[Resource]Limit

// ModuleDefinition describes an add-on module and its per-tier limits.
type ModuleDefinition struct {
	Name   string          `json:"name" yaml:"name"`
	Quota  Resource        `json:"quota,omitempty" yaml:"quota,omitempty"`
	Period Period          `json:"period,omitempty" yaml:"period,omitempty"`
	Tiers  map[Tier]Limits `json:"tiers" yaml:"tiers"`
}

// HasQuota reports whether the module declares a primary quota resource.
func (d ModuleDefinition) HasQuota() bool { return d.Quota != "" }

// Catalog is the full plan and module table.
type Catalog struct {
	Plans   map[Plan]Limits               `json:"plans" yaml:"plans"`
	Credits map[Plan]int64                `json:"credits,omitempty" yaml:"credits,omitempty"`
	Modules map[ModuleID]ModuleDefinition `json:"modules" yaml:"modules"`
}

// LimitFor returns the ceiling the plan grants for a resource.
func (c *Catalog) LimitFor(plan Plan, res Resource) Limit {
	return c.planRow(plan)[res]
}

// Limits returns a copy of every limit the plan grants.
func (c *Catalog) Limits(plan Plan) Limits {
	return maps.Clone(c.planRow(plan))
}

// ModuleLimitFor returns the ceiling a module tier grants for a resource.
// Unknown modules, tiers and resources all return zero.
func (c *Catalog) ModuleLimitFor(mod ModuleID, tier Tier, res Resource) Limit {
	def, ok := c.Modules[mod]
	if !ok {
		return 0
	}
	return def.Tiers[tier][res]
}

// ModuleLimits returns a copy of every limit a module tier grants.
func (c *Catalog) ModuleLimits(mod ModuleID, tier Tier) Limits {
	def, ok := c.Modules[mod]
	if !ok {
		return Limits{}
	}
	out := maps.Clone(def.Tiers[tier])
	if out == nil {
		out = Limits{}
	}
	return out
}

// Module returns the definition of a module.
func (c *Catalog) Module(mod ModuleID) (ModuleDefinition, bool) {
	def, ok := c.Modules[mod]
	return def, ok
}

// MonthlyCredits returns the default monthly AI credit allowance of a plan.
func (c *Catalog) MonthlyCredits(plan Plan) int64 {
	if v, ok := c.Credits[plan]; ok {
		return v
	}
	return c.Credits[PlanFree]
}

// Resources returns every plan-level resource named by any plan, sorted.
func (c *Catalog) Resources() []Resource {
	seen := make(map[Resource]struct{})
	for _, row := range c.Plans {
		for res := range row {
			seen[res] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// HasPlan reports whether the plan has its own row.
func (c *Catalog) HasPlan(plan Plan) bool {
	_, ok := c.Plans[plan]
	return ok
}

func (c *Catalog) planRow(plan Plan) Limits {
	if row, ok := c.Plans[plan]; ok {
		return row
	}
	return c.Plans[PlanFree]
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return &Catalog{
		Plans: map[Plan]Limits{
			PlanFree: {
				ResourceProduct:   5,
				ResourceDocument:  10,
				ResourceAdminUser: 1,
				ResourceSupplier:  3,
			},
			PlanPro: {
				ResourceProduct:   50,
				ResourceDocument:  500,
				ResourceAdminUser: 5,
				ResourceSupplier:  25,
			},
			PlanEnterprise: {
				ResourceProduct:   Unlimited,
				ResourceDocument:  Unlimited,
				ResourceAdminUser: Unlimited,
				ResourceSupplier:  Unlimited,
			},
		},
		Credits: map[Plan]int64{
			PlanFree:       10,
			PlanPro:        500,
			PlanEnterprise: 5000,
		},
		Modules: map[ModuleID]ModuleDefinition{
			ModuleReturnsHub: {
				Name:   "Returns Hub",
				Quota:  ResourceReturnsPerMonth,
				Period: PeriodMonthly,
				Tiers: map[Tier]Limits{
					TierStarter:      {ResourceReturnsPerMonth: 50},
					TierProfessional: {ResourceReturnsPerMonth: 300},
					TierBusiness:     {ResourceReturnsPerMonth: Unlimited},
				},
			},
			ModuleWarehouse: {
				Name:   "Warehouse",
				Quota:  ResourceWarehouseLocations,
				Period: PeriodNone,
				Tiers: map[Tier]Limits{
					TierStarter:      {ResourceWarehouseLocations: 1},
					TierProfessional: {ResourceWarehouseLocations: 5},
					TierBusiness:     {ResourceWarehouseLocations: Unlimited},
				},
			},
			ModuleSupplierPortal: {
				Name:   "Supplier Portal",
				Quota:  ResourceSupplierInvitesPerMonth,
				Period: PeriodMonthly,
				Tiers: map[Tier]Limits{
					TierStarter:      {ResourceSupplierInvitesPerMonth: 20},
					TierProfessional: {ResourceSupplierInvitesPerMonth: 100},
					TierBusiness:     {ResourceSupplierInvitesPerMonth: Unlimited},
				},
			},
		},
	}
}
