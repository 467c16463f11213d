package usage

import (
	"errors"
	"fmt"
	"maps"
	"regexp"

	"github.com/xraph/entitle/catalog"
)

// ErrInvalidTable is returned when a table mapping names an unsafe identifier.
var ErrInvalidTable = errors.New("usage: invalid table mapping")

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Table locates the records of one resource in the host application's
// database or document store.
type Table struct {
	Name          string `json:"name" yaml:"name" mapstructure:"name"`
	TenantColumn  string `json:"tenant_column,omitempty" yaml:"tenant_column,omitempty" mapstructure:"tenant_column"`
	CreatedColumn string `json:"created_column,omitempty" yaml:"created_column,omitempty" mapstructure:"created_column"`
}

// Tenant returns the tenant column, defaulting to tenant_id.
func (t Table) Tenant() string {
	if t.TenantColumn == "" {
		return "tenant_id"
	}
	return t.TenantColumn
}

// Created returns the creation timestamp column, defaulting to created_at.
func (t Table) Created() string {
	if t.CreatedColumn == "" {
		return "created_at"
	}
	return t.CreatedColumn
}

// Tables maps each countable resource to where its records live.
type Tables map[catalog.Resource]Table

// DefaultTables returns the conventional mapping for the built-in catalog.
func DefaultTables() Tables {
	return Tables{
		catalog.ResourceProduct:                 {Name: "products"},
		catalog.ResourceDocument:                {Name: "documents"},
		catalog.ResourceAdminUser:               {Name: "admin_users"},
		catalog.ResourceSupplier:                {Name: "suppliers"},
		catalog.ResourceReturnsPerMonth:         {Name: "returns"},
		catalog.ResourceWarehouseLocations:      {Name: "warehouse_locations"},
		catalog.ResourceSupplierInvitesPerMonth: {Name: "supplier_invites"},
	}
}

// Lookup returns the mapping for res. ok is false when res is unmapped.
func (t Tables) Lookup(res catalog.Resource) (Table, bool) {
	tbl, ok := t[res]
	return tbl, ok
}

// Validate rejects mappings whose identifiers cannot be interpolated
// safely into a query.
func (t Tables) Validate() error {
	for res, tbl := range t {
		for _, ident := range []string{tbl.Name, tbl.Tenant(), tbl.Created()} {
			if !identRe.MatchString(ident) {
				return fmt.Errorf("%w: resource %q identifier %q", ErrInvalidTable, res, ident)
			}
		}
	}
	return nil
}

// Merge returns t overlaid with other.
func (t Tables) Merge(other Tables) Tables {
	out := make(Tables, len(t)+len(other))
	maps.Copy(out, t)
	maps.Copy(out, other)
	return out
}
