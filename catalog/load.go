package catalog

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidCatalog is returned when a catalog document fails validation.
var ErrInvalidCatalog = errors.New("catalog: invalid catalog")

// UnmarshalYAML accepts an integer or the literal "unlimited".
func (l *Limit) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("catalog: limit must be a scalar, got kind %d", value.Kind)
	}
	if strings.EqualFold(strings.TrimSpace(value.Value), "unlimited") {
		*l = Unlimited
		return nil
	}
	n, err := strconv.ParseInt(value.Value, 10, 64)
	if err != nil {
		return fmt.Errorf("catalog: parse limit %q: %w", value.Value, err)
	}
	*l = Limit(n)
	return nil
}

// MarshalYAML renders Unlimited as "unlimited".
func (l Limit) MarshalYAML() (any, error) {
	if l.IsUnlimited() {
		return "unlimited", nil
	}
	return int64(l), nil
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads a YAML catalog from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Validate checks the table for values no lookup can interpret.
func (c *Catalog) Validate() error {
	if _, ok := c.Plans[PlanFree]; !ok {
		return fmt.Errorf("%w: plan %q is required as the fallback row", ErrInvalidCatalog, PlanFree)
	}

	for plan, row := range c.Plans {
		for res, lim := range row {
			if lim < Unlimited {
				return fmt.Errorf("%w: plan %q resource %q has limit %d", ErrInvalidCatalog, plan, res, lim)
			}
		}
	}

	for plan, credits := range c.Credits {
		if credits < 0 {
			return fmt.Errorf("%w: plan %q has negative credit allowance", ErrInvalidCatalog, plan)
		}
	}

	for mod, def := range c.Modules {
		switch def.Period {
		case "", PeriodNone, PeriodMonthly:
		default:
			return fmt.Errorf("%w: module %q has unknown period %q", ErrInvalidCatalog, mod, def.Period)
		}
		if len(def.Tiers) == 0 {
			return fmt.Errorf("%w: module %q declares no tiers", ErrInvalidCatalog, mod)
		}
		for tier, row := range def.Tiers {
			if def.HasQuota() {
				if _, ok := row[def.Quota]; !ok {
					return fmt.Errorf("%w: module %q tier %q is missing quota resource %q",
						ErrInvalidCatalog, mod, tier, def.Quota)
				}
			}
			for res, lim := range row {
				if lim < Unlimited {
					return fmt.Errorf("%w: module %q tier %q resource %q has limit %d",
						ErrInvalidCatalog, mod, tier, res, lim)
				}
			}
		}
	}

	return nil
}
