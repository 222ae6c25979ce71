// Package catalog provides the brand, market and affected-system catalogs.
package catalog

import (
	"slices"
)

// StatusPage links a brand to its public status page.
type StatusPage struct {
	Brand  string `json:"brand"`
	URL    string `json:"url"`
	Region string `json:"region"`
}

// Catalog is the immutable set of names the portal accepts.
type Catalog struct {
	Brands      []string     `json:"brands"`
	Markets     []string     `json:"markets"`
	Systems     []string     `json:"systems"`
	Severities  []string     `json:"severities"`
	Statuses    []string     `json:"statuses"`
	StatusPages []StatusPage `json:"statusPages"`
}

// New creates a catalog. The slices are copied.
func New(brands, markets, systems []string, pages []StatusPage) *Catalog {
	return &Catalog{
		Brands:      slices.Clone(brands),
		Markets:     slices.Clone(markets),
		Systems:     slices.Clone(systems),
		Severities:  []string{"P1", "P2", "P3"},
		Statuses:    []string{"Active", "Investigating", "Monitoring", "Resolved"},
		StatusPages: slices.Clone(pages),
	}
}

// HasBrand reports whether name is a known brand.
func (c *Catalog) HasBrand(name string) bool {
	return slices.Contains(c.Brands, name)
}

// HasMarket reports whether name is a known market.
func (c *Catalog) HasMarket(name string) bool {
	return slices.Contains(c.Markets, name)
}

// HasSystem reports whether name is a known affected system.
func (c *Catalog) HasSystem(name string) bool {
	return slices.Contains(c.Systems, name)
}

// StatusPagesFor returns the status pages of the given brands, in catalog order.
func (c *Catalog) StatusPagesFor(brands []string) []StatusPage {
	out := make([]StatusPage, 0, len(c.StatusPages))
	for _, p := range c.StatusPages {
		if slices.Contains(brands, p.Brand) {
			out = append(out, p)
		}
	}
	return out
}
