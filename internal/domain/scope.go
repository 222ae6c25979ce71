package domain

import (
	"errors"
	"slices"
)

// FilterAll is the wildcard value of every FilterCriteria field.
const FilterAll = "all"

// Filter criteria errors.
var (
	ErrInvalidSeverityFilter = errors.New("invalid severity filter")
	ErrInvalidStatusFilter   = errors.New("invalid status filter")
)

// AccessScope is the set of brands and markets a stakeholder may view.
type AccessScope struct {
	Brands  []string `json:"brands" koanf:"brands" validate:"required,min=1,unique,dive,required"`
	Markets []string `json:"markets" koanf:"markets" validate:"unique,dive,required"`
}

// AllowsBrand reports whether the brand is visible within the scope.
func (s AccessScope) AllowsBrand(brand string) bool {
	return slices.Contains(s.Brands, brand)
}

// AllowsMarket reports whether the market is visible within the scope.
func (s AccessScope) AllowsMarket(market string) bool {
	return slices.Contains(s.Markets, market)
}

// Intersect narrows s to the brands and markets also present in other,
// keeping the order of s.
func (s AccessScope) Intersect(other AccessScope) AccessScope {
	out := AccessScope{
		Brands:  make([]string, 0, len(s.Brands)),
		Markets: make([]string, 0, len(s.Markets)),
	}
	for _, b := range s.Brands {
		if other.AllowsBrand(b) {
			out.Brands = append(out.Brands, b)
		}
	}
	for _, m := range s.Markets {
		if other.AllowsMarket(m) {
			out.Markets = append(out.Markets, m)
		}
	}
	return out
}

// FilterCriteria holds the dashboard filter selection. Every field is either
// FilterAll or a concrete value.
type FilterCriteria struct {
	Severity string `json:"severity"`
	Brand    string `json:"brand"`
	Status   string `json:"status"`
}

// DefaultFilterCriteria returns criteria that restrict nothing beyond the access scope.
func DefaultFilterCriteria() FilterCriteria {
	return FilterCriteria{Severity: FilterAll, Brand: FilterAll, Status: FilterAll}
}

// ParseFilterCriteria builds criteria from raw query values. Empty values mean FilterAll.
// Unknown brands are accepted and simply match nothing.
func ParseFilterCriteria(severity, brand, status string) (FilterCriteria, error) {
	c := DefaultFilterCriteria()

	if severity != "" && severity != FilterAll {
		if !Severity(severity).IsValid() {
			return FilterCriteria{}, ErrInvalidSeverityFilter
		}
		c.Severity = severity
	}

	if brand != "" {
		c.Brand = brand
	}

	if status != "" && status != FilterAll {
		if !Status(status).IsValid() {
			return FilterCriteria{}, ErrInvalidStatusFilter
		}
		c.Status = status
	}

	return c, nil
}
