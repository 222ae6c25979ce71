// Package digest manages weekly digest preferences and computes digest statistics.
package digest

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Preference errors.
var (
	ErrUnknownAction = errors.New("unknown digest action")
	ErrInvalidDay    = errors.New("delivery day must be a weekday")
	ErrInvalidTime   = errors.New("delivery time must be HH:MM")
	ErrEmptyBrand    = errors.New("brand is required")
)

// DeliveryDays are the weekdays a digest can be delivered on.
var DeliveryDays = []string{"monday", "tuesday", "wednesday", "thursday", "friday"}

// Preferences is a stakeholder's digest configuration.
type Preferences struct {
	Enabled         bool     `json:"enabled"`
	DeliveryDay     string   `json:"deliveryDay" validate:"oneof=monday tuesday wednesday thursday friday"`
	DeliveryTime    string   `json:"deliveryTime" validate:"datetime=15:04"`
	Brands          []string `json:"brands" validate:"unique,dive,required"`
	IncludeResolved bool     `json:"includeResolved"`
	IncludeMetrics  bool     `json:"includeMetrics"`
}

// DefaultPreferences returns the preferences of a stakeholder who never saved any.
func DefaultPreferences() Preferences {
	return Preferences{
		Enabled:         true,
		DeliveryDay:     "monday",
		DeliveryTime:    "17:00",
		Brands:          []string{"Pizza Hut", "KFC"},
		IncludeResolved: true,
		IncludeMetrics:  true,
	}
}

// ActionType names a single preference change.
type ActionType string

// Preference actions.
const (
	ActionToggleEnabled         ActionType = "toggle_enabled"
	ActionSetDeliveryDay        ActionType = "set_delivery_day"
	ActionSetDeliveryTime       ActionType = "set_delivery_time"
	ActionToggleBrand           ActionType = "toggle_brand"
	ActionToggleIncludeResolved ActionType = "toggle_include_resolved"
	ActionToggleIncludeMetrics  ActionType = "toggle_include_metrics"
)

// Action is one user interaction with the digest settings form.
type Action struct {
	Type  ActionType `json:"type" validate:"required"`
	Value string     `json:"value,omitempty"`
}

// Apply returns p with a applied. p is not modified.
func Apply(p Preferences, a Action) (Preferences, error) {
	next := p
	next.Brands = slices.Clone(p.Brands)

	switch a.Type {
	case ActionToggleEnabled:
		next.Enabled = !p.Enabled

	case ActionSetDeliveryDay:
		day := strings.ToLower(strings.TrimSpace(a.Value))
		if !slices.Contains(DeliveryDays, day) {
			return p, fmt.Errorf("%w: %q", ErrInvalidDay, a.Value)
		}
		next.DeliveryDay = day

	case ActionSetDeliveryTime:
		if _, err := time.Parse("15:04", a.Value); err != nil {
			return p, fmt.Errorf("%w: %q", ErrInvalidTime, a.Value)
		}
		next.DeliveryTime = a.Value

	case ActionToggleBrand:
		if a.Value == "" {
			return p, ErrEmptyBrand
		}
		if i := slices.Index(next.Brands, a.Value); i >= 0 {
			next.Brands = slices.Delete(next.Brands, i, i+1)
		} else {
			next.Brands = append(next.Brands, a.Value)
		}

	case ActionToggleIncludeResolved:
		next.IncludeResolved = !p.IncludeResolved

	case ActionToggleIncludeMetrics:
		next.IncludeMetrics = !p.IncludeMetrics

	default:
		return p, fmt.Errorf("%w: %q", ErrUnknownAction, a.Type)
	}

	return next, nil
}

// NextDelivery returns the first delivery moment strictly after now in loc.
func (p Preferences) NextDelivery(now time.Time, loc *time.Location) (time.Time, error) {
	day := slices.Index(DeliveryDays, p.DeliveryDay)
	if day < 0 {
		return time.Time{}, ErrInvalidDay
	}
	hm, err := time.Parse("15:04", p.DeliveryTime)
	if err != nil {
		return time.Time{}, ErrInvalidTime
	}

	weekday := time.Weekday(day + 1) // DeliveryDays starts on Monday
	local := now.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), hm.Hour(), hm.Minute(), 0, 0, loc)

	offset := (int(weekday) - int(local.Weekday()) + 7) % 7
	candidate = candidate.AddDate(0, 0, offset)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate, nil
}
