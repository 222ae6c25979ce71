// Package incidents implements the incident query engine and the dashboard service built on it.
package incidents

import (
	"github.com/bissquit/incident-portal/internal/domain"
)

// FilterIncidents returns the incidents that pass every criteria predicate and
// whose brand is in scope. Scope applies regardless of criteria. The input order
// is preserved and the input slice is never modified.
func FilterIncidents(all []domain.Incident, scope domain.AccessScope, criteria domain.FilterCriteria) []domain.Incident {
	out := make([]domain.Incident, 0, len(all))
	for _, inc := range all {
		if matches(&inc, scope, criteria) {
			out = append(out, inc)
		}
	}
	return out
}

func matches(inc *domain.Incident, scope domain.AccessScope, c domain.FilterCriteria) bool {
	if c.Severity != domain.FilterAll && c.Severity != "" && string(inc.Severity) != c.Severity {
		return false
	}
	if c.Brand != domain.FilterAll && c.Brand != "" && inc.Brand != c.Brand {
		return false
	}
	if c.Status != domain.FilterAll && c.Status != "" && string(inc.Status) != c.Status {
		return false
	}
	return scope.AllowsBrand(inc.Brand)
}

// RestrictMarkets drops incidents whose market is outside scope.Markets.
// It is applied on top of FilterIncidents only when market enforcement is enabled.
func RestrictMarkets(list []domain.Incident, scope domain.AccessScope) []domain.Incident {
	out := make([]domain.Incident, 0, len(list))
	for _, inc := range list {
		if scope.AllowsMarket(inc.Market) {
			out = append(out, inc)
		}
	}
	return out
}

// ActiveCount counts incidents that are Active or Investigating.
func ActiveCount(list []domain.Incident) int {
	n := 0
	for i := range list {
		if list[i].Status.IsActive() {
			n++
		}
	}
	return n
}

// CriticalCount counts active P1 incidents.
func CriticalCount(list []domain.Incident) int {
	n := 0
	for i := range list {
		if list[i].IsCritical() {
			n++
		}
	}
	return n
}
