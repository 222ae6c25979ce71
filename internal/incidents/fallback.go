package incidents

import (
	"context"
	"slices"
	"time"

	"github.com/bissquit/incident-portal/internal/domain"
)

// FallbackIncidents returns the seed set shown when the incident source fails.
// A new slice is returned on every call.
func FallbackIncidents() []domain.Incident {
	return []domain.Incident{
		{
			ID:          "INC-001",
			Title:       "Payment Processing Delayed",
			Severity:    domain.SeverityP1,
			Status:      domain.StatusActive,
			Brand:       "Pizza Hut",
			Market:      "North America",
			StartTime:   time.Date(2025, 1, 22, 15, 30, 0, 0, time.UTC),
			LastUpdate:  time.Date(2025, 1, 22, 16, 45, 0, 0, time.UTC),
			Description: "Customers experiencing delays in payment processing across mobile and web platforms",
			Impact:      "High - affecting order completion",
		},
		{
			ID:          "INC-002",
			Title:       "Mobile App Login Issues",
			Severity:    domain.SeverityP2,
			Status:      domain.StatusInvestigating,
			Brand:       "KFC",
			Market:      "EMEA",
			StartTime:   time.Date(2025, 1, 22, 14, 15, 0, 0, time.UTC),
			LastUpdate:  time.Date(2025, 1, 22, 16, 30, 0, 0, time.UTC),
			Description: "Users unable to log into mobile application in UK and Germany",
			Impact:      "Medium - authentication system affected",
		},
	}
}

// FallbackSource serves a fixed incident list. It is used when no backend is
// configured and as the substitute set when the configured source fails.
type FallbackSource struct {
	incidents []domain.Incident
}

// NewFallbackSource creates a source over incidents, or over the seed set when incidents is nil.
func NewFallbackSource(incidents []domain.Incident) *FallbackSource {
	if incidents == nil {
		incidents = FallbackIncidents()
	}
	return &FallbackSource{incidents: slices.Clone(incidents)}
}

// ListIncidents returns the incidents matching params.
func (s *FallbackSource) ListIncidents(_ context.Context, params ListParams) ([]domain.Incident, error) {
	out := make([]domain.Incident, 0, len(s.incidents))
	for i := range s.incidents {
		if params.Match(&s.incidents[i]) {
			out = append(out, s.incidents[i])
		}
	}
	return out, nil
}
