//go:build integration

package integration

import (
	"time"

	"github.com/bissquit/incident-portal/internal/domain"
)

// seedIncidents returns the incidents loaded into the database before the suite runs.
// PG-4 belongs to a brand outside the default scope.
func seedIncidents(now time.Time) []domain.Incident {
	return []domain.Incident{
		{
			ID:          "PG-1",
			Title:       "Payment gateway outage",
			Severity:    domain.SeverityP1,
			Status:      domain.StatusActive,
			Brand:       "Pizza Hut",
			Market:      "North America",
			StartTime:   now.Add(-2 * time.Hour),
			LastUpdate:  now.Add(-10 * time.Minute),
			Description: "Card payments fail at checkout.",
			Impact:      "Online payment orders cannot be completed",
		},
		{
			ID:          "PG-2",
			Title:       "Mobile app login failures",
			Severity:    domain.SeverityP2,
			Status:      domain.StatusInvestigating,
			Brand:       "KFC",
			Market:      "EMEA",
			StartTime:   now.Add(-90 * time.Minute),
			LastUpdate:  now.Add(-30 * time.Minute),
			Description: "Users are logged out after updating the app.",
			Impact:      "Mobile ordering unavailable for some users",
		},
		{
			ID:          "PG-3",
			Title:       "Menu images slow to load",
			Severity:    domain.SeverityP3,
			Status:      domain.StatusResolved,
			Brand:       "Taco Bell",
			Market:      "North America",
			StartTime:   now.Add(-26 * time.Hour),
			LastUpdate:  now.Add(-24 * time.Hour),
			Description: "CDN cache misses on menu assets.",
			Impact:      "Slower page loads",
		},
		{
			ID:          "PG-4",
			Title:       "Kitchen display outage",
			Severity:    domain.SeverityP1,
			Status:      domain.StatusActive,
			Brand:       "Habit Burger",
			Market:      "APAC",
			StartTime:   now.Add(-time.Hour),
			LastUpdate:  now.Add(-5 * time.Minute),
			Description: "Kitchen displays show no orders.",
			Impact:      "Orders are delayed",
		},
	}
}

func incidentIDs(list []domain.Incident) []string {
	ids := make([]string, 0, len(list))
	for _, inc := range list {
		ids = append(ids, inc.ID)
	}
	return ids
}
