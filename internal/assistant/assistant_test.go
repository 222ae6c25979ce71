package assistant

import (
	"context"
	"testing"
	"time"

	"github.com/bissquit/incident-portal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSnapshotter struct {
	incidents []domain.Incident
	fallback  bool
}

func (f fakeSnapshotter) Snapshot(context.Context) ([]domain.Incident, bool) {
	return f.incidents, f.fallback
}

func TestCannedSnapshot(t *testing.T) {
	snap := CannedSnapshot{}.Snapshot(context.Background())

	assert.Equal(t, cannedNow, snap.Now)
	assert.False(t, snap.Fallback)
	require.Len(t, snap.Incidents, 2)
	assert.Equal(t, "INC-001", snap.Incidents[0].ID)
}

func TestAssistant_Reply_Live(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	live := NewLiveSnapshot(fakeSnapshotter{
		incidents: []domain.Incident{{
			ID: "INC-77", Title: "Drive-thru screens blank", Severity: domain.SeverityP1,
			Status: domain.StatusActive, Brand: "Taco Bell", Market: "North America",
			StartTime: now.Add(-time.Hour), Impact: "Orders taken manually",
		}},
		fallback: true,
	})
	live.now = func() time.Time { return now }

	engine, err := NewEngine(EngineConfig{ReportedUptime: 99.9})
	require.NoError(t, err)
	a := New(engine, live)

	resp, err := a.Reply(context.Background(), "critical?", domain.AccessScope{Brands: []string{"Taco Bell"}})
	require.NoError(t, err)
	assert.Equal(t, RuleCritical, resp.Rule)
	assert.Contains(t, resp.Content, "**INC-77: Drive-thru screens blank**")
	assert.Contains(t, resp.Content, "Active since 11:00 AM")

	resp, err = a.Reply(context.Background(), "critical?", domain.AccessScope{Brands: []string{"KFC"}})
	require.NoError(t, err)
	assert.NotContains(t, resp.Content, "INC-77")
}
