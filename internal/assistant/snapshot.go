package assistant

import (
	"context"
	"time"

	"github.com/bissquit/incident-portal/internal/domain"
	"github.com/bissquit/incident-portal/internal/incidents"
)

// Snapshot is the incident data a chat answer is computed from.
type Snapshot struct {
	Incidents []domain.Incident
	Now       time.Time
	Fallback  bool
}

// SnapshotProvider supplies chat data.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) Snapshot
}

// cannedNow is the reference time of the canned chat data, late on the day
// both canned incidents started.
var cannedNow = time.Date(2025, 1, 22, 17, 0, 0, 0, time.UTC)

// CannedSnapshot serves the fixed INC-001/INC-002 chat data with a fixed clock.
// Answers built from it may disagree with the dashboard.
type CannedSnapshot struct{}

// Snapshot implements SnapshotProvider.
func (CannedSnapshot) Snapshot(context.Context) Snapshot {
	return Snapshot{Incidents: incidents.FallbackIncidents(), Now: cannedNow}
}

// IncidentSnapshotter is implemented by incidents.Service.
type IncidentSnapshotter interface {
	Snapshot(ctx context.Context) ([]domain.Incident, bool)
}

// LiveSnapshot reads the same incident source as the dashboard.
type LiveSnapshot struct {
	source IncidentSnapshotter
	now    func() time.Time
}

// NewLiveSnapshot creates a provider over the incidents service.
func NewLiveSnapshot(source IncidentSnapshotter) *LiveSnapshot {
	return &LiveSnapshot{source: source, now: time.Now}
}

// Snapshot implements SnapshotProvider.
func (s *LiveSnapshot) Snapshot(ctx context.Context) Snapshot {
	list, fallback := s.source.Snapshot(ctx)
	return Snapshot{Incidents: list, Now: s.now(), Fallback: fallback}
}
