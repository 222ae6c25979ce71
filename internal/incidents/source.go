package incidents

import (
	"context"
	"errors"
	"time"

	"github.com/bissquit/incident-portal/internal/domain"
)

// ErrSourceUnavailable is returned when the incident source cannot be reached.
var ErrSourceUnavailable = errors.New("incident source unavailable")

// Source supplies incident snapshots.
type Source interface {
	ListIncidents(ctx context.Context, params ListParams) ([]domain.Incident, error)
}

// Pinger is implemented by sources that can report their readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ListParams are source-level filters. Zero values do not restrict.
type ListParams struct {
	Status   domain.Status
	Severity domain.Severity
	Brand    string
	Market   string
	Since    time.Time
	Until    time.Time
}

// Match reports whether inc passes every set parameter.
// Since and Until bound the incident start time inclusively.
func (p ListParams) Match(inc *domain.Incident) bool {
	if p.Status != "" && inc.Status != p.Status {
		return false
	}
	if p.Severity != "" && inc.Severity != p.Severity {
		return false
	}
	if p.Brand != "" && inc.Brand != p.Brand {
		return false
	}
	if p.Market != "" && inc.Market != p.Market {
		return false
	}
	if !p.Since.IsZero() && inc.StartTime.Before(p.Since) {
		return false
	}
	if !p.Until.IsZero() && inc.StartTime.After(p.Until) {
		return false
	}
	return true
}
