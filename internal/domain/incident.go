// Package domain contains the portal's core types shared across modules.
package domain

import (
	"slices"
	"time"
)

// Severity is the ordinal urgency of an incident. P1 is the most urgent.
type Severity string

// Severity levels.
const (
	SeverityP1 Severity = "P1"
	SeverityP2 Severity = "P2"
	SeverityP3 Severity = "P3"
)

// IsValid checks if the severity is one of the known levels.
func (s Severity) IsValid() bool {
	return s == SeverityP1 || s == SeverityP2 || s == SeverityP3
}

// Rank returns 1 for P1, 2 for P2, 3 for P3 and 0 for unknown values.
func (s Severity) Rank() int {
	switch s {
	case SeverityP1:
		return 1
	case SeverityP2:
		return 2
	case SeverityP3:
		return 3
	}
	return 0
}

// Status is the lifecycle state of an incident as reported by the backend.
type Status string

// Incident statuses.
const (
	StatusActive        Status = "Active"
	StatusInvestigating Status = "Investigating"
	StatusMonitoring    Status = "Monitoring"
	StatusResolved      Status = "Resolved"
)

// Statuses lists every known status in lifecycle order.
var Statuses = []Status{StatusActive, StatusInvestigating, StatusMonitoring, StatusResolved}

// IsValid checks if the status is known.
func (s Status) IsValid() bool {
	return slices.Contains(Statuses, s)
}

// IsActive reports whether the incident still needs attention.
// Monitoring incidents are not counted as active.
func (s Status) IsActive() bool {
	return s == StatusActive || s == StatusInvestigating
}

// Incident is a read-only snapshot of an incident owned by the incident-management backend.
type Incident struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Severity    Severity  `json:"severity"`
	Status      Status    `json:"status"`
	Brand       string    `json:"brand"`
	Market      string    `json:"market"`
	StartTime   time.Time `json:"startTime"`
	LastUpdate  time.Time `json:"lastUpdate"`
	Description string    `json:"description"`
	Impact      string    `json:"impact"`
}

// IsCritical reports whether the incident is an active P1.
func (i *Incident) IsCritical() bool {
	return i.Severity == SeverityP1 && i.Status.IsActive()
}

// Summary returns the compact form used in chat attachments.
func (i *Incident) Summary() IncidentSummary {
	return IncidentSummary{
		ID:        i.ID,
		Title:     i.Title,
		Severity:  i.Severity,
		Brand:     i.Brand,
		Status:    i.Status,
		StartTime: i.StartTime,
	}
}

// IncidentSummary is the subset of incident fields rendered in conversation attachments.
type IncidentSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Severity  Severity  `json:"severity"`
	Brand     string    `json:"brand"`
	Status    Status    `json:"status"`
	StartTime time.Time `json:"startTime"`
}
