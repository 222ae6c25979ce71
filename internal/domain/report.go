package domain

// IncidentReport is a stakeholder-submitted report of a potential incident.
type IncidentReport struct {
	Title              string   `json:"title" validate:"required,max=255"`
	Description        string   `json:"description" validate:"required"`
	Severity           Severity `json:"severity" validate:"required,oneof=P1 P2 P3"`
	Brand              string   `json:"brand" validate:"required"`
	Market             string   `json:"market" validate:"required"`
	AffectedSystems    []string `json:"affectedSystems" validate:"unique,dive,required"`
	CustomerImpact     string   `json:"customerImpact"`
	ReporterEmail      string   `json:"reporterEmail" validate:"required,email"`
	ReporterName       string   `json:"reporterName" validate:"required"`
	UrgentNotification bool     `json:"urgentNotification"`
}

// NeedsOnCall reports whether the on-call team must be alerted about the report.
func (r *IncidentReport) NeedsOnCall() bool {
	return r.UrgentNotification || r.Severity == SeverityP1 || r.Severity == SeverityP2
}
