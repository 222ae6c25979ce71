package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bissquit/incident-portal/internal/domain"
	"github.com/bissquit/incident-portal/internal/pkg/ctxlog"
	"github.com/bissquit/incident-portal/internal/upstream"
	"github.com/google/uuid"
)

// ErrRejected is returned when the backend answers without accepting the report.
var ErrRejected = errors.New("report rejected")

// Receipt identifies an accepted report.
type Receipt struct {
	ID      string
	Message string
}

// Sink accepts validated incident reports.
type Sink interface {
	Submit(ctx context.Context, report domain.IncidentReport) (*Receipt, error)
}

// LogSink records reports in the service log only.
type LogSink struct {
	newID func() string
}

// NewLogSink creates a sink that assigns RPT-XXXXXXXX ids and logs the report.
func NewLogSink() *LogSink {
	return &LogSink{newID: newReportID}
}

// Submit logs the report with the reporter's details redacted.
func (s *LogSink) Submit(ctx context.Context, report domain.IncidentReport) (*Receipt, error) {
	id := s.newID()

	ctxlog.FromContext(ctx).Info("incident report received",
		"report_id", id,
		"severity", report.Severity,
		"brand", report.Brand,
		"market", report.Market,
		"affected_systems", report.AffectedSystems,
		"urgent", report.UrgentNotification,
		"reporter_email", ctxlog.RedactEmail(report.ReporterEmail),
		"reporter_name", ctxlog.RedactName(report.ReporterName),
	)

	return &Receipt{ID: id, Message: "Incident report submitted"}, nil
}

func newReportID() string {
	id := uuid.New()
	return "RPT-" + strings.ToUpper(fmt.Sprintf("%x", id[:4]))
}

// ReportSubmitter forwards reports to the incident-management backend.
type ReportSubmitter interface {
	SubmitReport(ctx context.Context, report domain.IncidentReport) (*upstream.ReportResponse, error)
}

// UpstreamSink forwards reports to the incident-management backend.
type UpstreamSink struct {
	client ReportSubmitter
}

// NewUpstreamSink creates a sink backed by the upstream client.
func NewUpstreamSink(client ReportSubmitter) *UpstreamSink {
	return &UpstreamSink{client: client}
}

// Submit forwards the report and returns the backend's id.
func (s *UpstreamSink) Submit(ctx context.Context, report domain.IncidentReport) (*Receipt, error) {
	resp, err := s.client.SubmitReport(ctx, report)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", ErrRejected, resp.Message)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("%w: backend returned no report id", ErrRejected)
	}
	return &Receipt{ID: resp.ID, Message: resp.Message}, nil
}
