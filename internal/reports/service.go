// Package reports accepts stakeholder incident reports and alerts the on-call team.
package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bissquit/incident-portal/internal/domain"
	"github.com/bissquit/incident-portal/internal/notifications"
	"github.com/bissquit/incident-portal/internal/pkg/ctxlog"
)

// Validation errors.
var (
	ErrUnknownBrand  = errors.New("unknown brand")
	ErrUnknownMarket = errors.New("unknown market")
	ErrUnknownSystem = errors.New("unknown affected system")
)

// ErrSinkFailed wraps failures of the configured report sink.
var ErrSinkFailed = errors.New("report submission failed")

// alertTimeout bounds the background on-call delivery of a single report.
const alertTimeout = 30 * time.Second

// Catalog checks report fields against the known brands, markets and systems.
type Catalog interface {
	HasBrand(name string) bool
	HasMarket(name string) bool
	HasSystem(name string) bool
}

// Alerter delivers on-call alerts.
type Alerter interface {
	Dispatch(ctx context.Context, alert notifications.Alert) error
}

// Service validates, stores and escalates incident reports.
type Service struct {
	sink    Sink
	catalog Catalog
	alerter Alerter
	now     func() time.Time
	wg      sync.WaitGroup
}

// NewService creates a new reports service. alerter may be nil when no
// notification channel is configured.
func NewService(sink Sink, catalog Catalog, alerter Alerter) *Service {
	return &Service{
		sink:    sink,
		catalog: catalog,
		alerter: alerter,
		now:     time.Now,
	}
}

// Submit validates report against the catalog, hands it to the sink and, for
// P1/P2 or urgent reports, alerts the on-call team in the background.
func (s *Service) Submit(ctx context.Context, report domain.IncidentReport) (*Receipt, error) {
	report = Normalize(report)

	if err := s.validate(report); err != nil {
		recordSubmitted("invalid")
		return nil, err
	}

	receipt, err := s.sink.Submit(ctx, report)
	if err != nil {
		recordSubmitted("failed")
		return nil, fmt.Errorf("%w: %w", ErrSinkFailed, err)
	}
	recordSubmitted("accepted")

	if report.NeedsOnCall() {
		s.alert(ctx, receipt.ID, report)
	}

	return receipt, nil
}

// Alerting reports whether on-call alerts can be delivered.
func (s *Service) Alerting() bool {
	return s.alerter != nil
}

// Wait blocks until in-flight on-call alerts finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) validate(report domain.IncidentReport) error {
	if !s.catalog.HasBrand(report.Brand) {
		return fmt.Errorf("%w: %s", ErrUnknownBrand, report.Brand)
	}
	if !s.catalog.HasMarket(report.Market) {
		return fmt.Errorf("%w: %s", ErrUnknownMarket, report.Market)
	}
	for _, system := range report.AffectedSystems {
		if !s.catalog.HasSystem(system) {
			return fmt.Errorf("%w: %s", ErrUnknownSystem, system)
		}
	}
	return nil
}

func (s *Service) alert(ctx context.Context, reportID string, report domain.IncidentReport) {
	logger := ctxlog.FromContext(ctx)
	if s.alerter == nil {
		logger.Warn("on-call alert skipped: no notification channel configured", "report_id", reportID)
		return
	}

	alert := notifications.Alert{
		ReportID:        reportID,
		Title:           report.Title,
		Description:     report.Description,
		Severity:        string(report.Severity),
		Brand:           report.Brand,
		Market:          report.Market,
		AffectedSystems: report.AffectedSystems,
		CustomerImpact:  report.CustomerImpact,
		Reporter:        fmt.Sprintf("%s (%s)", report.ReporterName, report.ReporterEmail),
		Urgent:          report.UrgentNotification,
		ReportedAt:      s.now(),
	}

	// the alert outlives the request but keeps its logger
	alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		if err := s.alerter.Dispatch(alertCtx, alert); err != nil {
			logger.Error("on-call alert failed", "report_id", reportID, "error", err)
			return
		}
		logger.Info("on-call alert sent", "report_id", reportID)
	}()
}

// Normalize trims free-text fields and replaces a nil system list with an empty one.
func Normalize(r domain.IncidentReport) domain.IncidentReport {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.CustomerImpact = strings.TrimSpace(r.CustomerImpact)
	r.ReporterEmail = strings.TrimSpace(r.ReporterEmail)
	r.ReporterName = strings.TrimSpace(r.ReporterName)
	if r.AffectedSystems == nil {
		r.AffectedSystems = []string{}
	}
	return r
}
