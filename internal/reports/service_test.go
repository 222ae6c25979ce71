package reports

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bissquit/incident-portal/internal/catalog"
	"github.com/bissquit/incident-portal/internal/domain"
	"github.com/bissquit/incident-portal/internal/notifications"
	"github.com/bissquit/incident-portal/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testCatalog = catalog.New(
	[]string{"Pizza Hut", "KFC", "Taco Bell", "Habit Burger"},
	[]string{"North America", "EMEA", "APAC", "LATAM"},
	[]string{"POS System", "Online Ordering", "Mobile App", "Payment Gateway"},
	nil,
)

type fakeSink struct {
	mu      sync.Mutex
	reports []domain.IncidentReport
	err     error
}

func (f *fakeSink) Submit(_ context.Context, r domain.IncidentReport) (*Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.reports = append(f.reports, r)
	return &Receipt{ID: "RPT-0000000A", Message: "Incident report submitted"}, nil
}

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []notifications.Alert
	err    error
}

func (f *fakeAlerter) Dispatch(_ context.Context, a notifications.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
	return f.err
}

func (f *fakeAlerter) sent() []notifications.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notifications.Alert(nil), f.alerts...)
}

func validReport() domain.IncidentReport {
	return domain.IncidentReport{
		Title:           "Kiosk screens frozen",
		Description:     "All kiosks in store 42 stopped responding",
		Severity:        domain.SeverityP3,
		Brand:           "KFC",
		Market:          "EMEA",
		AffectedSystems: []string{"POS System"},
		ReporterEmail:   "jane.doe@example.com",
		ReporterName:    "Jane Doe",
	}
}

func TestService_Submit_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *domain.IncidentReport)
		wantErr error
	}{
		{name: "unknown brand", mutate: func(r *domain.IncidentReport) { r.Brand = "Burger Palace" }, wantErr: ErrUnknownBrand},
		{name: "unknown market", mutate: func(r *domain.IncidentReport) { r.Market = "Mars" }, wantErr: ErrUnknownMarket},
		{
			name:    "unknown system",
			mutate:  func(r *domain.IncidentReport) { r.AffectedSystems = []string{"POS System", "Fax"} },
			wantErr: ErrUnknownSystem,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &fakeSink{}
			svc := NewService(sink, testCatalog, nil)

			report := validReport()
			tt.mutate(&report)

			_, err := svc.Submit(context.Background(), report)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, sink.reports)
		})
	}
}

func TestService_Submit_NormalizesReport(t *testing.T) {
	sink := &fakeSink{}
	svc := NewService(sink, testCatalog, nil)

	report := validReport()
	report.Title = "  Kiosk screens frozen \n"
	report.AffectedSystems = nil

	receipt, err := svc.Submit(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t, "RPT-0000000A", receipt.ID)

	require.Len(t, sink.reports, 1)
	assert.Equal(t, "Kiosk screens frozen", sink.reports[0].Title)
	assert.NotNil(t, sink.reports[0].AffectedSystems)
}

func TestService_Submit_SinkFailure(t *testing.T) {
	svc := NewService(&fakeSink{err: &upstream.APIError{Status: 503}}, testCatalog, nil)

	_, err := svc.Submit(context.Background(), validReport())
	require.ErrorIs(t, err, ErrSinkFailed)

	var apiErr *upstream.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 503, apiErr.Status)
}

func TestService_Submit_OnCallAlert(t *testing.T) {
	tests := []struct {
		name      string
		severity  domain.Severity
		urgent    bool
		wantAlert bool
	}{
		{name: "P1 alerts", severity: domain.SeverityP1, wantAlert: true},
		{name: "P2 alerts", severity: domain.SeverityP2, wantAlert: true},
		{name: "P3 is quiet", severity: domain.SeverityP3},
		{name: "urgent P3 alerts", severity: domain.SeverityP3, urgent: true, wantAlert: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerter := &fakeAlerter{}
			svc := NewService(&fakeSink{}, testCatalog, alerter)

			report := validReport()
			report.Severity = tt.severity
			report.UrgentNotification = tt.urgent

			_, err := svc.Submit(context.Background(), report)
			require.NoError(t, err)
			svc.Wait()

			alerts := alerter.sent()
			if !tt.wantAlert {
				assert.Empty(t, alerts)
				return
			}
			require.Len(t, alerts, 1)
			assert.Equal(t, "RPT-0000000A", alerts[0].ReportID)
			assert.Equal(t, string(tt.severity), alerts[0].Severity)
			assert.Equal(t, tt.urgent, alerts[0].Urgent)
			assert.Equal(t, "Jane Doe (jane.doe@example.com)", alerts[0].Reporter)
			assert.False(t, alerts[0].ReportedAt.IsZero())
		})
	}
}

func TestService_Submit_AlertFailureDoesNotFailSubmission(t *testing.T) {
	alerter := &fakeAlerter{err: errors.New("all channels down")}
	svc := NewService(&fakeSink{}, testCatalog, alerter)

	report := validReport()
	report.Severity = domain.SeverityP1

	receipt, err := svc.Submit(context.Background(), report)
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.ID)

	svc.Wait()
	assert.Len(t, alerter.sent(), 1)
}

func TestService_Submit_AlertSurvivesRequestCancellation(t *testing.T) {
	alerter := &fakeAlerter{}
	svc := NewService(&fakeSink{}, testCatalog, alerter)

	ctx, cancel := context.WithCancel(context.Background())
	report := validReport()
	report.Severity = domain.SeverityP1

	_, err := svc.Submit(ctx, report)
	require.NoError(t, err)
	cancel()

	svc.Wait()
	assert.Len(t, alerter.sent(), 1)
}

func TestService_Alerting(t *testing.T) {
	assert.False(t, NewService(&fakeSink{}, testCatalog, nil).Alerting())
	assert.True(t, NewService(&fakeSink{}, testCatalog, &fakeAlerter{}).Alerting())
}
