package incidents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/incident-portal/internal/domain"
	"github.com/bissquit/incident-portal/internal/pkg/ctxlog"
)

// DefaultFetchError is the banner shown when the source fails without a user-facing message.
const DefaultFetchError = "Failed to fetch incidents"

// Pagination constants.
const (
	DefaultPage    = 1
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// PublicError is implemented by source errors whose message may be shown to stakeholders.
type PublicError interface {
	PublicMessage() string
}

// Config configures the incidents service.
type Config struct {
	// SourceName labels metrics and logs.
	SourceName     string
	FetchTimeout   time.Duration
	EnforceMarkets bool
}

// Service serves dashboard views and incident listings from a Source.
type Service struct {
	source   Source
	fallback *FallbackSource
	cfg      Config
	now      func() time.Time
}

// NewService creates a new incidents service.
func NewService(source Source, cfg Config) *Service {
	if cfg.SourceName == "" {
		cfg.SourceName = "unknown"
	}
	return &Service{
		source:   source,
		fallback: NewFallbackSource(nil),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Dashboard is the filtered incident view with its aggregates.
type Dashboard struct {
	Incidents     []domain.Incident     `json:"incidents"`
	ActiveCount   int                   `json:"activeCount"`
	CriticalCount int                   `json:"criticalCount"`
	Filters       domain.FilterCriteria `json:"filters"`
	Scope         domain.AccessScope    `json:"scope"`
	// Fallback is true when the source failed and the seed set is shown instead.
	Fallback  bool      `json:"fallback"`
	Error     string    `json:"error,omitempty"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Dashboard fetches a fresh snapshot and filters it for the caller. A source
// failure does not fail the call: the seed set is substituted and Error is set.
// The only error returned is the caller's own context cancellation.
func (s *Service) Dashboard(ctx context.Context, scope domain.AccessScope, criteria domain.FilterCriteria) (*Dashboard, error) {
	all, fetchErr := s.fetch(ctx, ListParams{})
	if fetchErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		all = s.fallbackList(ctx, fetchErr)
	}

	visible := s.visible(all, scope, criteria)

	d := &Dashboard{
		Incidents:     visible,
		ActiveCount:   ActiveCount(visible),
		CriticalCount: CriticalCount(visible),
		Filters:       criteria,
		Scope:         scope,
		FetchedAt:     s.now().UTC(),
	}
	if fetchErr != nil {
		d.Fallback = true
		d.Error = publicMessage(fetchErr)
	}
	return d, nil
}

// ListQuery is a paginated listing request.
type ListQuery struct {
	Params  ListParams
	Page    int
	PerPage int
}

// ListResult is one page of in-scope incidents.
type ListResult struct {
	Incidents []domain.Incident `json:"incidents"`
	Total     int               `json:"total"`
	Page      int               `json:"page"`
	PerPage   int               `json:"per_page"`
}

// List returns a page of in-scope incidents. Unlike Dashboard it does not
// substitute the seed set: a source failure is returned as ErrSourceUnavailable.
func (s *Service) List(ctx context.Context, scope domain.AccessScope, q ListQuery) (*ListResult, error) {
	all, err := s.fetch(ctx, q.Params)
	if err != nil {
		return nil, err
	}

	visible := s.visible(all, scope, domain.DefaultFilterCriteria())

	page := q.Page
	if page < 1 {
		page = DefaultPage
	}
	perPage := q.PerPage
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	perPage = min(perPage, MaxPerPage)

	// (page-1)*perPage overflows for huge pages
	start := len(visible)
	if page-1 < len(visible)/perPage+1 {
		start = min((page-1)*perPage, len(visible))
	}
	end := min(start+perPage, len(visible))

	return &ListResult{
		Incidents: visible[start:end],
		Total:     len(visible),
		Page:      page,
		PerPage:   perPage,
	}, nil
}

// Snapshot returns every incident known to the source, unscoped, substituting
// the seed set on failure. fallback reports whether substitution happened.
func (s *Service) Snapshot(ctx context.Context) (list []domain.Incident, fallback bool) {
	all, err := s.fetch(ctx, ListParams{})
	if err != nil {
		return s.fallbackList(ctx, err), true
	}
	return all, false
}

// Ping checks the source when it supports readiness checks.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.source.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *Service) fetch(ctx context.Context, params ListParams) ([]domain.Incident, error) {
	if s.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()
	}

	list, err := s.source.ListIncidents(ctx, params)
	if err != nil {
		recordFetch(s.cfg.SourceName, "error")
		if errors.Is(err, ErrSourceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	recordFetch(s.cfg.SourceName, "ok")
	return list, nil
}

func (s *Service) fallbackList(ctx context.Context, cause error) []domain.Incident {
	ctxlog.FromContext(ctx).Warn("incident source failed, serving fallback set",
		"source", s.cfg.SourceName,
		"error", cause,
	)
	recordFetch(s.cfg.SourceName, "fallback")

	list, _ := s.fallback.ListIncidents(ctx, ListParams{})
	return list
}

func (s *Service) visible(all []domain.Incident, scope domain.AccessScope, criteria domain.FilterCriteria) []domain.Incident {
	out := FilterIncidents(all, scope, criteria)
	if s.cfg.EnforceMarkets {
		out = RestrictMarkets(out, scope)
	}
	return out
}

func publicMessage(err error) string {
	var pe PublicError
	if errors.As(err, &pe) {
		if msg := pe.PublicMessage(); msg != "" {
			return msg
		}
	}
	return DefaultFetchError
}
