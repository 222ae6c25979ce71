package digest

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/bissquit/incident-portal/internal/domain"
)

// topBrandsLimit is the number of brands listed in a summary.
const topBrandsLimit = 3

// BrandCount is the number of incidents for one brand.
type BrandCount struct {
	Brand string `json:"brand"`
	Count int    `json:"count"`
}

// Summary holds the statistics of one digest period.
type Summary struct {
	From               time.Time               `json:"from"`
	To                 time.Time               `json:"to"`
	Total              int                     `json:"total"`
	BySeverity         map[domain.Severity]int `json:"bySeverity"`
	Critical           int                     `json:"critical"`
	Resolved           int                     `json:"resolved"`
	AvgResolution      time.Duration           `json:"-"`
	AvgResolutionHours float64                 `json:"avgResolutionHours"`
	Uptime             float64                 `json:"uptime"`
	TopBrands          []BrandCount            `json:"topBrands"`
}

// Summarize computes statistics over incidents that started within [from, to].
// Resolution time of a resolved incident is its last update minus its start.
// uptime is reported as given; the portal has no availability data of its own.
func Summarize(incidents []domain.Incident, from, to time.Time, uptime float64) Summary {
	s := Summary{
		From: from,
		To:   to,
		BySeverity: map[domain.Severity]int{
			domain.SeverityP1: 0,
			domain.SeverityP2: 0,
			domain.SeverityP3: 0,
		},
		Uptime:    uptime,
		TopBrands: []BrandCount{},
	}

	brands := map[string]int{}
	var resolvedTotal time.Duration

	for i := range incidents {
		inc := &incidents[i]
		if inc.StartTime.Before(from) || inc.StartTime.After(to) {
			continue
		}

		s.Total++
		s.BySeverity[inc.Severity]++
		brands[inc.Brand]++

		if inc.Severity == domain.SeverityP1 {
			s.Critical++
		}
		if inc.Status == domain.StatusResolved {
			s.Resolved++
			resolvedTotal += inc.LastUpdate.Sub(inc.StartTime)
		}
	}

	if s.Resolved > 0 {
		s.AvgResolution = resolvedTotal / time.Duration(s.Resolved)
		s.AvgResolutionHours = math.Round(s.AvgResolution.Hours()*10) / 10
	}

	for brand, n := range brands {
		s.TopBrands = append(s.TopBrands, BrandCount{Brand: brand, Count: n})
	}
	slices.SortFunc(s.TopBrands, func(a, b BrandCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Brand, b.Brand)
	})
	if len(s.TopBrands) > topBrandsLimit {
		s.TopBrands = s.TopBrands[:topBrandsLimit]
	}

	return s
}
