package reports

import (
	"github.com/bissquit/incident-portal/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var reportsSubmitted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "reports",
		Name:      "submitted_total",
		Help:      "Incident reports by outcome",
	},
	[]string{"outcome"},
)

func recordSubmitted(outcome string) {
	reportsSubmitted.WithLabelValues(outcome).Inc()
}
