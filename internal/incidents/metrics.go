package incidents

import (
	"github.com/bissquit/incident-portal/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var incidentsFetched = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "incidents",
		Name:      "fetch_total",
		Help:      "Incident source fetches by outcome",
	},
	[]string{"source", "result"},
)

func recordFetch(source, result string) {
	incidentsFetched.WithLabelValues(source, result).Inc()
}
