package assistant

import (
	"github.com/bissquit/incident-portal/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ruleMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "assistant",
			Name:      "rule_matches_total",
			Help:      "Chat answers by matched rule",
		},
		[]string{"rule"},
	)

	conversationsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: "assistant",
			Name:      "conversations",
			Help:      "Conversations currently held in memory",
		},
	)
)

func recordRuleMatch(rule string) {
	ruleMatches.WithLabelValues(rule).Inc()
}
