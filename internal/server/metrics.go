package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"pyhabit/internal/models"
)

var (
	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pyhabit",
		Subsystem: "analyzer",
		Name:      "analyses_total",
		Help:      "Analysis requests by outcome",
	}, []string{"outcome"})

	findingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pyhabit",
		Subsystem: "analyzer",
		Name:      "findings_total",
		Help:      "Reported findings by category and source",
	}, []string{"category", "source"})

	bridgeFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pyhabit",
		Subsystem: "bridge",
		Name:      "failures_total",
		Help:      "pylint runs that produced a system finding, by reason",
	}, []string{"reason"})

	analysisDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pyhabit",
		Subsystem: "analyzer",
		Name:      "analysis_duration_seconds",
		Help:      "Time spent analyzing one request, explanations included",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

// Analysis outcomes.
const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
)

func recordAnalysis(findings []models.Finding, elapsed time.Duration) {
	analysesTotal.WithLabelValues(outcomeOK).Inc()
	analysisDurationSeconds.Observe(elapsed.Seconds())
	for _, f := range findings {
		findingsTotal.WithLabelValues(f.Category.String(), f.Source).Inc()
	}
}

func recordRejected() {
	analysesTotal.WithLabelValues(outcomeRejected).Inc()
}

// RecordBridgeFailure counts a failed pylint run. It matches the signature
// of bridge.Bridge.OnFailure.
func RecordBridgeFailure(reason string) {
	bridgeFailuresTotal.WithLabelValues(reason).Inc()
}
