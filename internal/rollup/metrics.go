package rollup

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"example.com/lastseen/internal/domain"
)

var (
	trackedGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "lastseen_service",
		Subsystem: "rollup",
		Name:      "clients_tracked",
		Help:      "Clients inside the rolling window after the most recent run, per tenant.",
	}, []string{"tenant_id"})

	agedOutCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lastseen_service",
		Subsystem: "rollup",
		Name:      "clients_aged_out_total",
		Help:      "Clients dropped from the tracked set, per tenant.",
	}, []string{"tenant_id"})

	newClientsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lastseen_service",
		Subsystem: "rollup",
		Name:      "clients_new_total",
		Help:      "Clients entering the tracked set, per tenant.",
	}, []string{"tenant_id"})

	runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lastseen_service",
		Subsystem: "rollup",
		Name:      "run_duration_seconds",
		Help:      "Time spent loading, advancing, and persisting one tenant-day.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	failureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lastseen_service",
		Subsystem: "rollup",
		Name:      "failures_total",
		Help:      "Failed catch-up attempts, per tenant.",
	}, []string{"tenant_id"})
)

func init() {
	prometheus.MustRegister(trackedGauge, agedOutCounter, newClientsCounter, runDuration, failureCounter)
}

func recordRun(tenantID string, result domain.AdvanceResult, elapsed time.Duration) {
	trackedGauge.WithLabelValues(tenantID).Set(float64(len(result.Records)))
	agedOutCounter.WithLabelValues(tenantID).Add(float64(len(result.AgedOut)))
	newClientsCounter.WithLabelValues(tenantID).Add(float64(result.NewClients))
	runDuration.Observe(elapsed.Seconds())
}

func recordFailure(tenantID string) {
	failureCounter.WithLabelValues(tenantID).Inc()
}
