package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	snapshotWatermarkGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "lastseen_service",
		Subsystem: "rollup",
		Name:      "snapshot_watermark_timestamp_seconds",
		Help:      "Unix timestamp of the most recent materialized snapshot day.",
	})
	observationIngestedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "lastseen_service",
		Subsystem: "ingest",
		Name:      "last_observation_timestamp_seconds",
		Help:      "Unix timestamp of the most recent observation upserted into client_daily.",
	})
)

func init() {
	prometheus.MustRegister(snapshotWatermarkGauge, observationIngestedGauge)
}

// RecordSnapshotMaterialized updates the snapshot watermark gauge.
func RecordSnapshotMaterialized(day time.Time) {
	if day.IsZero() {
		return
	}
	snapshotWatermarkGauge.Set(float64(day.Unix()))
}

// RecordObservationIngested updates the ingest watermark gauge.
func RecordObservationIngested(ts time.Time) {
	if ts.IsZero() {
		return
	}
	observationIngestedGauge.Set(float64(ts.Unix()))
}
