// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TuneTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dvbgraph_tune_total",
		Help: "Frequency applications by result",
	}, []string{"result"})

	tunePollAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dvbgraph_tune_poll_attempts",
		Help:    "Number of change-state polls until the tuner reported changes applied",
		Buckets: []float64{1, 2, 5, 10, 20, 50},
	})

	TelemetryFallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dvbgraph_telemetry_fallback_total",
		Help: "Telemetry reads answered by the secondary control node",
	}, []string{"metric"})

	signalStrength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dvbgraph_signal_strength_db",
		Help: "Last reported signal strength",
	})

	signalQuality = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dvbgraph_signal_quality_percent",
		Help: "Last reported signal quality",
	})

	signalLocked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dvbgraph_signal_locked",
		Help: "1 when the demodulator reports lock",
	})
)

// RecordTune counts one ApplyFrequency and how many polls it took.
func RecordTune(err error, attempts int) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	TuneTotal.WithLabelValues(result).Inc()
	if attempts > 0 {
		tunePollAttempts.Observe(float64(attempts))
	}
}

// IncTelemetryFallback records that metric was answered by the fallback node.
func IncTelemetryFallback(metric string) {
	TelemetryFallbackTotal.WithLabelValues(metric).Inc()
}

// RecordSignal publishes the last statistics read.
func RecordSignal(strength, quality int32, locked bool) {
	signalStrength.Set(float64(strength))
	signalQuality.Set(float64(quality))
	if locked {
		signalLocked.Set(1)
	} else {
		signalLocked.Set(0)
	}
}
