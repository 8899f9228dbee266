// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AssemblyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dvbgraph_assembly_total",
		Help: "Pipeline assembly attempts by result and failing stage",
	}, []string{"result", "stage"})

	assemblyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dvbgraph_assembly_duration_seconds",
		Help:    "Time spent assembling the acquisition pipeline",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	StreamSwitchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dvbgraph_stream_switch_total",
		Help: "Stream switches by family, strategy (dynamic, fallback) and result",
	}, []string{"family", "strategy", "result"})

	runState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dvbgraph_run_state",
		Help: "Current pipeline run state (active state=1; others 0)",
	}, []string{"state"})

	pidMapped = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dvbgraph_pid_mapped",
		Help: "Currently mapped PID per stream kind (0 when unmapped)",
	}, []string{"kind"})
)

var runStates = []string{"stopped", "paused", "running"}

// RecordAssembly records the outcome of one Build. stage is empty on success.
func RecordAssembly(stage string, err error, d time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	if stage == "" {
		stage = "none"
	}
	AssemblyTotal.WithLabelValues(result, stage).Inc()
	assemblyDuration.Observe(d.Seconds())
}

// RecordStreamSwitch counts one switch attempt.
func RecordStreamSwitch(family, strategy string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	StreamSwitchTotal.WithLabelValues(family, strategy, result).Inc()
}

// SetRunState records the active run state.
func SetRunState(state string) {
	for _, s := range runStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		runState.WithLabelValues(s).Set(value)
	}
}

// SetPIDMapped records the PID currently mapped for kind; 0 clears it.
func SetPIDMapped(kind string, pid uint16) {
	pidMapped.WithLabelValues(kind).Set(float64(pid))
}
