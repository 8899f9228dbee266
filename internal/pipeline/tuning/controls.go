// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tuning

import (
	"fmt"
	"reflect"

	"github.com/ManuGH/dvbgraph/internal/log"
	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
)

// Controls are the tuner handles recorded at assembly time.
type Controls struct {
	Device      graph.DeviceControl
	Frequency   graph.FrequencyControl
	Demodulator graph.DemodulatorControl

	// TunerStats and DemodStats are the two telemetry sources. When only
	// one sub-node reports statistics both point at it.
	TunerStats graph.SignalStatistics
	DemodStats graph.SignalStatistics
}

// NewControls derives tuning and telemetry handles from the topology
// sub-nodes. Either sub-node may be nil; with both telemetry sources
// missing it fails with ErrNoTelemetrySource.
func NewControls(device graph.DeviceControl, freqNode, demodNode any) (Controls, error) {
	c := Controls{Device: device}
	if fc, ok := freqNode.(graph.FrequencyControl); ok {
		c.Frequency = fc
	}
	if dc, ok := demodNode.(graph.DemodulatorControl); ok {
		c.Demodulator = dc
	}
	if s, ok := freqNode.(graph.SignalStatistics); ok {
		c.TunerStats = s
	}
	if s, ok := demodNode.(graph.SignalStatistics); ok {
		c.DemodStats = s
	}

	logger := log.WithComponent("tuning")
	switch {
	case c.TunerStats == nil && c.DemodStats == nil:
		return c, fmt.Errorf("tuner statistics: %w", graph.ErrNoTelemetrySource)
	case c.DemodStats == nil:
		c.DemodStats = c.TunerStats
		logger.Info().Msg("demodulator statistics unavailable, using frequency node")
	case c.TunerStats == nil:
		c.TunerStats = c.DemodStats
		logger.Info().Msg("tuner statistics unavailable, using demodulator node")
	}
	return c, nil
}

// SharedSource reports whether both telemetry sources are the same node.
func (c Controls) SharedSource() bool {
	return sameSource(c.TunerStats, c.DemodStats)
}

// sameSource compares two statistics nodes by identity. Values whose dynamic
// type cannot be compared are never the same source.
func sameSource(a, b graph.SignalStatistics) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() || !va.Comparable() || !vb.Comparable() {
		return false
	}
	return a == b
}
