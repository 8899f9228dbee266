// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"

	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
	"github.com/ManuGH/dvbgraph/internal/pipeline/tuning"
)

// SignalSource reads tuner statistics.
type SignalSource interface {
	Stats(ctx context.Context) (tuning.Stats, error)
}

// SignalChecker is healthy on a locked carrier, degraded on a carrier
// without lock and unhealthy otherwise.
type SignalChecker struct {
	Source SignalSource
}

func (SignalChecker) Name() string { return "signal" }

func (c SignalChecker) Check(ctx context.Context) CheckResult {
	s, err := c.Source.Stats(ctx)
	switch {
	case err != nil:
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	case s.Locked:
		return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("locked, strength %d, quality %d", s.Strength, s.Quality)}
	case s.Present:
		return CheckResult{Status: StatusDegraded, Message: "carrier present, not locked"}
	default:
		return CheckResult{Status: StatusUnhealthy, Message: "no signal"}
	}
}

// StateSource reports the pipeline run state.
type StateSource interface {
	State(ctx context.Context) (model.RunState, error)
}

// RunStateChecker is healthy while the pipeline runs and degraded while
// paused.
type RunStateChecker struct {
	Source StateSource
}

func (RunStateChecker) Name() string { return "pipeline" }

func (c RunStateChecker) Check(ctx context.Context) CheckResult {
	state, err := c.Source.State(ctx)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	msg := string(state)
	switch state {
	case model.RunRunning:
		return CheckResult{Status: StatusHealthy, Message: msg}
	case model.RunPaused:
		return CheckResult{Status: StatusDegraded, Message: msg}
	default:
		return CheckResult{Status: StatusUnhealthy, Message: msg}
	}
}
