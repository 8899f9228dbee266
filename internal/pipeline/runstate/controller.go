// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package runstate moves the pipeline between Stopped, Paused and Running.
package runstate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/dvbgraph/internal/log"
	"github.com/ManuGH/dvbgraph/internal/metrics"
	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
)

// DefaultStateTimeout bounds each state query.
const DefaultStateTimeout = 500 * time.Millisecond

// Feedback is the periodic UI feedback (statistics timers, progress) that
// is halted before stopping and resumed once running is confirmed.
type Feedback interface {
	Halt(ctx context.Context)
	Resume(ctx context.Context)
}

type Options struct {
	StateTimeout time.Duration
	Feedback     Feedback
}

// Controller owns run-state transitions. It never retries a failed
// transition.
type Controller struct {
	rt       graph.Runtime
	timeout  time.Duration
	feedback Feedback

	mu sync.Mutex
}

func New(rt graph.Runtime, opts Options) *Controller {
	if opts.StateTimeout <= 0 {
		opts.StateTimeout = DefaultStateTimeout
	}
	return &Controller{rt: rt, timeout: opts.StateTimeout, feedback: opts.Feedback}
}

// State queries the runtime, waiting at most the state timeout.
func (c *Controller) State(ctx context.Context) (model.RunState, error) {
	st, err := c.rt.State(ctx, c.timeout)
	if err != nil {
		return st, graph.Wrap("get_state", "", err)
	}
	return st, nil
}

// RequestState moves the pipeline to target; already being there is a no-op.
func (c *Controller) RequestState(ctx context.Context, target model.RunState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.State(ctx)
	if err != nil {
		return err
	}
	if current == target {
		return nil
	}

	logger := log.WithComponentFromContext(ctx, "runstate").With().
		Str(log.FieldOldState, string(current)).
		Str(log.FieldNewState, string(target)).
		Logger()

	switch target {
	case model.RunStopped:
		if c.feedback != nil {
			c.feedback.Halt(ctx)
		}
		err = c.rt.Stop(ctx)
	case model.RunPaused:
		err = c.rt.Pause(ctx)
	case model.RunRunning:
		err = c.rt.Run(ctx)
	default:
		return fmt.Errorf("run state %q: %w", target, graph.ErrInvalidState)
	}
	if err != nil {
		logger.Error().Err(err).Str(log.FieldOp, "change_state").Str(log.FieldStatus, graph.Class(err)).Msg("run state change failed")
		return graph.Wrap("change_state", string(target), err)
	}

	if target == model.RunRunning {
		confirmed, err := c.State(ctx)
		if err != nil {
			return err
		}
		if confirmed == model.RunRunning && c.feedback != nil {
			c.feedback.Resume(ctx)
		}
		target = confirmed
	}
	metrics.SetRunState(strings.ToLower(string(target)))
	logger.Info().Msg("run state changed")
	return nil
}
