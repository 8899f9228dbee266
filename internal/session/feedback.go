// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"

	"github.com/ManuGH/dvbgraph/internal/log"
	"github.com/ManuGH/dvbgraph/internal/pipeline/bus"
	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
	"github.com/ManuGH/dvbgraph/internal/pipeline/runstate"
)

// busFeedback tells the host to halt or resume its periodic UI work around
// run-state changes.
type busFeedback struct {
	bus bus.Bus
}

var _ runstate.Feedback = busFeedback{}

func (f busFeedback) Halt(ctx context.Context)   { f.send(ctx, false) }
func (f busFeedback) Resume(ctx context.Context) { f.send(ctx, true) }

func (f busFeedback) send(ctx context.Context, active bool) {
	if f.bus == nil {
		return
	}
	if err := f.bus.Publish(ctx, model.TopicFeedback, model.Feedback{Active: active}); err != nil {
		logger := log.WithComponentFromContext(ctx, "session")
		logger.Warn().Err(err).
			Str(log.FieldEvent, model.TopicFeedback).Bool("active", active).
			Msg("feedback not published")
	}
}
