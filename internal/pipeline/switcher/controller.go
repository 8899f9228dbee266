// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package switcher reroutes the video or audio sink from one elementary
// stream kind to another while the pipeline runs.
package switcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/dvbgraph/internal/log"
	"github.com/ManuGH/dvbgraph/internal/metrics"
	"github.com/ManuGH/dvbgraph/internal/pipeline/fsm"
	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
	"github.com/ManuGH/dvbgraph/internal/pipeline/runstate"
	"github.com/ManuGH/dvbgraph/internal/pipeline/streams"
	"github.com/ManuGH/dvbgraph/internal/telemetry"
)

// State of one family's switch machine.
type State string

const (
	StateIdle      State = "idle"
	StateSwitching State = "switching"
)

type event string

const (
	eventBegin event = "begin"
	eventDone  event = "done"
)

var errAssembling = fmt.Errorf("pipeline assembly in progress: %w", graph.ErrInvalidState)

// transitions rejects a begin while busy reports true.
func transitions(busy func() bool) []fsm.Transition[State, event] {
	return []fsm.Transition[State, event]{
		{From: StateIdle, Event: eventBegin, To: StateSwitching, Guard: func(State, event) error {
			if busy != nil && busy() {
				return errAssembling
			}
			return nil
		}},
		{From: StateSwitching, Event: eventDone, To: StateIdle},
	}
}

// Strategy names how a switch was carried out.
type Strategy string

const (
	StrategyDynamic  Strategy = "dynamic"
	StrategyFallback Strategy = "fallback"
)

type Options struct {
	// Busy, when set, rejects switches while the pipeline is being assembled.
	Busy func() bool
}

// Controller performs the mechanical part of a stream switch. It does not
// track which kind is current; callers do.
type Controller struct {
	rt    graph.Runtime
	table *streams.Table
	run   *runstate.Controller

	mu       sync.Mutex
	demux    graph.Demultiplexer
	machines map[model.Family]*fsm.Machine[State, event]
}

func New(rt graph.Runtime, table *streams.Table, run *runstate.Controller, opts Options) *Controller {
	return &Controller{
		rt:    rt,
		table: table,
		run:   run,
		machines: map[model.Family]*fsm.Machine[State, event]{
			model.FamilyVideo: fsm.MustNew(StateIdle, transitions(opts.Busy)),
			model.FamilyAudio: fsm.MustNew(StateIdle, transitions(opts.Busy)),
		},
	}
}

// Attach sets the demultiplexer whose audio outputs are retyped on switch.
func (c *Controller) Attach(demux graph.Demultiplexer) {
	c.mu.Lock()
	c.demux = demux
	c.mu.Unlock()
}

// State reports the switch state of family.
func (c *Controller) State(family model.Family) State {
	if m, ok := c.machines[family]; ok {
		return m.State()
	}
	return StateIdle
}

// SwitchStream routes the sink currently fed by oldKind to newKind. Both
// kinds must belong to the same switchable family and already have
// outputs. A switch to the same kind is a no-op.
func (c *Controller) SwitchStream(ctx context.Context, oldKind, newKind model.StreamKind) (err error) {
	family := newKind.Family()
	machine, ok := c.machines[family]
	if !ok || oldKind.Family() != family {
		return fmt.Errorf("switch %s -> %s: %w", oldKind, newKind, graph.ErrInvalidState)
	}
	if oldKind == newKind {
		return nil
	}
	if _, err := machine.Fire(eventBegin); err != nil {
		if errors.Is(err, fsm.ErrInvalidTransition) {
			return fmt.Errorf("switch %s -> %s already in progress: %w", oldKind, newKind, graph.ErrInvalidState)
		}
		return fmt.Errorf("switch %s -> %s: %w", oldKind, newKind, err)
	}
	defer func() { _, _ = machine.Fire(eventDone) }()

	ctx, span := telemetry.Start(ctx, "switcher", "switcher.SwitchStream",
		telemetry.StreamAttributes(string(newKind), string(family), 0)...)
	strategy := StrategyFallback
	defer func() {
		telemetry.End(span, err, graph.Class(err))
		metrics.RecordStreamSwitch(string(family), string(strategy), err)
	}()

	logger := log.WithComponentFromContext(ctx, "switcher").With().
		Str(log.FieldFamily, string(family)).
		Str("from", string(oldKind)).
		Str("to", string(newKind)).
		Logger()

	err = c.table.WithExclusive(func() error {
		var err error
		strategy, err = c.switchLocked(ctx, logger, oldKind, newKind)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Str(log.FieldOp, "switch_stream").Str(log.FieldStrategy, string(strategy)).
			Str(log.FieldStatus, graph.Class(err)).Msg("stream switch failed")
		return err
	}
	logger.Info().Str(log.FieldStrategy, string(strategy)).Msg("stream switched")
	return nil
}

func (c *Controller) switchLocked(ctx context.Context, logger zerolog.Logger, oldKind, newKind model.StreamKind) (Strategy, error) {
	oldOut := c.table.Output(oldKind)
	newOut := c.table.Output(newKind)
	if oldOut == nil || newOut == nil {
		return StrategyFallback, fmt.Errorf("switch %s -> %s: %w", oldKind, newKind, graph.ErrUnknownStream)
	}

	state, err := c.run.State(ctx)
	if err != nil {
		return StrategyFallback, err
	}

	if newKind.IsAudio() && state != model.RunStopped {
		c.retypeAudio(ctx, logger, newKind)
	}

	oldPin, newPin := sinkFacing(oldOut), sinkFacing(newOut)
	sinkIn := oldPin.ConnectedTo()
	if sinkIn == nil {
		return StrategyFallback, graph.PointerViolation("sink input fed by " + string(oldKind))
	}

	if state != model.RunStopped && dynamic(oldPin, newPin, sinkIn) {
		err := c.reroute(ctx, oldPin, newPin, sinkIn)
		if err == nil {
			return StrategyDynamic, nil
		}
		logger.Warn().Err(err).Str(log.FieldStatus, graph.Class(err)).Msg("dynamic reroute failed, falling back")
	}
	return StrategyFallback, c.fallback(ctx, state, oldPin, newPin, sinkIn)
}

// retypeAudio refreshes the new kind's output format so downstream
// decoders see it before data flows.
func (c *Controller) retypeAudio(ctx context.Context, logger zerolog.Logger, kind model.StreamKind) {
	c.mu.Lock()
	demux := c.demux
	c.mu.Unlock()
	d, ok := c.table.Get(kind)
	if demux == nil || !ok {
		return
	}
	if err := demux.SetOutputPinMediaType(ctx, kind.PinName(), d.MediaType); err != nil {
		logger.Warn().Err(err).Str(log.FieldOp, "set_output_media_type").Str(log.FieldStatus, graph.Class(err)).Msg("audio output not retyped")
	}
}

// sinkFacing returns the pin that feeds the sink for a demultiplexer
// output: the first output of the node it feeds, or the output itself
// when it is unconnected or feeds the sink directly.
func sinkFacing(out graph.Pin) graph.Pin {
	peer := graph.PeerNode(out)
	if peer == nil {
		return out
	}
	if p := graph.FirstPin(peer, graph.Output); p != nil {
		return p
	}
	return out
}

func dynamic(pins ...graph.Pin) bool {
	for _, p := range pins {
		d, ok := p.(graph.DynamicPin)
		if !ok || !d.SupportsDynamicReconnect() {
			return false
		}
	}
	_, ok := pins[0].(graph.FlowController)
	return ok
}

func (c *Controller) reroute(ctx context.Context, oldPin, newPin, sinkIn graph.Pin) error {
	flow := oldPin.(graph.FlowController)
	if err := flow.Block(ctx); err != nil {
		return graph.Wrap("block", oldPin.Name(), err)
	}
	err := c.rt.Reconnect(ctx, newPin, sinkIn)
	if uerr := flow.Unblock(ctx); uerr != nil && err == nil {
		err = graph.Wrap("unblock", oldPin.Name(), uerr)
	}
	return err
}

// fallback rewires with plain disconnect/connect. Each step that fails
// while the pipeline is not stopped stops it once and retries.
func (c *Controller) fallback(ctx context.Context, state model.RunState, oldPin, newPin, sinkIn graph.Pin) error {
	stopped := state == model.RunStopped
	step := func(name string, fn func() error) error {
		err := fn()
		if err == nil {
			return nil
		}
		if stopped {
			return fmt.Errorf("%w: %s: %w", graph.ErrUnexpectedReconnectFailure, name, err)
		}
		if serr := c.run.RequestState(ctx, model.RunStopped); serr != nil {
			return fmt.Errorf("%w: %s: stop: %w", graph.ErrUnexpectedReconnectFailure, name, serr)
		}
		stopped = true
		if err := fn(); err != nil {
			return fmt.Errorf("%w: %s: %w", graph.ErrUnexpectedReconnectFailure, name, err)
		}
		return nil
	}

	if err := step("disconnect_old", func() error { return c.rt.Disconnect(ctx, oldPin) }); err != nil {
		return err
	}
	if err := step("disconnect_sink", func() error { return c.rt.Disconnect(ctx, sinkIn) }); err != nil {
		return err
	}
	return step("connect_new", func() error { return c.rt.ConnectDirect(ctx, newPin, sinkIn, nil) })
}
