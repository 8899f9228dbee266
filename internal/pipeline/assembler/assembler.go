// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package assembler builds the receive pipeline: network provider, tuner,
// optional receiver, demultiplexer and one onward chain per stream kind.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/dvbgraph/internal/log"
	"github.com/ManuGH/dvbgraph/internal/metrics"
	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/media"
	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
	"github.com/ManuGH/dvbgraph/internal/pipeline/registry"
	"github.com/ManuGH/dvbgraph/internal/pipeline/streams"
	"github.com/ManuGH/dvbgraph/internal/pipeline/tuning"
	"github.com/ManuGH/dvbgraph/internal/telemetry"
)

// Config selects the devices and the rebuild policy.
type Config struct {
	NetworkType model.NetworkType
	// NetworkProvider matches the provider's friendly name.
	NetworkProvider string
	// Tuner and Receiver match device display names. An empty Receiver
	// accepts any receiver.
	Tuner    string
	Receiver string
	Rebuild  model.Policy
}

// Selection is what the assembled graph should render.
type Selection struct {
	Video model.StreamKind
	Audio model.StreamKind
	// AudioKinds are the channel's audio kinds; with Rebuild=always only
	// these get outputs.
	AudioKinds []model.StreamKind
}

// PassThroughInserter routes the subtitle output through an external text
// pass-through. It returns the pin to continue rendering from.
type PassThroughInserter interface {
	Insert(ctx context.Context, rt graph.Runtime, out graph.Pin) (graph.Pin, error)
}

// PassThroughFunc adapts a function to PassThroughInserter.
type PassThroughFunc func(ctx context.Context, rt graph.Runtime, out graph.Pin) (graph.Pin, error)

func (f PassThroughFunc) Insert(ctx context.Context, rt graph.Runtime, out graph.Pin) (graph.Pin, error) {
	return f(ctx, rt, out)
}

// Deps are the collaborators Build draws from.
type Deps struct {
	Runtime graph.Runtime
	// Transforms holds decoders, renderers and section sinks for step 8.
	Transforms *registry.List
	Devices    registry.Enumerator
	Env        registry.Environment
	Table      *streams.Table
	// Demux creates the demultiplexer node.
	Demux func(ctx context.Context) (graph.Demultiplexer, error)
	// PassThrough is optional; without it subtitles connect like sections.
	PassThrough PassThroughInserter
	// Enumerated devices sharing an identity with a do-not-use entry of
	// Blacklist are skipped.
	Blacklist []*registry.Descriptor
}

// Pipeline is an assembled graph.
type Pipeline struct {
	Network  graph.Node
	Tuner    graph.Node
	Receiver graph.Node
	Demux    graph.Demultiplexer
	Controls tuning.Controls
}

// Assembler runs one Build at a time.
type Assembler struct {
	cfg         Config
	rt          graph.Runtime
	transforms  *registry.List
	devices     registry.Enumerator
	env         registry.Environment
	table       *streams.Table
	newDemux    func(ctx context.Context) (graph.Demultiplexer, error)
	passThrough PassThroughInserter
	blacklist   []*registry.Descriptor

	assembling atomic.Bool
}

func New(cfg Config, deps Deps) *Assembler {
	transforms := deps.Transforms
	if transforms == nil {
		transforms = registry.NewList()
	}
	return &Assembler{
		cfg:         cfg,
		rt:          deps.Runtime,
		transforms:  transforms,
		devices:     deps.Devices,
		env:         deps.Env,
		table:       deps.Table,
		newDemux:    deps.Demux,
		passThrough: deps.PassThrough,
		blacklist:   deps.Blacklist,
	}
}

// Busy reports whether a Build is in progress.
func (a *Assembler) Busy() bool {
	return a.assembling.Load()
}

// build is the state of one Build call.
type build struct {
	a      *Assembler
	rt     graph.Runtime
	added  []graph.Node
	logger zerolog.Logger
}

// Build assembles the pipeline. The first failing mandatory stage aborts
// with a *StageError and removes every node added so far.
func (a *Assembler) Build(ctx context.Context, sel Selection) (p *Pipeline, err error) {
	if a.rt == nil || a.table == nil {
		return nil, graph.PointerViolation("assembler runtime or stream table")
	}
	if !a.assembling.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("build: %w", graph.ErrInvalidState)
	}
	defer a.assembling.Store(false)

	start := time.Now()
	ctx, span := telemetry.Start(ctx, "assembler", "assembler.Build")
	b := &build{a: a, rt: a.rt, logger: log.WithComponentFromContext(ctx, "assembler")}
	defer func() {
		var stage string
		var se *StageError
		if errors.As(err, &se) {
			stage = string(se.Stage)
		}
		if err != nil {
			b.rollback(ctx)
			b.logger.Error().Err(err).Str(log.FieldOp, "build").Str(log.FieldStage, stage).
				Str(log.FieldStatus, graph.Class(err)).Msg("pipeline assembly failed")
		}
		metrics.RecordAssembly(stage, err, time.Since(start))
		telemetry.End(span, err, graph.Class(err))
	}()

	p = &Pipeline{}

	// 1. network provider
	p.Network, err = b.device(ctx, media.CategoryNetworkProvider, 0, func(d *registry.Descriptor) bool {
		return a.cfg.NetworkProvider == "" || strings.EqualFold(d.Name, a.cfg.NetworkProvider)
	})
	if err != nil {
		return nil, stageError(StageNetworkProvider, err)
	}

	// 2. tuner
	p.Tuner, err = b.device(ctx, media.CategoryNetworkTuner, 1, matchDisplayName(a.cfg.Tuner))
	if err != nil {
		return nil, stageError(StageTuner, err)
	}

	// 3. provider -> tuner
	if err := b.connectNodes(ctx, p.Network, p.Tuner); err != nil {
		return nil, stageError(StageConnectTuner, err)
	}

	// 4. topology
	p.Controls, err = b.topology(ctx, p.Tuner)
	if err != nil {
		return nil, stageError(StageTopology, err)
	}

	// 5. auto demodulation
	b.autoDemodulate(ctx, p.Tuner)

	// 6. demultiplexer
	p.Demux, err = b.demux(ctx)
	if err != nil {
		return nil, stageError(StageDemultiplexer, err)
	}

	// 7. tuner -> demux, or tuner -> receiver -> demux
	if direct := b.connectNodes(ctx, p.Tuner, p.Demux); direct != nil {
		b.logger.Debug().Err(direct).Msg("tuner has no transport output, resolving receiver")
		p.Receiver, err = b.device(ctx, media.CategoryReceiver, 2, matchDisplayName(a.cfg.Receiver))
		if err != nil {
			return nil, stageError(StageReceiver, err)
		}
		if err := b.connectNodes(ctx, p.Tuner, p.Receiver); err != nil {
			return nil, stageError(StageConnectReceiver, err)
		}
		if err := b.connectNodes(ctx, p.Receiver, p.Demux); err != nil {
			return nil, stageError(StageConnectReceiver, err)
		}
	}

	// 8. elementary stream outputs
	b.streams(ctx, p.Demux, sel)

	b.logger.Info().Int("nodes", len(b.added)).Bool("receiver", p.Receiver != nil).
		Dur("elapsed", time.Since(start)).Msg("pipeline assembled")
	return p, nil
}

func matchDisplayName(name string) func(*registry.Descriptor) bool {
	return func(d *registry.Descriptor) bool {
		if name == "" {
			return true
		}
		src, ok := d.Source.(registry.SourceRegistry)
		return ok && strings.EqualFold(src.DisplayName, name)
	}
}

// device resolves and instantiates the best matching device of category,
// trying candidates in merit order until one instantiates and is added.
func (b *build) device(ctx context.Context, category uuid.UUID, group int, match func(*registry.Descriptor) bool) (graph.Node, error) {
	if b.a.devices == nil {
		return nil, graph.PointerViolation("device enumerator")
	}
	devs, err := b.a.devices.Enumerate(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", media.Name(category), err)
	}

	list := registry.NewList()
	for _, d := range b.a.blacklist {
		list.Insert(d, group, false, false)
	}
	for _, dev := range devs {
		d := registry.FromDevice(category, dev)
		if registry.Blocked(d, b.a.blacklist) {
			b.logger.Debug().Str(log.FieldCandidate, d.Label()).Msg("blacklisted device skipped")
			continue
		}
		list.Insert(d, group, false, true)
	}

	var errs []error
	tried := 0
	for _, d := range list.Resolve([]media.Capability{{Major: category}}, false) {
		if !match(d) {
			continue
		}
		tried++
		n, err := b.add(ctx, d)
		if err != nil {
			b.logger.Debug().Err(err).Str(log.FieldCandidate, d.Label()).Msg("candidate rejected")
			errs = append(errs, err)
			continue
		}
		b.logger.Info().Str(log.FieldNode, n.Name()).Str(log.FieldCandidate, d.Label()).
			Str(log.FieldMerit, d.Merit.String()).Msgf("%s selected", media.Name(category))
		return n, nil
	}
	if tried == 0 {
		return nil, fmt.Errorf("%w: no %s among %d devices", graph.ErrResolutionFailure, media.Name(category), len(devs))
	}
	return nil, fmt.Errorf("%w: %s: %w", graph.ErrResolutionFailure, media.Name(category), errors.Join(errs...))
}

// topology records the tuner's control sub-nodes. A missing frequency
// sub-node is fatal; a missing demodulator only narrows telemetry.
func (b *build) topology(ctx context.Context, tuner graph.Node) (tuning.Controls, error) {
	topo, ok := tuner.(graph.Topology)
	if !ok {
		return tuning.Controls{}, fmt.Errorf("tuner %s exposes no topology: %w", tuner.Name(), graph.ErrNoTelemetrySource)
	}
	freq, freqErr := topo.ControlNode(ctx, graph.IfaceFrequency)
	demod, demodErr := topo.ControlNode(ctx, graph.IfaceDemodulator)
	switch {
	case freqErr != nil && demodErr != nil:
		return tuning.Controls{}, fmt.Errorf("%w: %w", graph.ErrNoTelemetrySource, errors.Join(freqErr, demodErr))
	case freqErr != nil:
		return tuning.Controls{}, fmt.Errorf("frequency control: %w", freqErr)
	case demodErr != nil:
		b.logger.Info().Err(demodErr).Msg("tuner has no demodulator control")
		demod = nil
	}

	device, ok := tuner.(graph.DeviceControl)
	if !ok {
		return tuning.Controls{}, graph.PointerViolation("tuner device control")
	}
	return tuning.NewControls(device, freq, demod)
}

func (b *build) autoDemodulate(ctx context.Context, tuner graph.Node) {
	topo, ok := tuner.(graph.Topology)
	if !ok {
		return
	}
	n, err := topo.ControlNode(ctx, graph.IfaceAutoDemodulate)
	if err != nil {
		b.logger.Debug().Err(err).Msg("auto demodulation not exposed")
		return
	}
	ad, ok := n.(graph.AutoDemodulator)
	if !ok {
		return
	}
	if err := ad.EnableAutoDemodulate(ctx); err != nil {
		b.logger.Warn().Err(err).Str(log.FieldOp, "auto_demodulate").Str(log.FieldStatus, graph.Class(err)).
			Msg("auto demodulation not enabled")
	}
}

func (b *build) demux(ctx context.Context) (graph.Demultiplexer, error) {
	if b.a.newDemux == nil {
		return nil, graph.PointerViolation("demultiplexer factory")
	}
	d, err := b.a.newDemux(ctx)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, graph.PointerViolation("demultiplexer")
	}
	if err := b.addNode(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// wanted reports whether kind gets an output and whether it is rendered.
func (b *build) wanted(kind model.StreamKind, sel Selection) (create, render bool) {
	switch kind.Family() {
	case model.FamilyVideo:
		current := kind == sel.Video
		return current || b.a.cfg.Rebuild == model.PolicyNever, current
	case model.FamilyAudio:
		current := kind == sel.Audio
		if b.a.cfg.Rebuild == model.PolicyAlways {
			return current || slices.Contains(sel.AudioKinds, kind), current
		}
		return true, current
	case model.FamilySubtitle:
		return true, true
	default:
		return true, false
	}
}

// streams resolves each declared kind's output and connects it onward.
// Failures here leave that kind unconnected and are only logged.
func (b *build) streams(ctx context.Context, demux graph.Demultiplexer, sel Selection) {
	for _, kind := range b.a.table.Kinds() {
		create, render := b.wanted(kind, sel)
		if !create {
			continue
		}
		logger := b.logger.With().Str(log.FieldStreamKind, string(kind)).Logger()
		out, err := b.a.table.Resolve(ctx, kind, demux)
		if err != nil {
			logger.Warn().Err(err).Str(log.FieldOp, "resolve_output").Str(log.FieldStatus, graph.Class(err)).
				Msg("stream output not created")
			continue
		}
		if out.ConnectedTo() != nil {
			continue
		}

		if kind.Family() == model.FamilySubtitle && b.a.passThrough != nil {
			next, err := b.a.passThrough.Insert(ctx, b.rt, out)
			if err != nil {
				logger.Warn().Err(err).Str(log.FieldOp, "pass_through").Str(log.FieldStatus, graph.Class(err)).
					Msg("subtitle pass-through not inserted")
				continue
			}
			out = next
		}

		if err := b.connectOnward(ctx, out, render, 0); err != nil {
			logger.Warn().Err(err).Str(log.FieldOp, "connect_output").Str(log.FieldStatus, graph.Class(err)).
				Bool("render", render).Msg("stream output left unconnected")
			continue
		}
		logger.Debug().Bool("render", render).Msg("stream output connected")
	}
}
