// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session drives one tuner pipeline for a host: it assembles the
// graph, changes channels, selects audio and subtitle tracks, scans and
// reports signal statistics.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/dvbgraph/internal/channels"
	"github.com/ManuGH/dvbgraph/internal/config"
	"github.com/ManuGH/dvbgraph/internal/log"
	"github.com/ManuGH/dvbgraph/internal/metrics"
	"github.com/ManuGH/dvbgraph/internal/pipeline/assembler"
	"github.com/ManuGH/dvbgraph/internal/pipeline/bus"
	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
	"github.com/ManuGH/dvbgraph/internal/pipeline/registry"
	"github.com/ManuGH/dvbgraph/internal/pipeline/runstate"
	"github.com/ManuGH/dvbgraph/internal/pipeline/scan"
	"github.com/ManuGH/dvbgraph/internal/pipeline/streams"
	"github.com/ManuGH/dvbgraph/internal/pipeline/switcher"
	"github.com/ManuGH/dvbgraph/internal/pipeline/tuning"
)

// Deps are the host-provided collaborators.
type Deps struct {
	Runtime graph.Runtime
	Devices registry.Enumerator
	Env     registry.Environment
	// Transforms are decoders, renderers and section sinks offered to the
	// assembler. Entries sharing an identity with Blacklist are dropped.
	Transforms  []*registry.Descriptor
	Demux       func(ctx context.Context) (graph.Demultiplexer, error)
	PassThrough assembler.PassThroughInserter
	Channels    *channels.Store
	Bus         bus.Bus
	// Scanner defaults to a PSI scan manager publishing on Bus.
	Scanner *scan.Manager
	// Guide is optional; without it UpdateGuide reports nothing.
	Guide scan.GuideParser
}

// Session owns one pipeline. Channel changes and stream selection are
// serialized; statistics may be read concurrently.
type Session struct {
	id       string
	cfg      config.AppConfig
	rt       graph.Runtime
	store    *channels.Store
	bus      bus.Bus
	scanner  *scan.Manager
	guide    scan.GuideParser
	modules  *registry.ModuleCache
	table    *streams.Table
	asm      *assembler.Assembler
	run      *runstate.Controller
	switcher *switcher.Controller
	logger   zerolog.Logger

	mu       sync.Mutex
	pipeline *assembler.Pipeline
	facade   *tuning.Facade
	lastPref int
	curVideo model.StreamKind
	curAudio model.StreamKind
	hidden   bool
}

// New prepares a session from cfg. Nothing is assembled until Open.
func New(cfg config.AppConfig, deps Deps) (*Session, error) {
	if deps.Runtime == nil || deps.Channels == nil {
		return nil, graph.PointerViolation("session runtime or channel store")
	}

	blacklist := Blacklist()
	transforms := registry.NewList()
	for _, d := range blacklist {
		transforms.Insert(d, 0, true, false)
	}
	for _, d := range deps.Transforms {
		if registry.Blocked(d, blacklist) {
			logger := log.WithComponent("session")
			logger.Debug().Str(log.FieldCandidate, d.Label()).Msg("blacklisted transform dropped")
			continue
		}
		transforms.Insert(d, 0, true, true)
	}
	metrics.SetRegistryCandidates(len(transforms.Candidates()))

	s := &Session{
		id:      uuid.NewString(),
		cfg:     cfg,
		rt:      deps.Runtime,
		store:   deps.Channels,
		bus:     deps.Bus,
		scanner: deps.Scanner,
		guide:   deps.Guide,
		modules: deps.Env.Modules,
	}
	s.logger = log.WithComponent("session").With().Str(log.FieldSessionID, s.id).Logger()
	if s.scanner == nil {
		s.scanner = scan.NewManager(nil, deps.Bus)
	}

	s.lastPref = deps.Channels.LastChannel()
	if s.lastPref == 0 {
		s.lastPref = cfg.Channels.LastChannel
	}
	last, found := s.lastChannel()
	s.curVideo, s.curAudio = model.KindMPV, model.KindMPA
	if found {
		s.curVideo, s.curAudio = videoKind(last), audioKind(last)
	}
	s.table = streams.DefaultCatalog(cfg.Tuner.NetworkType, last.Geometry())

	s.asm = assembler.New(assembler.Config{
		NetworkType:     cfg.Tuner.NetworkType,
		NetworkProvider: cfg.Tuner.NetworkProvider,
		Tuner:           cfg.Tuner.Device,
		Receiver:        cfg.Tuner.Receiver,
		Rebuild:         cfg.Graph.Rebuild,
	}, assembler.Deps{
		Runtime:     deps.Runtime,
		Transforms:  transforms,
		Devices:     deps.Devices,
		Env:         deps.Env,
		Table:       s.table,
		Demux:       deps.Demux,
		PassThrough: deps.PassThrough,
		Blacklist:   blacklist,
	})
	s.run = runstate.New(deps.Runtime, runstate.Options{
		StateTimeout: cfg.Tuning.StateTimeout,
		Feedback:     busFeedback{bus: deps.Bus},
	})
	s.switcher = switcher.New(deps.Runtime, s.table, s.run, switcher.Options{Busy: s.asm.Busy})
	return s, nil
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

func (s *Session) context(ctx context.Context) context.Context {
	return log.ContextWithSessionID(ctx, s.id)
}

func (s *Session) lastChannel() (channels.Channel, bool) {
	if s.lastPref <= 0 {
		return channels.Channel{}, false
	}
	ch, err := s.store.FindByPreference(s.lastPref)
	return ch, err == nil
}

// Open assembles the pipeline for the last channel's stream kinds.
func (s *Session) Open(ctx context.Context) error {
	ctx = s.context(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pipeline != nil {
		return fmt.Errorf("open: %w", graph.ErrInvalidState)
	}

	last, found := s.lastChannel()
	p, err := s.asm.Build(ctx, assembler.Selection{
		Video:      s.curVideo,
		Audio:      s.curAudio,
		AudioKinds: last.AudioKinds(),
	})
	if err != nil {
		return err
	}
	s.pipeline = p
	s.switcher.Attach(p.Demux)
	s.facade = tuning.New(p.Controls, tuning.Options{
		PollInterval: s.cfg.Tuning.PollInterval,
		PollRetries:  s.cfg.Tuning.PollRetries,
		Busy:         s.asm.Busy,
	})

	s.hidden = found && last.IsRadio()
	s.publishWindow(ctx, last)
	s.logger.Info().
		Str(log.FieldStreamKind, string(s.curVideo)).
		Str("audio_kind", string(s.curAudio)).
		Int("preference", s.lastPref).
		Msg("session opened")
	return nil
}

// Stats reads signal telemetry from the tuner.
func (s *Session) Stats(ctx context.Context) (tuning.Stats, error) {
	s.mu.Lock()
	f := s.facade
	s.mu.Unlock()
	if f == nil {
		return tuning.Stats{}, ErrNotOpen
	}
	return f.GetStats(s.context(ctx))
}

// SetFrequency tunes without changing channel, e.g. ahead of a scan.
func (s *Session) SetFrequency(ctx context.Context, frequency, bandwidth, symbolRate uint32) error {
	s.mu.Lock()
	f := s.facade
	s.mu.Unlock()
	if f == nil {
		return ErrNotOpen
	}
	return f.ApplyFrequency(s.context(ctx), frequency, bandwidth, symbolRate)
}

// State reports the pipeline run state.
func (s *Session) State(ctx context.Context) (model.RunState, error) {
	return s.run.State(s.context(ctx))
}

// Pipeline returns the assembled pipeline, or nil before Open.
func (s *Session) Pipeline() *assembler.Pipeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipeline
}

// Table exposes the stream table for inspection.
func (s *Session) Table() *streams.Table { return s.table }

// Close stops the pipeline, removes its nodes, forgets the stream table and
// releases external modules. It is safe to call on a session never opened.
func (s *Session) Close(ctx context.Context) error {
	ctx = s.context(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.pipeline != nil {
		if err := s.run.RequestState(ctx, model.RunStopped); err != nil {
			errs = append(errs, err)
		}
		if err := s.table.ClearMaps(ctx); err != nil {
			errs = append(errs, err)
		}
		for _, n := range s.rt.Nodes() {
			if err := s.rt.RemoveNode(ctx, n); err != nil {
				errs = append(errs, fmt.Errorf("remove %s: %w", n.Name(), err))
			}
		}
	}
	s.table.Clear()
	s.pipeline, s.facade = nil, nil
	if s.modules != nil {
		if err := s.modules.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		s.logger.Warn().Err(err).Str(log.FieldOp, "close").Msg("session closed with errors")
		return err
	}
	s.logger.Info().Msg("session closed")
	return nil
}

func (s *Session) publish(ctx context.Context, topic string, msg bus.Message) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, topic, msg); err != nil {
		s.logger.Warn().Err(err).Str(log.FieldEvent, topic).Msg("event not published")
	}
}

func (s *Session) publishWindow(ctx context.Context, ch channels.Channel) {
	s.publish(ctx, model.TopicVideoWindow, model.VideoWindow{Hidden: s.hidden})
	if !s.hidden {
		g := ch.Geometry()
		s.publish(ctx, model.TopicLayoutRecalc, model.LayoutRecalc{Width: g.Width, Height: g.Height})
	}
}

// videoKind is the video kind the channel is routed as. Radio channels
// keep the MPEG-2 path.
func videoKind(ch channels.Channel) model.StreamKind {
	if ch.VideoKind == model.KindUnknown {
		return model.KindMPV
	}
	return ch.VideoKind
}

func audioKind(ch channels.Channel) model.StreamKind {
	if a, ok := ch.DefaultAudioStream(); ok {
		return a.Kind
	}
	return model.KindUnknown
}
