// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package scan discovers channels on a tuned multiplex by reading its
// program tables.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ManuGH/dvbgraph/internal/log"
	"github.com/ManuGH/dvbgraph/internal/metrics"
	"github.com/ManuGH/dvbgraph/internal/pipeline/bus"
	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
)

// ErrNoSections is returned when no program-table source is attached.
var ErrNoSections = errors.New("no program table source")

type Status struct {
	State      string `json:"state"`
	StartedAt  int64  `json:"started_at,omitempty"`
	FinishedAt int64  `json:"finished_at,omitempty"`
	Frequency  uint32 `json:"frequency_hz,omitempty"`
	Programs   int    `json:"programs"`
	Published  int    `json:"published"`
	LastError  string `json:"last_error,omitempty"`
}

// Request is one multiplex to scan. The caller has already tuned to it.
type Request struct {
	Frequency  uint32
	Bandwidth  uint32
	SymbolRate uint32
	Source     graph.SectionSource
}

type Manager struct {
	parser     Parser
	bus        bus.Bus
	isScanning atomic.Bool

	// SettleDelay is waited before reading the tables of a freshly tuned
	// multiplex.
	SettleDelay time.Duration

	mu     sync.RWMutex
	status Status
}

func NewManager(parser Parser, b bus.Bus) *Manager {
	if parser == nil {
		parser = PSIParser{}
	}
	return &Manager{
		parser:      parser,
		bus:         b,
		SettleDelay: 500 * time.Millisecond,
		status:      Status{State: "idle"},
	}
}

func (m *Manager) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Scanning reports whether a scan is in flight.
func (m *Manager) Scanning() bool {
	return m.isScanning.Load()
}

// RunScan scans one multiplex synchronously and returns the programs found.
// A scan requested while another runs is dropped and returns nil, nil.
func (m *Manager) RunScan(ctx context.Context, req Request) ([]Program, error) {
	if !m.isScanning.CompareAndSwap(false, true) {
		logger := log.WithComponentFromContext(ctx, "scan")
		logger.Debug().Msg("scan already running, request dropped")
		return nil, nil
	}
	defer m.isScanning.Store(false)
	return m.scanInternal(log.ContextWithScanID(ctx, uuid.NewString()), req)
}

func (m *Manager) setStatus(fn func(*Status)) {
	m.mu.Lock()
	fn(&m.status)
	m.mu.Unlock()
}

func (m *Manager) fail(err error) error {
	m.setStatus(func(s *Status) {
		s.State = "failed"
		s.FinishedAt = time.Now().Unix()
		s.LastError = err.Error()
	})
	return err
}

func (m *Manager) scanInternal(ctx context.Context, req Request) ([]Program, error) {
	logger := log.WithComponentFromContext(ctx, "scan").With().Uint32(log.FieldFrequencyHz, req.Frequency).Logger()
	logger.Info().Msg("starting multiplex scan")

	m.setStatus(func(s *Status) {
		*s = Status{State: "running", StartedAt: time.Now().Unix(), Frequency: req.Frequency}
	})

	if req.Source == nil {
		return nil, m.fail(ErrNoSections)
	}
	if m.SettleDelay > 0 {
		if err := sleepCtx(ctx, m.SettleDelay); err != nil {
			return nil, m.fail(err)
		}
	}

	rc, err := req.Source.OpenSections(ctx)
	if err != nil {
		return nil, m.fail(fmt.Errorf("open sections: %w", err))
	}
	defer func() { _ = rc.Close() }()

	programs, err := m.parser.Parse(ctx, rc)
	if err != nil {
		logger.Error().Err(err).Str(log.FieldOp, "parse").Msg("program tables not parsed")
		return programs, m.fail(err)
	}
	m.setStatus(func(s *Status) { s.Programs = len(programs) })

	published := 0
	for _, p := range programs {
		if p.Name == "" {
			continue
		}
		if m.bus != nil {
			if err := m.bus.Publish(ctx, model.TopicChannelDiscovered, discovered(p, req)); err != nil {
				return programs, m.fail(err)
			}
		}
		published++
		m.setStatus(func(s *Status) { s.Published = published })
		logger.Debug().Str(log.FieldChannel, p.Name).Uint16("service_id", p.ServiceID).Msg("channel discovered")
	}
	metrics.AddScanChannelsFound(published)

	m.setStatus(func(s *Status) {
		s.State = "complete"
		s.FinishedAt = time.Now().Unix()
	})
	logger.Info().Int("programs", len(programs)).Int("published", published).Msg("multiplex scan completed")
	return programs, nil
}

func discovered(p Program, req Request) model.ChannelDiscovered {
	ev := model.ChannelDiscovered{
		Name:       p.Name,
		Frequency:  req.Frequency,
		Bandwidth:  req.Bandwidth,
		SymbolRate: req.SymbolRate,
		ServiceID:  p.ServiceID,
		PMTPID:     p.PMTPID,
		Subtitles:  len(p.Subtitles()),
	}
	if v, ok := p.Video(); ok {
		ev.VideoKind, ev.VideoPID = v.Kind, v.PID
	}
	for _, a := range p.Audio() {
		ev.AudioKinds = append(ev.AudioKinds, a.Kind)
		ev.AudioPIDs = append(ev.AudioPIDs, a.PID)
	}
	return ev
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
