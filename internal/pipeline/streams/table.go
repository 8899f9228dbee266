// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package streams keeps the per-kind demultiplexer outputs and the PID
// currently mapped to each.
package streams

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ManuGH/dvbgraph/internal/log"
	"github.com/ManuGH/dvbgraph/internal/metrics"
	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/media"
	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
)

// Descriptor is one elementary stream kind. PID 0 means unmapped.
type Descriptor struct {
	Kind         model.StreamKind
	MediaType    media.MediaType
	FindExisting bool
	Output       graph.Pin
	PID          uint16
}

// Content is how the demultiplexer delivers the kind's PID.
func (d Descriptor) Content() graph.MapContent {
	if d.Kind.Family() == model.FamilySection {
		return graph.ContentMPEG2PSI
	}
	return graph.ContentElementaryStream
}

// Table maps stream kinds to descriptors. Each kind holds at most one PID;
// keeping two kinds off the same PID is up to the caller.
type Table struct {
	mu      sync.Mutex
	entries map[model.StreamKind]*Descriptor

	// excl serializes switch and scan sequences spanning several calls.
	excl sync.Mutex
}

func NewTable() *Table {
	return &Table{entries: make(map[model.StreamKind]*Descriptor)}
}

// Declare registers kind with its target type. Re-declaring overwrites the
// type and keeps any output and mapping.
func (t *Table) Declare(kind model.StreamKind, mt media.MediaType, findExisting bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[kind]; ok {
		e.MediaType = mt.Clone()
		e.FindExisting = findExisting
		return
	}
	t.entries[kind] = &Descriptor{Kind: kind, MediaType: mt.Clone(), FindExisting: findExisting}
}

func (t *Table) entry(kind model.StreamKind) (*Descriptor, error) {
	e, ok := t.entries[kind]
	if !ok {
		return nil, fmt.Errorf("stream %q: %w", kind, graph.ErrUnknownStream)
	}
	return e, nil
}

// Get returns a copy of kind's descriptor.
func (t *Table) Get(kind model.StreamKind) (Descriptor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[kind]
	if !ok {
		return Descriptor{}, false
	}
	out := *e
	out.MediaType = e.MediaType.Clone()
	return out, true
}

// Output returns kind's demultiplexer output, or nil.
func (t *Table) Output(kind model.StreamKind) graph.Pin {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[kind]; ok {
		return e.Output
	}
	return nil
}

// SetOutput records the output serving kind.
func (t *Table) SetOutput(kind model.StreamKind, p graph.Pin) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, err := t.entry(kind)
	if err != nil {
		return err
	}
	e.Output = p
	return nil
}

// SetMediaType replaces kind's type without touching its output.
func (t *Table) SetMediaType(kind model.StreamKind, mt media.MediaType) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, err := t.entry(kind)
	if err != nil {
		return err
	}
	e.MediaType = mt.Clone()
	return nil
}

// Kinds lists declared kinds in assembly order.
func (t *Table) Kinds() []model.StreamKind {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []model.StreamKind
	for _, k := range model.StreamKinds {
		if _, ok := t.entries[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Resolve finds or creates kind's output on demux. Kinds flagged
// FindExisting reuse a compatible existing output when one is present.
func (t *Table) Resolve(ctx context.Context, kind model.StreamKind, demux graph.Demultiplexer) (graph.Pin, error) {
	if demux == nil {
		return nil, graph.PointerViolation("demultiplexer")
	}
	t.mu.Lock()
	e, err := t.entry(kind)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	mt, findExisting := e.MediaType.Clone(), e.FindExisting
	t.mu.Unlock()

	var out graph.Pin
	if findExisting {
		out = graph.FindPin(demux, graph.Output, mt)
	}
	if out == nil {
		out, err = demux.CreateOutputPin(ctx, kind.PinName(), mt)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", graph.ErrOutputCreationFailed, kind, err)
		}
		if out == nil {
			return nil, graph.PointerViolation("created output for " + string(kind))
		}
	}

	t.mu.Lock()
	e.Output = out
	t.mu.Unlock()
	return out, nil
}

func mapper(e *Descriptor) (graph.PIDMapper, error) {
	if e.Output == nil {
		return nil, graph.PointerViolation("output for " + string(e.Kind))
	}
	m, ok := e.Output.(graph.PIDMapper)
	if !ok {
		return nil, fmt.Errorf("output %s cannot map pids: %w", e.Output.Name(), graph.ErrUnexpected)
	}
	return m, nil
}

// Map routes pid to kind, unmapping any PID the kind already holds.
// Mapping PID 0 is an unmap.
func (t *Table) Map(ctx context.Context, kind model.StreamKind, pid uint16) error {
	if pid == 0 {
		return t.Unmap(ctx, kind)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	e, err := t.entry(kind)
	if err != nil {
		return err
	}
	if e.PID == pid {
		return nil
	}
	if err := t.unmapLocked(ctx, e); err != nil {
		return err
	}
	m, err := mapper(e)
	if err != nil {
		return err
	}
	if err := m.MapPID(ctx, pid, e.Content()); err != nil {
		return graph.Wrap("map_pid", string(kind), err)
	}
	e.PID = pid
	metrics.SetPIDMapped(string(kind), pid)
	logger := log.WithComponent("streams")
	logger.Debug().
		Str(log.FieldStreamKind, string(kind)).
		Uint16(log.FieldPID, pid).
		Msg("pid mapped")
	return nil
}

// Unmap clears kind's PID. Unmapping an unmapped kind succeeds.
func (t *Table) Unmap(ctx context.Context, kind model.StreamKind) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, err := t.entry(kind)
	if err != nil {
		return err
	}
	return t.unmapLocked(ctx, e)
}

// unmapLocked forgets the PID even when the demultiplexer refuses, so the
// table never attributes a PID the caller asked to drop.
func (t *Table) unmapLocked(ctx context.Context, e *Descriptor) error {
	if e.PID == 0 {
		return nil
	}
	pid := e.PID
	e.PID = 0
	metrics.SetPIDMapped(string(e.Kind), 0)

	m, err := mapper(e)
	if err != nil {
		return err
	}
	if err := m.UnmapPID(ctx, pid); err != nil {
		logger := log.WithComponent("streams")
		logger.Warn().
			Err(err).
			Str(log.FieldStreamKind, string(e.Kind)).
			Uint16(log.FieldPID, pid).
			Str(log.FieldStatus, graph.Class(err)).
			Msg("unmap failed")
		return graph.Wrap("unmap_pid", string(e.Kind), err)
	}
	return nil
}

// ClearMaps unmaps every kind and reports all failures.
func (t *Table) ClearMaps(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var errs []error
	for _, k := range model.StreamKinds {
		if e, ok := t.entries[k]; ok {
			errs = append(errs, t.unmapLocked(ctx, e))
		}
	}
	return errors.Join(errs...)
}

// Clear drops every declaration. Mappings are forgotten, not unmapped.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.entries {
		metrics.SetPIDMapped(string(k), 0)
	}
	t.entries = make(map[model.StreamKind]*Descriptor)
}

// WithExclusive runs fn while holding the table's sequence lock. Switches
// and scans use it so their multi-step PID work does not interleave.
func (t *Table) WithExclusive(fn func() error) error {
	t.excl.Lock()
	defer t.excl.Unlock()
	return fn()
}

// Holder returns the kind holding pid, if any.
func (t *Table) Holder(pid uint16) (model.StreamKind, bool) {
	if pid == 0 {
		return model.KindUnknown, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, k := range model.StreamKinds {
		if e, ok := t.entries[k]; ok && e.PID == pid {
			return k, true
		}
	}
	return model.KindUnknown, false
}
