// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package memgraph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/media"
)

// Demux is a demultiplexer with one transport input and PID-mapped outputs.
type Demux struct {
	*Node

	mu       sync.Mutex
	reject   func(name string, mt media.MediaType) error
	mapErr   error
	mappings map[*Pin]map[uint16]graph.MapContent
	retyped  map[string]int
}

var _ graph.Demultiplexer = (*Demux)(nil)

// NewDemux returns a demultiplexer accepting MPEG-2 transport. existing
// outputs are present before any CreateOutputPin call.
func NewDemux(name string, existing map[string]media.MediaType) *Demux {
	d := &Demux{
		Node:     NewNode(name),
		mappings: make(map[*Pin]map[uint16]graph.MapContent),
		retyped:  make(map[string]int),
	}
	d.Node.owner = d
	d.AddPin("in", graph.Input, media.MediaType{Capability: media.Capability{Major: media.MajorStream, Minor: media.MinorMPEG2Transport}})
	names := make([]string, 0, len(existing))
	for n := range existing {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		d.addOutput(n, existing[n])
	}
	return d
}

// RejectCreate installs a hook that can refuse output creation.
func (d *Demux) RejectCreate(fn func(name string, mt media.MediaType) error) {
	d.mu.Lock()
	d.reject = fn
	d.mu.Unlock()
}

// FailMapping makes every MapPID call fail with err.
func (d *Demux) FailMapping(err error) {
	d.mu.Lock()
	d.mapErr = err
	d.mu.Unlock()
}

func (d *Demux) addOutput(name string, mt media.MediaType) *Pin {
	p := d.AddPin(name, graph.Output, mt)
	p.mapper = d
	return p
}

func (d *Demux) CreateOutputPin(_ context.Context, name string, mt media.MediaType) (graph.Pin, error) {
	d.mu.Lock()
	reject := d.reject
	d.mu.Unlock()
	if reject != nil {
		if err := reject(name, mt); err != nil {
			return nil, err
		}
	}
	if d.Pin(name) != nil {
		return nil, fmt.Errorf("output %q: %w", name, graph.ErrAlreadyConnected)
	}
	return d.addOutput(name, mt), nil
}

func (d *Demux) SetOutputPinMediaType(_ context.Context, name string, mt media.MediaType) error {
	p := d.Pin(name)
	if p == nil || p.dir != graph.Output {
		return fmt.Errorf("output %q: %w", name, graph.ErrNotFound)
	}
	p.SetMediaTypes(mt)
	d.mu.Lock()
	d.retyped[name]++
	d.mu.Unlock()
	return nil
}

// Retyped counts SetOutputPinMediaType calls for an output.
func (d *Demux) Retyped(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.retyped[name]
}

func (d *Demux) mapPID(p *Pin, pid uint16, content graph.MapContent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mapErr != nil {
		return d.mapErr
	}
	m := d.mappings[p]
	if m == nil {
		m = make(map[uint16]graph.MapContent)
		d.mappings[p] = m
	}
	m[pid] = content
	return nil
}

func (d *Demux) unmapPID(p *Pin, pid uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.mappings[p][pid]; !ok {
		return fmt.Errorf("pid %d on %s: %w", pid, p.name, graph.ErrNotFound)
	}
	delete(d.mappings[p], pid)
	return nil
}

// Mapped lists the PIDs mapped on an output, ascending.
func (d *Demux) Mapped(name string) []uint16 {
	p := d.Pin(name)
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []uint16
	for pid := range d.mappings[p] {
		out = append(out, pid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
