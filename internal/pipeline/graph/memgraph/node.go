// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package memgraph is an in-memory graph runtime. It backs the simulate
// command and doubles as the failure-injecting fake in tests.
package memgraph

import (
	"context"
	"fmt"
	"sync"

	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/media"
)

// Node is a plain node with a fixed or growing pin set.
type Node struct {
	name  string
	owner graph.Node

	mu   sync.Mutex
	pins []*Pin
}

// NewNode returns a node without pins.
func NewNode(name string) *Node {
	n := &Node{name: name}
	n.owner = n
	return n
}

func (n *Node) Name() string { return n.name }

func (n *Node) Pins() []graph.Pin {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]graph.Pin, len(n.pins))
	for i, p := range n.pins {
		out[i] = p
	}
	return out
}

// AddPin appends a pin offering types.
func (n *Node) AddPin(name string, dir graph.Direction, types ...media.MediaType) *Pin {
	p := &Pin{name: name, dir: dir, node: n, types: types}
	n.mu.Lock()
	n.pins = append(n.pins, p)
	n.mu.Unlock()
	return p
}

// Pin looks a pin up by name.
func (n *Node) Pin(name string) *Pin {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, p := range n.pins {
		if p.name == name {
			return p
		}
	}
	return nil
}

// NewTransform returns a node with one input and one output, the shape of
// a decoder.
func NewTransform(name string, in []media.MediaType, out []media.MediaType) *Node {
	n := NewNode(name)
	n.AddPin("in", graph.Input, in...)
	n.AddPin("out", graph.Output, out...)
	return n
}

// NewSink returns a node with a single input.
func NewSink(name string, in ...media.MediaType) *Node {
	n := NewNode(name)
	n.AddPin("in", graph.Input, in...)
	return n
}

// Pin is a memgraph pin. Connection state is held per side: breaking a link
// on one pin leaves its peer pointing back until that side is broken too.
type Pin struct {
	name  string
	dir   graph.Direction
	node  *Node
	types []media.MediaType

	mu       sync.Mutex
	peer     *Pin
	current  *media.MediaType
	dynamic  bool
	blocked  bool
	mapper   *Demux
	flushes  int
	segments int
}

func (p *Pin) Name() string               { return p.name }
func (p *Pin) Direction() graph.Direction { return p.dir }
func (p *Pin) Node() graph.Node           { return p.node.owner }

func (p *Pin) ConnectedTo() graph.Pin {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.peer == nil {
		return nil
	}
	return p.peer
}

func (p *Pin) MediaTypes() []media.MediaType {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]media.MediaType(nil), p.types...)
}

// SetMediaTypes replaces the offered types.
func (p *Pin) SetMediaTypes(types ...media.MediaType) {
	p.mu.Lock()
	p.types = types
	p.mu.Unlock()
}

// Connected returns the negotiated type, if connected.
func (p *Pin) Connected() (media.MediaType, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return media.MediaType{}, false
	}
	return *p.current, true
}

// SetDynamic toggles support for reconnection while running.
func (p *Pin) SetDynamic(v bool) *Pin {
	p.mu.Lock()
	p.dynamic = v
	p.mu.Unlock()
	return p
}

func (p *Pin) SupportsDynamicReconnect() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dynamic
}

func (p *Pin) Block(context.Context) error {
	p.mu.Lock()
	p.blocked = true
	p.mu.Unlock()
	return nil
}

func (p *Pin) Unblock(context.Context) error {
	p.mu.Lock()
	p.blocked = false
	p.mu.Unlock()
	return nil
}

// Blocked reports whether flow is currently blocked.
func (p *Pin) Blocked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.blocked
}

func (p *Pin) BeginFlush() error { return nil }

func (p *Pin) EndFlush() error {
	p.mu.Lock()
	p.flushes++
	p.mu.Unlock()
	return nil
}

func (p *Pin) NewSegment() error {
	p.mu.Lock()
	p.segments++
	p.mu.Unlock()
	return nil
}

// Flushes counts completed flushes.
func (p *Pin) Flushes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushes
}

// MapPID routes pid to this output. Only demultiplexer outputs map PIDs.
func (p *Pin) MapPID(_ context.Context, pid uint16, content graph.MapContent) error {
	if p.mapper == nil {
		return fmt.Errorf("map pid on %s: %w", p.label(), graph.ErrUnexpected)
	}
	return p.mapper.mapPID(p, pid, content)
}

func (p *Pin) UnmapPID(_ context.Context, pid uint16) error {
	if p.mapper == nil {
		return fmt.Errorf("unmap pid on %s: %w", p.label(), graph.ErrUnexpected)
	}
	return p.mapper.unmapPID(p, pid)
}

func (p *Pin) label() string {
	return p.node.name + "." + p.name
}

func (p *Pin) accepts(mt media.MediaType) bool {
	for _, t := range p.MediaTypes() {
		if t.Compatible(mt) {
			return true
		}
	}
	return false
}
