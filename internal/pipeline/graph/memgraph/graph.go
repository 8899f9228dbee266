// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package memgraph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/media"
	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
)

// Faults injects failures. Hooks run before the runtime applies an
// operation; a non-nil return aborts it.
type Faults struct {
	Connect    func(out, in graph.Pin) error
	Disconnect func(p graph.Pin) error
	Reconnect  func(out, in graph.Pin) error
	Run        error
	Pause      error
	Stop       error
	State      error
}

// Graph is an in-memory graph.Runtime. Links cannot be changed while the
// graph is not stopped unless both pins involved are dynamic.
type Graph struct {
	mu     sync.Mutex
	nodes  []graph.Node
	state  model.RunState
	faults Faults
	calls  []string
}

var _ graph.Runtime = (*Graph)(nil)

func New() *Graph {
	return &Graph{state: model.RunStopped}
}

// SetFaults replaces the failure hooks.
func (g *Graph) SetFaults(f Faults) {
	g.mu.Lock()
	g.faults = f
	g.mu.Unlock()
}

// Calls returns the operations applied so far, oldest first.
func (g *Graph) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

// ResetCalls clears the call log.
func (g *Graph) ResetCalls() {
	g.mu.Lock()
	g.calls = nil
	g.mu.Unlock()
}

func (g *Graph) record(format string, args ...any) {
	g.calls = append(g.calls, fmt.Sprintf(format, args...))
}

func (g *Graph) AddNode(_ context.Context, n graph.Node, name string) error {
	if n == nil {
		return graph.PointerViolation("node")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, existing := range g.nodes {
		if existing == n {
			return fmt.Errorf("add %s: %w", name, graph.ErrAlreadyConnected)
		}
	}
	g.nodes = append(g.nodes, n)
	g.record("add %s", n.Name())
	return nil
}

func (g *Graph) RemoveNode(_ context.Context, n graph.Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, existing := range g.nodes {
		if existing != n {
			continue
		}
		for _, p := range n.Pins() {
			if mp, ok := p.(*Pin); ok {
				g.breakBoth(mp)
			}
		}
		g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
		g.record("remove %s", n.Name())
		return nil
	}
	return fmt.Errorf("remove %s: %w", n.Name(), graph.ErrNotFound)
}

func (g *Graph) Nodes() []graph.Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]graph.Node(nil), g.nodes...)
}

func (g *Graph) pins(out, in graph.Pin) (*Pin, *Pin, error) {
	o, ok1 := out.(*Pin)
	i, ok2 := in.(*Pin)
	if out == nil || in == nil || !ok1 || !ok2 || o == nil || i == nil {
		return nil, nil, graph.PointerViolation("pin pair")
	}
	if o.dir != graph.Output || i.dir != graph.Input {
		return nil, nil, fmt.Errorf("%s -> %s: %w", o.label(), i.label(), graph.ErrCannotConnect)
	}
	return o, i, nil
}

// mutable reports whether links on the given pins may change in the current state.
func (g *Graph) mutable(pins ...*Pin) bool {
	if g.state == model.RunStopped {
		return true
	}
	for _, p := range pins {
		if !p.SupportsDynamicReconnect() {
			return false
		}
	}
	return true
}

func (g *Graph) ConnectDirect(_ context.Context, out, in graph.Pin, mt *media.MediaType) error {
	o, i, err := g.pins(out, in)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.faults.Connect != nil {
		if err := g.faults.Connect(out, in); err != nil {
			return err
		}
	}
	if !g.mutable(o, i) {
		return fmt.Errorf("connect %s -> %s: %w", o.label(), i.label(), graph.ErrInvalidState)
	}
	if o.ConnectedTo() != nil || i.ConnectedTo() != nil {
		return fmt.Errorf("connect %s -> %s: %w", o.label(), i.label(), graph.ErrAlreadyConnected)
	}
	negotiated, ok := negotiate(o, i, mt)
	if !ok {
		return fmt.Errorf("connect %s -> %s: %w", o.label(), i.label(), graph.ErrCannotConnect)
	}
	link(o, i, negotiated)
	g.record("connect %s -> %s", o.label(), i.label())
	return nil
}

func negotiate(o, i *Pin, mt *media.MediaType) (media.MediaType, bool) {
	if mt != nil {
		return *mt, o.accepts(*mt) && i.accepts(*mt)
	}
	for _, t := range o.MediaTypes() {
		if i.accepts(t) {
			return t, true
		}
	}
	return media.MediaType{}, false
}

func link(o, i *Pin, mt media.MediaType) {
	o.mu.Lock()
	o.peer, o.current = i, &mt
	o.mu.Unlock()
	i.mu.Lock()
	i.peer, i.current = o, &mt
	i.mu.Unlock()
}

func unlink(p *Pin) {
	p.mu.Lock()
	p.peer, p.current = nil, nil
	p.mu.Unlock()
}

func (g *Graph) breakBoth(p *Pin) {
	p.mu.Lock()
	peer := p.peer
	p.mu.Unlock()
	unlink(p)
	if peer != nil {
		unlink(peer)
	}
}

func (g *Graph) Disconnect(_ context.Context, p graph.Pin) error {
	mp, ok := p.(*Pin)
	if p == nil || !ok || mp == nil {
		return graph.PointerViolation("pin")
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.faults.Disconnect != nil {
		if err := g.faults.Disconnect(p); err != nil {
			return err
		}
	}
	if mp.ConnectedTo() == nil {
		return nil
	}
	if !g.mutable(mp) {
		return fmt.Errorf("disconnect %s: %w", mp.label(), graph.ErrInvalidState)
	}
	unlink(mp)
	g.record("disconnect %s", mp.label())
	return nil
}

func (g *Graph) Reconnect(_ context.Context, out, in graph.Pin) error {
	o, i, err := g.pins(out, in)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.faults.Reconnect != nil {
		if err := g.faults.Reconnect(out, in); err != nil {
			return err
		}
	}
	if !o.SupportsDynamicReconnect() || !i.SupportsDynamicReconnect() {
		if g.state != model.RunStopped {
			return fmt.Errorf("reconnect %s -> %s: %w", o.label(), i.label(), graph.ErrInvalidState)
		}
	}
	if peer := o.ConnectedTo(); peer != nil && peer != graph.Pin(i) {
		return fmt.Errorf("reconnect %s -> %s: %w", o.label(), i.label(), graph.ErrAlreadyConnected)
	}
	negotiated, ok := negotiate(o, i, nil)
	if !ok {
		return fmt.Errorf("reconnect %s -> %s: %w", o.label(), i.label(), graph.ErrCannotConnect)
	}
	i.mu.Lock()
	old := i.peer
	i.mu.Unlock()
	if old != nil && old != o {
		unlink(old)
	}
	link(o, i, negotiated)
	g.record("reconnect %s -> %s", o.label(), i.label())
	return nil
}

func (g *Graph) Run(context.Context) error   { return g.transition(model.RunRunning) }
func (g *Graph) Pause(context.Context) error { return g.transition(model.RunPaused) }
func (g *Graph) Stop(context.Context) error  { return g.transition(model.RunStopped) }

func (g *Graph) transition(to model.RunState) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var err error
	switch to {
	case model.RunRunning:
		err = g.faults.Run
	case model.RunPaused:
		err = g.faults.Pause
	case model.RunStopped:
		err = g.faults.Stop
	}
	if err != nil {
		return err
	}
	g.state = to
	g.record("state %s", to)
	return nil
}

func (g *Graph) State(ctx context.Context, _ time.Duration) (model.RunState, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.faults.State != nil {
		return g.state, g.faults.State
	}
	return g.state, nil
}

// Topology renders every connected output, in node order.
func (g *Graph) Topology() []graph.Edge {
	return graph.Edges(g.Nodes())
}
