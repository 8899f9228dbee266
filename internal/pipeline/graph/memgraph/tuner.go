// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package memgraph

import (
	"context"
	"fmt"
	"sync"

	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/media"
)

// Signal is the telemetry a control sub-node reports.
type Signal struct {
	Present  bool
	Locked   bool
	Strength int32
	Quality  int32
}

// Control is a tuner topology sub-node. It records every call and can be
// told to fail individual operations by name.
type Control struct {
	name string

	mu     sync.Mutex
	signal Signal
	fail   map[string]error
	calls  []string
	values map[string]uint32
}

func newControl(name string) *Control {
	return &Control{name: name, fail: make(map[string]error), values: make(map[string]uint32)}
}

// Fail makes op fail with err; a nil err clears the fault.
func (c *Control) Fail(op string, err error) *Control {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.fail, op)
	} else {
		c.fail[op] = err
	}
	return c
}

// SetSignal replaces the reported telemetry.
func (c *Control) SetSignal(s Signal) *Control {
	c.mu.Lock()
	c.signal = s
	c.mu.Unlock()
	return c
}

// Calls lists operations in call order, failed ones included.
func (c *Control) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// Value returns the last value set through op.
func (c *Control) Value(op string) (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[op]
	return v, ok
}

func (c *Control) do(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, op)
	if err := c.fail[op]; err != nil {
		return fmt.Errorf("%s %s: %w", c.name, op, err)
	}
	return nil
}

func (c *Control) set(op string, v uint32) error {
	if err := c.do(op); err != nil {
		return err
	}
	c.mu.Lock()
	c.values[op] = v
	c.mu.Unlock()
	return nil
}

func (c *Control) SetFrequencyMultiplier(_ context.Context, m uint32) error {
	return c.set("multiplier", m)
}

func (c *Control) SetBandwidth(_ context.Context, mhz uint32) error {
	return c.set("bandwidth", mhz)
}

func (c *Control) SetFrequency(_ context.Context, f uint32) error {
	return c.set("frequency", f)
}

func (c *Control) SetSymbolRate(_ context.Context, rate uint32) error {
	return c.set("symbol_rate", rate)
}

func (c *Control) EnableAutoDemodulate(context.Context) error {
	return c.do("auto_demodulate")
}

func (c *Control) SignalPresent(context.Context) (bool, error) {
	if err := c.do("present"); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signal.Present, nil
}

func (c *Control) SignalLocked(context.Context) (bool, error) {
	if err := c.do("locked"); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signal.Locked, nil
}

func (c *Control) SignalStrength(context.Context) (int32, error) {
	if err := c.do("strength"); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signal.Strength, nil
}

func (c *Control) SignalQuality(context.Context) (int32, error) {
	if err := c.do("quality"); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signal.Quality, nil
}

// Tuner is a tuner node with a frequency sub-node and an optional
// demodulator sub-node. Its change transaction reports pending for a
// configurable number of polls after each commit.
type Tuner struct {
	*Node
	Frequency   *Control
	Demodulator *Control

	mu           sync.Mutex
	autoDemod    bool
	pendingPolls int
	pendingLeft  int
	polls        int
	txErr        map[string]error
	txCalls      []string
}

var (
	_ graph.Topology      = (*Tuner)(nil)
	_ graph.DeviceControl = (*Tuner)(nil)
)

// TunerOptions shapes a Tuner's topology and outputs.
type TunerOptions struct {
	// NoFrequency drops the frequency sub-node.
	NoFrequency bool
	// NoDemodulator drops the demodulator sub-node.
	NoDemodulator bool
	// AutoDemodulate exposes auto-demodulation on the demodulator.
	AutoDemodulate bool
	// DirectTransport exposes a transport output the demultiplexer can
	// accept; without it a receiver is needed in between.
	DirectTransport bool
}

// NewTuner returns a tuner taking antenna input.
func NewTuner(name string, opts TunerOptions) *Tuner {
	t := &Tuner{Node: NewNode(name), autoDemod: opts.AutoDemodulate, txErr: make(map[string]error)}
	t.Node.owner = t
	if !opts.NoFrequency {
		t.Frequency = newControl(name + "/frequency")
	}
	if !opts.NoDemodulator {
		t.Demodulator = newControl(name + "/demodulator")
	}
	t.AddPin("antenna", graph.Input, media.MediaType{Capability: media.Capability{Major: media.MajorBDAAntenna}})
	out := media.Capability{Major: media.MajorStream, Minor: TunerRawSubtype}
	if opts.DirectTransport {
		out.Minor = media.MinorMPEG2Transport
	}
	t.AddPin("out", graph.Output, media.MediaType{Capability: out})
	return t
}

// ControlNode returns the sub-node exposing iface.
func (t *Tuner) ControlNode(_ context.Context, iface graph.ControlInterface) (any, error) {
	switch iface {
	case graph.IfaceFrequency:
		if t.Frequency != nil {
			return t.Frequency, nil
		}
	case graph.IfaceDemodulator:
		if t.Demodulator != nil {
			return t.Demodulator, nil
		}
	case graph.IfaceAutoDemodulate:
		if t.Demodulator != nil && t.autoDemod {
			return t.Demodulator, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", iface, graph.ErrNotFound)
}

// SetPendingPolls makes ChangeState report pending n times after each
// commit. A negative n never settles.
func (t *Tuner) SetPendingPolls(n int) {
	t.mu.Lock()
	t.pendingPolls = n
	t.mu.Unlock()
}

// FailTransaction makes a transaction step ("start", "check", "commit", "state") fail.
func (t *Tuner) FailTransaction(step string, err error) {
	t.mu.Lock()
	t.txErr[step] = err
	t.mu.Unlock()
}

// Polls counts ChangeState calls.
func (t *Tuner) Polls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.polls
}

// Transaction lists transaction steps in call order.
func (t *Tuner) Transaction() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.txCalls...)
}

func (t *Tuner) step(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.txCalls = append(t.txCalls, name)
	if err := t.txErr[name]; err != nil {
		return fmt.Errorf("%s %s: %w", t.name, name, err)
	}
	return nil
}

func (t *Tuner) StartChanges(context.Context) error { return t.step("start") }
func (t *Tuner) CheckChanges(context.Context) error { return t.step("check") }

func (t *Tuner) CommitChanges(context.Context) error {
	if err := t.step("commit"); err != nil {
		return err
	}
	t.mu.Lock()
	t.pendingLeft = t.pendingPolls
	t.mu.Unlock()
	return nil
}

func (t *Tuner) ChangeState(context.Context) (graph.ChangeState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.polls++
	if err := t.txErr["state"]; err != nil {
		return graph.ChangesPending, err
	}
	if t.pendingLeft < 0 {
		return graph.ChangesPending, nil
	}
	if t.pendingLeft > 0 {
		t.pendingLeft--
		return graph.ChangesPending, nil
	}
	return graph.ChangesComplete, nil
}
