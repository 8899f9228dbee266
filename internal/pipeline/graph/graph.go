// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package graph defines the opaque node, pin and runtime contracts the
// pipeline core assembles and rewires. Optional behaviour is discovered by
// type assertion on nodes and pins.
package graph

import (
	"context"
	"time"

	"github.com/ManuGH/dvbgraph/internal/pipeline/media"
	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
)

// Direction of a pin.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// Node is an opaque processing unit.
type Node interface {
	Name() string
	Pins() []Pin
}

// Pin is a typed endpoint on a node. ConnectedTo is nil when unconnected.
type Pin interface {
	Name() string
	Direction() Direction
	Node() Node
	ConnectedTo() Pin
	MediaTypes() []media.MediaType
}

// Runtime is the graph controller that owns nodes, connections and run state.
type Runtime interface {
	AddNode(ctx context.Context, n Node, name string) error
	RemoveNode(ctx context.Context, n Node) error
	Nodes() []Node

	// ConnectDirect links out to in without inserting intermediate nodes.
	// A nil mt lets the pins negotiate.
	ConnectDirect(ctx context.Context, out, in Pin, mt *media.MediaType) error
	// Disconnect breaks the link on p's side only.
	Disconnect(ctx context.Context, p Pin) error
	// Reconnect atomically replaces whatever feeds in with out while running.
	Reconnect(ctx context.Context, out, in Pin) error

	Run(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	// State waits up to timeout for a pending transition to settle.
	State(ctx context.Context, timeout time.Duration) (model.RunState, error)
}

// MapContent selects how a demultiplexer output delivers a mapped PID.
type MapContent int

const (
	ContentElementaryStream MapContent = iota
	ContentMPEG2PSI
	ContentTransportPayload
)

// Demultiplexer creates and retypes PID-keyed outputs.
type Demultiplexer interface {
	Node
	CreateOutputPin(ctx context.Context, name string, mt media.MediaType) (Pin, error)
	SetOutputPinMediaType(ctx context.Context, name string, mt media.MediaType) error
}

// PIDMapper is implemented by demultiplexer output pins.
type PIDMapper interface {
	MapPID(ctx context.Context, pid uint16, content MapContent) error
	UnmapPID(ctx context.Context, pid uint16) error
}

// DynamicPin reports whether a pin supports reconnection while running.
type DynamicPin interface {
	SupportsDynamicReconnect() bool
}

// FlowController blocks and releases data flow on an output pin.
type FlowController interface {
	Block(ctx context.Context) error
	Unblock(ctx context.Context) error
}

// Flusher discards queued data on an input pin and starts a new segment.
type Flusher interface {
	BeginFlush() error
	EndFlush() error
	NewSegment() error
}
