// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package graph

import (
	"context"
	"io"
)

// ControlInterface names a capability exposed by a tuner topology sub-node.
type ControlInterface string

const (
	IfaceFrequency      ControlInterface = "frequency_filter"
	IfaceDemodulator    ControlInterface = "digital_demodulator"
	IfaceAutoDemodulate ControlInterface = "auto_demodulate"
)

// Topology is implemented by tuner nodes that expose control sub-nodes.
// ControlNode returns ErrNotFound when no sub-node exposes iface.
type Topology interface {
	ControlNode(ctx context.Context, iface ControlInterface) (any, error)
}

// ChangeState is the tuner's batched-change status.
type ChangeState int

const (
	ChangesComplete ChangeState = iota
	ChangesPending
)

// DeviceControl is the batched-change transaction on the tuner node itself.
type DeviceControl interface {
	StartChanges(ctx context.Context) error
	CheckChanges(ctx context.Context) error
	CommitChanges(ctx context.Context) error
	ChangeState(ctx context.Context) (ChangeState, error)
}

// FrequencyControl is the RF sub-node.
type FrequencyControl interface {
	SetFrequencyMultiplier(ctx context.Context, m uint32) error
	SetBandwidth(ctx context.Context, mhz uint32) error
	SetFrequency(ctx context.Context, f uint32) error
}

// DemodulatorControl is the demodulator sub-node.
type DemodulatorControl interface {
	SetSymbolRate(ctx context.Context, rate uint32) error
}

// AutoDemodulator switches the demodulator into automatic mode.
type AutoDemodulator interface {
	EnableAutoDemodulate(ctx context.Context) error
}

// SignalStatistics is implemented by sub-nodes that report signal telemetry.
type SignalStatistics interface {
	SignalPresent(ctx context.Context) (bool, error)
	SignalLocked(ctx context.Context) (bool, error)
	SignalStrength(ctx context.Context) (int32, error)
	SignalQuality(ctx context.Context) (int32, error)
}

// SectionSource is implemented by the node behind the PSI output; it yields
// the transport packets carrying program tables for the scan engine.
type SectionSource interface {
	OpenSections(ctx context.Context) (io.ReadCloser, error)
}
