// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package graph

import (
	"context"
	"errors"
	"fmt"
)

// Pipeline error taxonomy.
var (
	ErrResolutionFailure          = errors.New("no candidate matches required capability")
	ErrConnectionFailure          = errors.New("nodes could not be connected")
	ErrOutputCreationFailed       = errors.New("demultiplexer output creation failed")
	ErrUnknownStream              = errors.New("unknown stream")
	ErrNoTelemetrySource          = errors.New("no telemetry source")
	ErrNoStatsAvailable           = errors.New("no statistics available")
	ErrTimeout                    = errors.New("timeout")
	ErrUnexpectedReconnectFailure = errors.New("unexpected reconnect failure")
	ErrInvalidState               = errors.New("invalid state")
)

// Runtime status classes returned by nodes, pins and the graph runtime.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyConnected = errors.New("already connected")
	ErrCannotConnect    = errors.New("cannot connect")
	ErrUnexpected       = errors.New("unexpected")
	ErrPointer          = errors.New("unresolved pin or handle")
)

// OpError records the operation and stage that failed.
type OpError struct {
	Op    string
	Stage string
	Err   error
}

func (e *OpError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s [%s]: %v", e.Op, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Wrap returns nil for a nil err.
func Wrap(op, stage string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Stage: stage, Err: err}
}

var classes = []struct {
	err   error
	label string
}{
	{ErrUnexpectedReconnectFailure, "unexpected_reconnect_failure"},
	{ErrResolutionFailure, "resolution_failure"},
	{ErrConnectionFailure, "connection_failure"},
	{ErrOutputCreationFailed, "output_creation_failed"},
	{ErrUnknownStream, "unknown_stream"},
	{ErrNoTelemetrySource, "no_telemetry_source"},
	{ErrNoStatsAvailable, "no_stats_available"},
	{ErrTimeout, "timeout"},
	{ErrInvalidState, "invalid_state"},
	{ErrNotFound, "not_found"},
	{ErrAlreadyConnected, "already_connected"},
	{ErrCannotConnect, "cannot_connect"},
	{ErrPointer, "pointer"},
	{ErrUnexpected, "unexpected"},
	{context.DeadlineExceeded, "timeout"},
	{context.Canceled, "canceled"},
}

// Class maps err to its taxonomy label for logs and metrics. The first
// matching class wins, so wrapped terminal errors report the outer class.
func Class(err error) string {
	if err == nil {
		return "ok"
	}
	for _, c := range classes {
		if errors.Is(err, c.err) {
			return c.label
		}
	}
	return "unexpected"
}
