// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
	"github.com/google/uuid"
)

// Source says where a descriptor's component comes from. The set of
// variants is closed; Instantiate dispatches on it.
type Source interface {
	source()
}

// SourceRegistry is a system-registered component bound by device display name.
type SourceRegistry struct {
	Category    uuid.UUID
	DisplayName string
}

// SourceFile is a component loaded from an external module on disk.
type SourceFile struct {
	Path string
}

// SourceRenderer is a sink created by the renderer factory.
type SourceRenderer struct {
	Preview bool
}

// SourceFactory is an in-process component.
type SourceFactory struct {
	New func(ctx context.Context) (graph.Node, error)
}

func (SourceRegistry) source() {}
func (SourceFile) source()     {}
func (SourceRenderer) source() {}
func (SourceFactory) source()  {}

// DeviceBinder binds registered devices by display name.
type DeviceBinder interface {
	Bind(ctx context.Context, category uuid.UUID, displayName string) (graph.Node, error)
}

// RendererFactory creates sink nodes.
type RendererFactory interface {
	NewRenderer(ctx context.Context, id uuid.UUID, preview bool) (graph.Node, error)
}

// Environment carries what each source variant needs to produce a node.
type Environment struct {
	Devices   DeviceBinder
	Modules   *ModuleCache
	Renderers RendererFactory
}

// ErrNoEnvironment is returned when the environment lacks what a source needs.
var ErrNoEnvironment = errors.New("instantiation environment incomplete")

// Instantiate creates the node described by d.
func Instantiate(ctx context.Context, d *Descriptor, env Environment) (graph.Node, error) {
	if d == nil || d.Source == nil {
		return nil, graph.PointerViolation("descriptor source")
	}
	var (
		n   graph.Node
		err error
	)
	switch s := d.Source.(type) {
	case SourceRegistry:
		if env.Devices == nil {
			return nil, fmt.Errorf("%w: device binder", ErrNoEnvironment)
		}
		n, err = env.Devices.Bind(ctx, s.Category, s.DisplayName)
	case SourceFile:
		if env.Modules == nil {
			return nil, fmt.Errorf("%w: module cache", ErrNoEnvironment)
		}
		n, err = env.Modules.Create(ctx, s.Path, d.ID)
	case SourceRenderer:
		if env.Renderers == nil {
			return nil, fmt.Errorf("%w: renderer factory", ErrNoEnvironment)
		}
		n, err = env.Renderers.NewRenderer(ctx, d.ID, s.Preview)
	case SourceFactory:
		if s.New == nil {
			return nil, graph.PointerViolation("factory constructor")
		}
		n, err = s.New(ctx)
	default:
		return nil, fmt.Errorf("%w: unsupported source %T", graph.ErrUnexpected, s)
	}
	if err != nil {
		return nil, fmt.Errorf("instantiate %s: %w", d.Label(), err)
	}
	if n == nil {
		return nil, graph.PointerViolation("instantiated node for " + d.Label())
	}
	return n, nil
}
