// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package memgraph

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/media"
	"github.com/ManuGH/dvbgraph/internal/pipeline/registry"
	"github.com/google/uuid"
)

// TunerRawSubtype is the vendor stream a tuner emits when it needs a
// separate receiver to produce transport.
var TunerRawSubtype = uuid.MustParse("5a9ae0e4-6d23-4c6f-8a5b-1e40b7b0c0de")

var (
	antennaType   = media.MediaType{Capability: media.Capability{Major: media.MajorBDAAntenna}}
	rawType       = media.MediaType{Capability: media.Capability{Major: media.MajorStream, Minor: TunerRawSubtype}}
	transportType = media.MediaType{Capability: media.Capability{Major: media.MajorStream, Minor: media.MinorMPEG2Transport}}
)

// NewNetworkProvider returns an intake node feeding antenna input.
func NewNetworkProvider(name string) *Node {
	n := NewNode(name)
	n.AddPin("antenna", graph.Output, antennaType)
	return n
}

// NewReceiver returns a receiver turning raw tuner output into transport.
func NewReceiver(name string) *Node {
	return NewTransform(name, []media.MediaType{rawType}, []media.MediaType{transportType})
}

type device struct {
	dev   registry.Device
	build func() graph.Node
}

// Devices is an enumerable set of registered devices.
type Devices struct {
	mu    sync.Mutex
	byCat map[uuid.UUID][]device
}

var (
	_ registry.Enumerator   = (*Devices)(nil)
	_ registry.DeviceBinder = (*Devices)(nil)
)

func NewDevices() *Devices {
	return &Devices{byCat: make(map[uuid.UUID][]device)}
}

// Register adds a device under category; build runs on every Bind.
func (d *Devices) Register(category uuid.UUID, dev registry.Device, build func() graph.Node) {
	if dev.ID == uuid.Nil {
		dev.ID = uuid.New()
	}
	d.mu.Lock()
	d.byCat[category] = append(d.byCat[category], device{dev: dev, build: build})
	d.mu.Unlock()
}

func (d *Devices) Enumerate(ctx context.Context, category uuid.UUID) ([]registry.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]registry.Device, 0, len(d.byCat[category]))
	for _, e := range d.byCat[category] {
		out = append(out, e.dev)
	}
	return out, nil
}

func (d *Devices) Bind(ctx context.Context, category uuid.UUID, displayName string) (graph.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.byCat[category] {
		if e.dev.DisplayName == displayName {
			return e.build(), nil
		}
	}
	return nil, fmt.Errorf("device %q: %w", displayName, graph.ErrNotFound)
}

// Renderers builds sink nodes keyed by component identity.
type Renderers map[uuid.UUID]func(preview bool) graph.Node

var _ registry.RendererFactory = Renderers(nil)

func (r Renderers) NewRenderer(_ context.Context, id uuid.UUID, preview bool) (graph.Node, error) {
	build, ok := r[id]
	if !ok {
		return nil, fmt.Errorf("renderer %s: %w", id, graph.ErrNotFound)
	}
	return build(preview), nil
}

// Modules serves external module paths from in-memory constructors.
// Paths are matched case-insensitively.
type Modules map[string]map[uuid.UUID]func() graph.Node

var _ registry.ModuleLoader = Modules(nil)

func (m Modules) Open(_ context.Context, path string) (registry.Module, error) {
	for p, ctors := range m {
		if strings.EqualFold(p, path) {
			return &module{path: path, ctors: ctors}, nil
		}
	}
	return nil, fmt.Errorf("module %q: %w", path, graph.ErrNotFound)
}

type module struct {
	path  string
	ctors map[uuid.UUID]func() graph.Node
}

func (m *module) Create(_ context.Context, id uuid.UUID) (graph.Node, error) {
	build, ok := m.ctors[id]
	if !ok {
		return nil, fmt.Errorf("%s has no component %s: %w", m.path, id, graph.ErrNotFound)
	}
	return build(), nil
}

func (m *module) CanUnload() bool { return true }
func (m *module) Close() error    { return nil }
