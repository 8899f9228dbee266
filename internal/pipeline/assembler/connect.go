// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package assembler

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuGH/dvbgraph/internal/log"
	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/registry"
)

// maxRenderDepth bounds how many nodes a render may chain after an output.
const maxRenderDepth = 4

// connectNodes links the first free output of up that any free input of
// down accepts.
func (b *build) connectNodes(ctx context.Context, up, down graph.Node) error {
	var errs []error
	for _, out := range graph.FreePins(up, graph.Output) {
		for _, in := range graph.FreePins(down, graph.Input) {
			err := b.rt.ConnectDirect(ctx, out, in, nil)
			if err == nil {
				return nil
			}
			errs = append(errs, err)
		}
	}
	return fmt.Errorf("%w: %s -> %s: %w", graph.ErrConnectionFailure, up.Name(), down.Name(), errors.Join(errs...))
}

// connectOnward connects out to the best registered candidate accepting
// its types. With render set it keeps chaining from the new node's free
// outputs until a node without outputs is reached.
func (b *build) connectOnward(ctx context.Context, out graph.Pin, render bool, depth int) error {
	if depth > maxRenderDepth {
		return fmt.Errorf("%w: render chain from %s too deep", graph.ErrConnectionFailure, out.Name())
	}
	caps := graph.Capabilities(out)
	candidates := b.a.transforms.Resolve(caps, true)
	if len(candidates) == 0 {
		candidates = b.a.transforms.Resolve(caps, false)
	}
	if len(candidates) == 0 {
		return fmt.Errorf("%w: %s offers %v", graph.ErrResolutionFailure, out.Name(), caps)
	}

	logger := log.WithComponentFromContext(ctx, "assembler")
	var errs []error
	for _, d := range candidates {
		n, err := b.add(ctx, d)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := b.connectNodesFrom(ctx, out, n); err != nil {
			errs = append(errs, err)
			b.remove(ctx, n)
			continue
		}
		logger.Debug().Str(log.FieldPin, out.Name()).Str(log.FieldCandidate, d.Label()).
			Str(log.FieldMerit, d.Merit.String()).Msg("candidate connected")
		if !render {
			return nil
		}
		for _, next := range graph.FreePins(n, graph.Output) {
			if err := b.connectOnward(ctx, next, true, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %s: %w", graph.ErrConnectionFailure, out.Name(), errors.Join(errs...))
}

func (b *build) connectNodesFrom(ctx context.Context, out graph.Pin, down graph.Node) error {
	var errs []error
	for _, in := range graph.FreePins(down, graph.Input) {
		err := b.rt.ConnectDirect(ctx, out, in, nil)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return fmt.Errorf("%s -> %s: %w", out.Name(), down.Name(), errors.Join(errs...))
}

// add instantiates d and adds it to the runtime, remembering it for rollback.
func (b *build) add(ctx context.Context, d *registry.Descriptor) (graph.Node, error) {
	n, err := registry.Instantiate(ctx, d, b.a.env)
	if err != nil {
		return nil, err
	}
	if err := b.addNode(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (b *build) addNode(ctx context.Context, n graph.Node) error {
	if err := b.rt.AddNode(ctx, n, n.Name()); err != nil {
		return err
	}
	b.added = append(b.added, n)
	return nil
}

func (b *build) remove(ctx context.Context, n graph.Node) {
	if err := b.rt.RemoveNode(ctx, n); err != nil {
		logger := log.WithComponentFromContext(ctx, "assembler")
		logger.Warn().Err(err).Str(log.FieldNode, n.Name()).Msg("remove node failed")
	}
	for i, added := range b.added {
		if added == n {
			b.added = append(b.added[:i], b.added[i+1:]...)
			break
		}
	}
}

// rollback removes every node this build added, newest first.
func (b *build) rollback(ctx context.Context) {
	for i := len(b.added) - 1; i >= 0; i-- {
		_ = b.rt.RemoveNode(ctx, b.added[i])
	}
	b.added = nil
}
