// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package graph

import (
	"github.com/ManuGH/dvbgraph/internal/pipeline/media"
)

// FirstPin returns the first pin of n with direction dir, or nil.
func FirstPin(n Node, dir Direction) Pin {
	if n == nil {
		return nil
	}
	for _, p := range n.Pins() {
		if p.Direction() == dir {
			return p
		}
	}
	return nil
}

// FreePins returns the unconnected pins of n with direction dir.
func FreePins(n Node, dir Direction) []Pin {
	if n == nil {
		return nil
	}
	var out []Pin
	for _, p := range n.Pins() {
		if p.Direction() == dir && p.ConnectedTo() == nil {
			out = append(out, p)
		}
	}
	return out
}

// FindPin returns the first pin of n with direction dir offering a type
// compatible with mt, or nil.
func FindPin(n Node, dir Direction, mt media.MediaType) Pin {
	if n == nil {
		return nil
	}
	for _, p := range n.Pins() {
		if p.Direction() != dir {
			continue
		}
		for _, offered := range p.MediaTypes() {
			if offered.Compatible(mt) {
				return p
			}
		}
	}
	return nil
}

// PeerNode returns the node on the other side of p, or nil.
func PeerNode(p Pin) Node {
	if p == nil {
		return nil
	}
	peer := p.ConnectedTo()
	if peer == nil {
		return nil
	}
	return peer.Node()
}

// Capabilities flattens the capability pairs offered by p.
func Capabilities(p Pin) []media.Capability {
	mts := p.MediaTypes()
	out := make([]media.Capability, 0, len(mts))
	for _, mt := range mts {
		out = append(out, mt.Capability)
	}
	return out
}

// Edge is one output-to-input link.
type Edge struct {
	From, FromPin string
	To, ToPin     string
}

// Edges lists every connected output pin of nodes in order.
func Edges(nodes []Node) []Edge {
	var out []Edge
	for _, n := range nodes {
		for _, p := range n.Pins() {
			if p.Direction() != Output {
				continue
			}
			peer := p.ConnectedTo()
			if peer == nil {
				continue
			}
			out = append(out, Edge{
				From: n.Name(), FromPin: p.Name(),
				To: peer.Node().Name(), ToPin: peer.Name(),
			})
		}
	}
	return out
}
