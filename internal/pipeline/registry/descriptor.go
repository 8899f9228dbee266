// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package registry

import (
	"github.com/ManuGH/dvbgraph/internal/pipeline/media"
	"github.com/google/uuid"
)

// Descriptor is one candidate component: identity, declared input types,
// merit and where to instantiate it from.
type Descriptor struct {
	ID     uuid.UUID
	Name   string
	Types  []media.Capability
	Merit  Merit
	Source Source
}

// AddType appends a declared capability pair.
func (d *Descriptor) AddType(major, minor uuid.UUID) {
	d.Types = append(d.Types, media.Capability{Major: major, Minor: minor})
}

// CheckTypes reports whether any declared pair matches any required pair.
func (d *Descriptor) CheckTypes(required []media.Capability, exact bool) bool {
	return media.MatchesAny(d.Types, required, exact)
}

// Label is the name, or the identity when unnamed.
func (d *Descriptor) Label() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID.String()
}

// Blocked reports whether d shares its identity with a do-not-use entry of
// overrides. Names are not compared.
func Blocked(d *Descriptor, overrides []*Descriptor) bool {
	if d == nil || d.ID == uuid.Nil {
		return false
	}
	for _, o := range overrides {
		if o != nil && o.ID == d.ID && o.Merit == MeritDoNotUse {
			return true
		}
	}
	return false
}
