// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package registry

import (
	"context"

	"github.com/ManuGH/dvbgraph/internal/log"
	"github.com/google/uuid"
)

// Device is one enumerated system component.
type Device struct {
	DisplayName  string
	FriendlyName string
	ID           uuid.UUID
	FilterData   []byte
}

// Enumerator lists the devices registered under a category.
type Enumerator interface {
	Enumerate(ctx context.Context, category uuid.UUID) ([]Device, error)
}

// FromDevice builds a descriptor for dev. It declares the category as its
// major type and, when the registration blob decodes, the blob's input
// types and merit.
func FromDevice(category uuid.UUID, dev Device) *Descriptor {
	d := &Descriptor{
		ID:     dev.ID,
		Name:   dev.FriendlyName,
		Merit:  MeritDoUse,
		Source: SourceRegistry{Category: category, DisplayName: dev.DisplayName},
	}
	d.AddType(category, uuid.Nil)

	if len(dev.FilterData) == 0 {
		return d
	}
	fd, err := DecodeFilterData(dev.FilterData)
	if err != nil {
		logger := log.WithComponent("registry")
		logger.Debug().
			Err(err).
			Str(log.FieldCandidate, d.Label()).
			Msg("filter data not decodable, keeping defaults")
		return d
	}
	d.Merit = d.Merit.WithMid(fd.Merit)
	d.Types = append(d.Types, fd.InputTypes...)
	return d
}
