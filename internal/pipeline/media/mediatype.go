// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"bytes"

	"github.com/google/uuid"
)

// MediaType is a negotiated format: capability pair plus an opaque format blob.
type MediaType struct {
	Capability
	FixedSize  bool
	Temporal   bool
	FormatType uuid.UUID
	Format     []byte
}

// Clone returns a deep copy so callers may mutate Format.
func (mt MediaType) Clone() MediaType {
	out := mt
	if mt.Format != nil {
		out.Format = append([]byte(nil), mt.Format...)
	}
	return out
}

// Equal compares every field including the format blob.
func (mt MediaType) Equal(other MediaType) bool {
	return mt.Capability == other.Capability &&
		mt.FixedSize == other.FixedSize &&
		mt.Temporal == other.Temporal &&
		mt.FormatType == other.FormatType &&
		bytes.Equal(mt.Format, other.Format)
}

// Compatible reports whether a pin offering mt can carry want: major and
// minor must match with wildcards honoured.
func (mt MediaType) Compatible(want MediaType) bool {
	return mt.Capability.Matches(want.Capability, false)
}
