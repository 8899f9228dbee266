// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package media holds content-type identities and format blobs exchanged
// between pipeline nodes.
package media

import (
	"fmt"

	"github.com/google/uuid"
)

// Capability is a (major, minor) content-type pair. uuid.Nil on either side is a wildcard.
type Capability struct {
	Major uuid.UUID
	Minor uuid.UUID
}

// Any matches every capability under non-exact matching.
var Any = Capability{}

// Matches reports whether c and other describe compatible content.
// Exact matching requires both halves to be equal and concrete.
func (c Capability) Matches(other Capability, exact bool) bool {
	if exact {
		return c.Major == other.Major && c.Major != uuid.Nil &&
			c.Minor == other.Minor && c.Minor != uuid.Nil
	}
	return wildEqual(c.Major, other.Major) && wildEqual(c.Minor, other.Minor)
}

func wildEqual(a, b uuid.UUID) bool {
	return a == uuid.Nil || b == uuid.Nil || a == b
}

// MatchesAny reports whether any declared capability matches any required one.
func MatchesAny(declared, required []Capability, exact bool) bool {
	for _, d := range declared {
		for _, r := range required {
			if d.Matches(r, exact) {
				return true
			}
		}
	}
	return false
}

func (c Capability) String() string {
	return fmt.Sprintf("%s/%s", Name(c.Major), Name(c.Minor))
}
