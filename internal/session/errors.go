// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import "errors"

var (
	// ErrRebuildRequired means the channel cannot be applied to the current
	// graph. The preference is remembered; close the session, open a new
	// one and set the channel again.
	ErrRebuildRequired = errors.New("graph rebuild required")

	// ErrNotOpen is returned by operations that need an assembled pipeline.
	ErrNotOpen = errors.New("session not open")

	// ErrInvalidStream is returned for a stream index outside StreamCount.
	ErrInvalidStream = errors.New("invalid stream index")
)
