// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build !debugassert

package graph

import "fmt"

// PointerViolation reports an unresolved pin or handle. Release builds fail closed.
func PointerViolation(what string) error {
	return fmt.Errorf("%w: %s", ErrPointer, what)
}
