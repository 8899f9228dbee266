// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package registry

import "fmt"

// Merit ranks interchangeable candidates. The 32-bit registration merit
// lives in bits 16..47; bits above are reserved for overrides that must
// outrank anything registered.
type Merit uint64

const (
	MeritDoNotUse    Merit = 0x200000 << 16
	MeritDoUse       Merit = (0x200000 + 1) << 16
	MeritUnlikely    Merit = 0x400000 << 16
	MeritNormal      Merit = 0x600000 << 16
	MeritPreferred   Merit = 0x800000 << 16
	MeritAboveSystem Merit = 1 << 48
)

const midMask Merit = 0xffffffff << 16

// WithMid replaces the registration merit bits, keeping the high and low words.
func (m Merit) WithMid(mid uint32) Merit {
	return (m &^ midMask) | Merit(mid)<<16
}

// Mid returns the 32-bit registration merit.
func (m Merit) Mid() uint32 {
	return uint32((m & midMask) >> 16)
}

// Usable reports whether m clears the "use" threshold.
func (m Merit) Usable() bool {
	return m >= MeritDoUse
}

func (m Merit) String() string {
	switch m {
	case MeritDoNotUse:
		return "do-not-use"
	case MeritDoUse:
		return "do-use"
	}
	return fmt.Sprintf("%016x", uint64(m))
}
