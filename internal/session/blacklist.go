// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"github.com/google/uuid"

	"github.com/ManuGH/dvbgraph/internal/pipeline/registry"
)

// Components known to misbehave behind a live demultiplexer.
var (
	AudioSwitcherID      = uuid.MustParse("18c16b08-6497-420e-ad14-22d21c2ceab7")
	InternalVideoDecoder = uuid.MustParse("008bac12-fbaf-497b-9670-bc6f6fbae2c4")
	DXVAVideoDecoder     = uuid.MustParse("0b0eff97-c750-462c-9488-b10e7d87f1a6")
	DTVDVDAudioDecoder   = uuid.MustParse("e1f1a0b8-beee-490d-ba7c-066c40b5e2b9")
	ACMWrapperID         = uuid.MustParse("6a08cf80-0e18-11cf-a24d-0020afd79767")
	ReClockID            = uuid.MustParse("9dc15360-914c-46b8-b9df-bfe67fd36c6a")
)

// Blacklist returns fresh "do not use" overrides. Transforms and devices
// with one of these identities are never offered to the assembler.
func Blacklist() []*registry.Descriptor {
	entries := []struct {
		id   uuid.UUID
		name string
	}{
		{AudioSwitcherID, "Audio Switcher"},
		{InternalVideoDecoder, "Internal Video Decoder"},
		{DXVAVideoDecoder, "DXVA Video Decoder"},
		{DTVDVDAudioDecoder, "DTV-DVD Audio Decoder"},
		{ACMWrapperID, "ACM Wrapper"},
		{ReClockID, "ReClock Audio Renderer"},
	}
	out := make([]*registry.Descriptor, 0, len(entries))
	for _, e := range entries {
		out = append(out, &registry.Descriptor{
			ID:     e.id,
			Name:   e.name,
			Merit:  registry.MeritDoNotUse,
			Source: registry.SourceFactory{},
		})
	}
	return out
}
