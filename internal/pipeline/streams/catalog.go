// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package streams

import (
	"github.com/ManuGH/dvbgraph/internal/pipeline/media"
	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
)

// VideoMediaType returns the output type for a video kind with its header
// refreshed from g. Non-video kinds report false.
func VideoMediaType(kind model.StreamKind, g media.Geometry) (media.MediaType, bool) {
	var (
		h     media.VideoHeader
		minor = media.Capability{Major: media.MajorVideo}
	)
	switch kind {
	case model.KindMPV:
		h, minor.Minor = media.DefaultMPEG2Header(), media.MinorMPEG2Video
	case model.KindH264:
		h, minor.Minor = media.DefaultCodecHeader("H264"), media.MinorH264
	case model.KindHEVC:
		h, minor.Minor = media.DefaultCodecHeader("HEVC"), media.MinorHEVC
	default:
		return media.MediaType{}, false
	}
	h.Apply(g)
	return media.VideoType(minor, h), true
}

// AudioMediaType returns the fixed output type for an audio kind.
func AudioMediaType(kind model.StreamKind) (media.MediaType, bool) {
	switch kind {
	case model.KindMPA:
		return media.MPEG2Audio(), true
	case model.KindAC3:
		return media.AC3Audio(), true
	case model.KindEAC3:
		return media.EAC3Audio(), true
	case model.KindADTS:
		return media.ADTSAudio(), true
	case model.KindLATM:
		return media.LATMAudio(), true
	}
	return media.MediaType{}, false
}

// DefaultCatalog declares every stream kind. Video headers start from g;
// the table-information and guide outputs carry DVB or ATSC section
// subtypes depending on nt. PSI and TIF reuse outputs the demultiplexer
// already exposes.
func DefaultCatalog(nt model.NetworkType, g media.Geometry) *Table {
	t := NewTable()
	for _, k := range []model.StreamKind{model.KindMPV, model.KindH264, model.KindHEVC} {
		mt, _ := VideoMediaType(k, g)
		t.Declare(k, mt, false)
	}
	for _, k := range []model.StreamKind{model.KindMPA, model.KindAC3, model.KindEAC3, model.KindADTS, model.KindLATM} {
		mt, _ := AudioMediaType(k)
		t.Declare(k, mt, false)
	}

	si := media.MinorDVBSI
	if nt == model.NetworkATSC {
		si = media.MinorATSCSI
	}
	t.Declare(model.KindPSI, media.Sections(media.Capability{Major: media.MajorMPEG2Sections, Minor: media.MinorMPEG2Data}), true)
	t.Declare(model.KindTIF, media.Sections(media.Capability{Major: media.MajorMPEG2Sections, Minor: si}), true)
	t.Declare(model.KindEPG, media.Sections(media.Capability{Major: media.MajorMPEG2Sections, Minor: si}), false)
	t.Declare(model.KindSUB, media.DVBSubtitles(), false)
	return t
}
