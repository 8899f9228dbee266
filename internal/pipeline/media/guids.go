// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import "github.com/google/uuid"

// Major types.
var (
	MajorVideo          = uuid.MustParse("73646976-0000-0010-8000-00aa00389b71")
	MajorAudio          = uuid.MustParse("73647561-0000-0010-8000-00aa00389b71")
	MajorStream         = uuid.MustParse("e436eb83-524f-11ce-9f53-0020af0ba770")
	MajorMPEG2Sections  = uuid.MustParse("455f176c-4b06-47ce-9aef-8caef73df7b5")
	MajorSubtitle       = uuid.MustParse("e487eb08-6b26-4be9-9dd3-993434d313fd")
	MajorBDAAntenna     = uuid.MustParse("71985f41-1ca1-11d3-9cc8-00c04f7971e0")
	MajorMPEG2Transport = uuid.MustParse("e06d8023-db46-11cf-b4d1-00805f6cbbea")
)

// Minor types.
var (
	MinorMPEG2Video     = uuid.MustParse("e06d8026-db46-11cf-b4d1-00805f6cbbea")
	MinorH264           = uuid.MustParse("34363248-0000-0010-8000-00aa00389b71")
	MinorHEVC           = uuid.MustParse("43564548-0000-0010-8000-00aa00389b71")
	MinorMPEG2Audio     = uuid.MustParse("e06d802b-db46-11cf-b4d1-00805f6cbbea")
	MinorDolbyAC3       = uuid.MustParse("e06d802c-db46-11cf-b4d1-00805f6cbbea")
	MinorDolbyDDPlus    = uuid.MustParse("a7fb87af-2d02-42fb-a4d4-05cd93843bdd")
	MinorADTSAAC        = uuid.MustParse("00001600-0000-0010-8000-00aa00389b71")
	MinorLATMAAC        = uuid.MustParse("00001602-0000-0010-8000-00aa00389b71")
	MinorMPEG2Data      = uuid.MustParse("c892e55b-252d-42b5-a316-d997e7a5d995")
	MinorDVBSI          = uuid.MustParse("e9dd31a3-221d-4adb-8532-9af309c1a408")
	MinorATSCSI         = uuid.MustParse("b3c7397c-d303-414d-b33c-4ed2c9d29733")
	MinorDVBSubtitles   = uuid.MustParse("34ffcbc3-d5b3-4171-9002-d4c60301697f")
	MinorMPEG2Transport = uuid.MustParse("e06d8023-db46-11cf-b4d1-00805f6cbbea")
	MinorNV12           = uuid.MustParse("3231564e-0000-0010-8000-00aa00389b71")
	MinorPCM            = uuid.MustParse("00000001-0000-0010-8000-00aa00389b71")
	MinorUTF8           = uuid.MustParse("87c0b230-03a8-4fdf-8010-b27a5848200d")
)

// Format types.
var (
	FormatVideoInfo2   = uuid.MustParse("f72a76a0-eb0a-11d0-ace4-0000c0cc16ba")
	FormatWaveFormatEx = uuid.MustParse("05589f81-c356-11ce-bf01-00aa0055595a")
	FormatNone         = uuid.MustParse("0f6417d6-c318-11d0-a43f-00a0c9223196")
	FormatSubtitleInfo = uuid.MustParse("a33d2f7d-96bc-4337-b23b-a8b9fbc295e9")
)

// Device categories used by component enumeration.
var (
	CategoryNetworkProvider = uuid.MustParse("71985f4b-1ca1-11d3-9cc8-00c04f7971e0")
	CategoryNetworkTuner    = uuid.MustParse("71985f48-1ca1-11d3-9cc8-00c04f7971e0")
	CategoryReceiver        = uuid.MustParse("fd0a5af4-b41d-11d2-9c95-00c04f7971e0")
)

var names = map[uuid.UUID]string{
	uuid.Nil:                "*",
	MajorVideo:              "video",
	MajorAudio:              "audio",
	MajorStream:             "stream",
	MajorMPEG2Sections:      "mpeg2-sections",
	MajorSubtitle:           "subtitle",
	MajorBDAAntenna:         "bda-antenna",
	MinorMPEG2Video:         "mpeg2-video",
	MinorH264:               "h264",
	MinorHEVC:               "hevc",
	MinorMPEG2Audio:         "mpeg2-audio",
	MinorDolbyAC3:           "ac3",
	MinorDolbyDDPlus:        "eac3",
	MinorADTSAAC:            "aac-adts",
	MinorLATMAAC:            "aac-latm",
	MinorMPEG2Data:          "mpeg2-data",
	MinorDVBSI:              "dvb-si",
	MinorATSCSI:             "atsc-si",
	MinorDVBSubtitles:       "dvb-subtitles",
	MajorMPEG2Transport:     "mpeg2-transport",
	MinorNV12:               "nv12",
	MinorPCM:                "pcm",
	MinorUTF8:               "utf8",
	CategoryNetworkProvider: "network-provider",
	CategoryNetworkTuner:    "network-tuner",
	CategoryReceiver:        "receiver",
}

// Name returns a short label for well-known identities, or the UUID string.
func Name(id uuid.UUID) string {
	if n, ok := names[id]; ok {
		return n
	}
	return id.String()
}
