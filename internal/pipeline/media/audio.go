// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

// WAVEFORMATEX blobs announced on audio demultiplexer outputs.
var (
	mpeg2AudioFormat = []byte{
		0x50, 0x00, // wFormatTag
		0x02, 0x00, // nChannels
		0x80, 0xbb, 0x00, 0x00, // nSamplesPerSec
		0x00, 0x7d, 0x00, 0x00, // nAvgBytesPerSec
		0x01, 0x00, // nBlockAlign
		0x00, 0x00, // wBitsPerSample
		0x16, 0x00, // cbSize
		0x02, 0x00, // wValidBitsPerSample
		0x00, 0xe8, // wSamplesPerBlock
		0x03, 0x00, // wReserved
		0x01, 0x00, 0x01, 0x00, // dwChannelMask
		0x01, 0x00, 0x16, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}

	ac3AudioFormat = []byte{
		0x00, 0x20,
		0x06, 0x00,
		0x80, 0xbb, 0x00, 0x00,
		0xc0, 0x5d, 0x00, 0x00,
		0x00, 0x03,
		0x00, 0x00,
		0x00, 0x00,
	}

	aacAudioFormat = []byte{
		0xff, 0x00,
		0x02, 0x00,
		0x80, 0xbb, 0x00, 0x00,
		0xce, 0x3e, 0x00, 0x00,
		0xae, 0x02,
		0x00, 0x00,
		0x02, 0x00,
		0x11, 0x90,
	}
)

func audioType(format []byte, c Capability) MediaType {
	return MediaType{
		Capability: c,
		FixedSize:  true,
		FormatType: FormatWaveFormatEx,
		Format:     append([]byte(nil), format...),
	}
}

func MPEG2Audio() MediaType {
	return audioType(mpeg2AudioFormat, Capability{MajorAudio, MinorMPEG2Audio})
}

func AC3Audio() MediaType {
	return audioType(ac3AudioFormat, Capability{MajorAudio, MinorDolbyAC3})
}

// EAC3Audio shares the AC3 wave format; only the subtype differs.
func EAC3Audio() MediaType {
	return audioType(ac3AudioFormat, Capability{MajorAudio, MinorDolbyDDPlus})
}

func ADTSAudio() MediaType {
	return audioType(aacAudioFormat, Capability{MajorAudio, MinorADTSAAC})
}

func LATMAudio() MediaType {
	return audioType(aacAudioFormat, Capability{MajorAudio, MinorLATMAAC})
}

// Sections returns an MPEG-2 sections type with no format block.
func Sections(minor Capability) MediaType {
	return MediaType{Capability: minor, FixedSize: true, FormatType: FormatNone}
}

// DVBSubtitles is the subtitle output type; the format block is an empty SUBTITLEINFO.
func DVBSubtitles() MediaType {
	return MediaType{
		Capability: Capability{MajorSubtitle, MinorDVBSubtitles},
		FormatType: FormatSubtitleInfo,
		Format:     make([]byte, subtitleInfoSize),
	}
}

// offset(4) + language(4) + track name(256 UTF-16 chars)
const subtitleInfoSize = 4 + 4 + 256*2
