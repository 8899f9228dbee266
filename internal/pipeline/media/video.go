// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"bytes"
	"encoding/binary"
)

// Interlace flags carried in VideoHeader.InterlaceFlags.
const (
	InterlaceIsInterlaced      uint32 = 0x00000001
	InterlaceDisplayBobOrWeave uint32 = 0x00000080
)

// Rect is a source/target rectangle in pixels.
type Rect struct {
	Left, Top, Right, Bottom int32
}

// VideoHeader is the VIDEOINFOHEADER2 block announced on video outputs.
type VideoHeader struct {
	Source          Rect
	Target          Rect
	BitRate         uint32
	BitErrorRate    uint32
	AvgTimePerFrame int64 // 100ns units
	InterlaceFlags  uint32
	CopyProtect     uint32
	AspectX         uint32
	AspectY         uint32
	ControlFlags    uint32
	Reserved2       uint32
	Width           int32
	Height          int32
	Planes          uint16
	BitCount        uint16
	Compression     uint32
}

const bitmapInfoHeaderSize = 40

// Geometry is the per-channel picture description used to refresh a header.
type Geometry struct {
	FrameRate FrameRate
	Width     uint32
	Height    uint32
	AspectX   uint32
	AspectY   uint32
}

// FrameRate is a frame rate in millihertz (25 fps = 25000).
type FrameRate uint32

const (
	FPS23976 FrameRate = 23976
	FPS24    FrameRate = 24000
	FPS25    FrameRate = 25000
	FPS2997  FrameRate = 29970
	FPS30    FrameRate = 30000
	FPS50    FrameRate = 50000
	FPS5994  FrameRate = 59940
	FPS60    FrameRate = 60000
)

// AvgTimePerFrame converts the rate to 100ns units; zero rate yields zero.
func (r FrameRate) AvgTimePerFrame() int64 {
	if r == 0 {
		return 0
	}
	return 10_000_000_000 / int64(r)
}

// FourCC packs four ASCII bytes little-endian.
func FourCC(s string) uint32 {
	var b [4]byte
	copy(b[:], s)
	return binary.LittleEndian.Uint32(b[:])
}

// DefaultMPEG2Header is the header announced for MPEG-2 video before any channel is known.
func DefaultMPEG2Header() VideoHeader {
	return VideoHeader{
		Source:          Rect{Right: 720, Bottom: 576},
		AvgTimePerFrame: 400000,
		Width:           720,
		Height:          576,
	}
}

// DefaultCodecHeader is the header for codecs identified by FourCC (h264, HEVC).
func DefaultCodecHeader(fourcc string) VideoHeader {
	return VideoHeader{
		Width:       720,
		Height:      576,
		Planes:      1,
		Compression: FourCC(fourcc),
	}
}

// Apply refreshes timing, interlacing, aspect and size from g.
// Interlaced for 25, 29.97 and 30 fps; aspect defaults to 16:9; size
// defaults to 720x576; width is always recomputed from height and aspect.
func (h *VideoHeader) Apply(g Geometry) {
	h.AvgTimePerFrame = g.FrameRate.AvgTimePerFrame()
	switch g.FrameRate {
	case FPS25, FPS2997, FPS30:
		h.InterlaceFlags = InterlaceIsInterlaced | InterlaceDisplayBobOrWeave
	default:
		h.InterlaceFlags = 0
	}

	if g.AspectX != 0 && g.AspectY != 0 {
		h.AspectX, h.AspectY = g.AspectX, g.AspectY
	} else {
		h.AspectX, h.AspectY = 16, 9
	}

	if g.Height != 0 {
		h.Height = int32(g.Height)
		h.Width = int32(g.Width)
	} else {
		h.Height = 576
		h.Width = 720
	}
	h.Width = int32(int64(h.Height) * int64(h.AspectX) / int64(h.AspectY))

	h.Source = Rect{Right: h.Width, Bottom: h.Height}
	h.Target = Rect{}
}

type wireVideoHeader struct {
	Source          Rect
	Target          Rect
	BitRate         uint32
	BitErrorRate    uint32
	AvgTimePerFrame int64
	InterlaceFlags  uint32
	CopyProtect     uint32
	AspectX         uint32
	AspectY         uint32
	ControlFlags    uint32
	Reserved2       uint32
	BiSize          uint32
	Width           int32
	Height          int32
	Planes          uint16
	BitCount        uint16
	Compression     uint32
	SizeImage       uint32
	XPelsPerMeter   int32
	YPelsPerMeter   int32
	ClrUsed         uint32
	ClrImportant    uint32
}

// MarshalBinary encodes the header in its fixed little-endian layout.
func (h VideoHeader) MarshalBinary() ([]byte, error) {
	w := wireVideoHeader{
		Source: h.Source, Target: h.Target,
		BitRate: h.BitRate, BitErrorRate: h.BitErrorRate,
		AvgTimePerFrame: h.AvgTimePerFrame,
		InterlaceFlags:  h.InterlaceFlags, CopyProtect: h.CopyProtect,
		AspectX: h.AspectX, AspectY: h.AspectY,
		ControlFlags: h.ControlFlags, Reserved2: h.Reserved2,
		BiSize: bitmapInfoHeaderSize,
		Width:  h.Width, Height: h.Height,
		Planes: h.Planes, BitCount: h.BitCount, Compression: h.Compression,
	}
	var buf bytes.Buffer
	buf.Grow(binary.Size(w))
	if err := binary.Write(&buf, binary.LittleEndian, w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a header written by MarshalBinary.
func (h *VideoHeader) UnmarshalBinary(data []byte) error {
	var w wireVideoHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &w); err != nil {
		return err
	}
	*h = VideoHeader{
		Source: w.Source, Target: w.Target,
		BitRate: w.BitRate, BitErrorRate: w.BitErrorRate,
		AvgTimePerFrame: w.AvgTimePerFrame,
		InterlaceFlags:  w.InterlaceFlags, CopyProtect: w.CopyProtect,
		AspectX: w.AspectX, AspectY: w.AspectY,
		ControlFlags: w.ControlFlags, Reserved2: w.Reserved2,
		Width: w.Width, Height: w.Height,
		Planes: w.Planes, BitCount: w.BitCount, Compression: w.Compression,
	}
	return nil
}

// VideoType wraps h into a video media type with the given subtype.
func VideoType(minor Capability, h VideoHeader) MediaType {
	blob, _ := h.MarshalBinary()
	return MediaType{
		Capability: minor,
		Temporal:   true,
		FormatType: FormatVideoInfo2,
		Format:     blob,
	}
}
