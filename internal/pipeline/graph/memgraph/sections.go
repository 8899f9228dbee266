// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package memgraph

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"sync"

	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/media"
)

// SectionSink consumes the program-table output and replays a fixed
// transport capture to the scan engine.
type SectionSink struct {
	*Node

	mu   sync.Mutex
	data []byte
}

var _ graph.SectionSource = (*SectionSink)(nil)

func NewSectionSink(name string, transport []byte) *SectionSink {
	s := &SectionSink{Node: NewNode(name), data: transport}
	s.Node.owner = s
	s.AddPin("in", graph.Input, media.MediaType{Capability: media.Capability{Major: media.MajorMPEG2Sections}})
	return s
}

// SetTransport replaces the replayed capture.
func (s *SectionSink) SetTransport(b []byte) {
	s.mu.Lock()
	s.data = b
	s.mu.Unlock()
}

func (s *SectionSink) OpenSections(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

// NewPassThrough is a text pass-through node subtitles are routed through.
func NewPassThrough(name string) *Node {
	return NewTransform(name,
		[]media.MediaType{{Capability: media.Capability{Major: media.MajorSubtitle}}},
		[]media.MediaType{{Capability: media.Capability{Major: media.MajorSubtitle, Minor: media.MinorUTF8}}})
}

// Descriptor is a raw PMT descriptor.
type Descriptor struct {
	Tag  byte
	Data []byte
}

// LanguageDescriptor is an ISO 639 language descriptor.
func LanguageDescriptor(lang string) Descriptor {
	b := make([]byte, 4)
	copy(b, lang)
	return Descriptor{Tag: 0x0a, Data: b}
}

// ElementaryStream is one PMT entry.
type ElementaryStream struct {
	Type        byte
	PID         uint16
	Descriptors []Descriptor
}

// Program is one PAT entry and its PMT.
type Program struct {
	Number  uint16
	PMTPID  uint16
	PCRPID  uint16
	Streams []ElementaryStream
}

const packetSize = 188

// BuildTransport encodes a PAT followed by one PMT per program as
// 188-byte transport packets.
func BuildTransport(tsid uint16, programs ...Program) []byte {
	var out []byte
	var cc [8192]byte

	pat := []byte{0x00, 0, 0}
	pat = binary.BigEndian.AppendUint16(pat, tsid)
	pat = append(pat, 0xc1, 0x00, 0x00)
	for _, p := range programs {
		pat = binary.BigEndian.AppendUint16(pat, p.Number)
		pat = binary.BigEndian.AppendUint16(pat, 0xe000|p.PMTPID)
	}
	out = append(out, packetize(0, finishSection(pat), &cc)...)

	for _, p := range programs {
		pmt := []byte{0x02, 0, 0}
		pmt = binary.BigEndian.AppendUint16(pmt, p.Number)
		pmt = append(pmt, 0xc1, 0x00, 0x00)
		pmt = binary.BigEndian.AppendUint16(pmt, 0xe000|p.PCRPID)
		pmt = binary.BigEndian.AppendUint16(pmt, 0xf000)
		for _, es := range p.Streams {
			var info []byte
			for _, d := range es.Descriptors {
				info = append(info, d.Tag, byte(len(d.Data)))
				info = append(info, d.Data...)
			}
			pmt = append(pmt, es.Type)
			pmt = binary.BigEndian.AppendUint16(pmt, 0xe000|es.PID)
			pmt = binary.BigEndian.AppendUint16(pmt, 0xf000|uint16(len(info)))
			pmt = append(pmt, info...)
		}
		out = append(out, packetize(p.PMTPID, finishSection(pmt), &cc)...)
	}
	return out
}

// finishSection fills in section_length and appends the CRC.
func finishSection(s []byte) []byte {
	length := len(s) - 3 + 4
	s[1] = 0xb0 | byte(length>>8)&0x0f
	s[2] = byte(length)
	return binary.BigEndian.AppendUint32(s, crc32MPEG2(s))
}

func packetize(pid uint16, section []byte, cc *[8192]byte) []byte {
	var out []byte
	payload := append([]byte{0x00}, section...)
	first := true
	for len(payload) > 0 {
		pkt := make([]byte, packetSize)
		for i := range pkt {
			pkt[i] = 0xff
		}
		pkt[0] = 0x47
		pkt[1] = byte(pid>>8) & 0x1f
		if first {
			pkt[1] |= 0x40
		}
		pkt[2] = byte(pid)
		pkt[3] = 0x10 | cc[pid]&0x0f
		cc[pid]++
		n := copy(pkt[4:], payload)
		payload = payload[n:]
		out = append(out, pkt...)
		first = false
	}
	return out
}

var crcTable = func() (t [256]uint32) {
	for i := range t {
		c := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if c&0x80000000 != 0 {
				c = c<<1 ^ 0x04c11db7
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}
	return t
}()

func crc32MPEG2(b []byte) uint32 {
	crc := uint32(0xffffffff)
	for _, v := range b {
		crc = crc<<8 ^ crcTable[byte(crc>>24)^v]
	}
	return crc
}
