// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scan

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Comcast/gots/v2/psi"

	"github.com/ManuGH/dvbgraph/internal/log"
	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
)

// PMT stream types.
const (
	streamMPEG1Video  = 0x01
	streamMPEG2Video  = 0x02
	streamMPEG1Audio  = 0x03
	streamMPEG2Audio  = 0x04
	streamPrivatePES  = 0x06
	streamADTS        = 0x0f
	streamLATM        = 0x11
	streamH264        = 0x1b
	streamHEVC        = 0x24
	streamATSCAC3     = 0x81
	streamATSCEAC3    = 0x87
	tagISO639         = 0x0a
	tagSubtitling     = 0x59
	tagAC3            = 0x6a
	tagEnhancedAC3    = 0x7a
	maxCaptureBytes   = 8 << 20
	defaultNamePrefix = "Program"
)

// Stream is one classified elementary stream.
type Stream struct {
	Kind       model.StreamKind
	StreamType uint8
	PID        uint16
	Language   string
}

// Program is one service from the program association table.
type Program struct {
	ServiceID uint16
	PMTPID    uint16
	Name      string
	Streams   []Stream
}

// Video returns the first video stream.
func (p Program) Video() (Stream, bool) {
	for _, s := range p.Streams {
		if s.Kind.IsVideo() {
			return s, true
		}
	}
	return Stream{}, false
}

// Audio returns the audio streams in PMT order.
func (p Program) Audio() []Stream {
	var out []Stream
	for _, s := range p.Streams {
		if s.Kind.IsAudio() {
			out = append(out, s)
		}
	}
	return out
}

// Subtitles returns the subtitle streams in PMT order.
func (p Program) Subtitles() []Stream {
	var out []Stream
	for _, s := range p.Streams {
		if s.Kind == model.KindSUB {
			out = append(out, s)
		}
	}
	return out
}

// Parser turns a program-table capture into programs.
type Parser interface {
	Parse(ctx context.Context, r io.Reader) ([]Program, error)
}

// Namer resolves service names from the service description tables.
type Namer interface {
	ServiceName(serviceID uint16) (string, bool)
}

// GuideParser reads present/following events from the guide tables.
type GuideParser interface {
	NowNext(ctx context.Context, serviceID uint16) (model.NowNext, error)
}

// PSIParser reads the PAT and each program's PMT.
type PSIParser struct {
	// Namer is optional; unnamed programs are called "Program <id>".
	Namer Namer
}

var _ Parser = PSIParser{}

// Parse reads the whole capture, then each PMT from its own reader so a
// PMT preceding the PAT in the capture is still found.
func (p PSIParser) Parse(ctx context.Context, r io.Reader) ([]Program, error) {
	capture, err := io.ReadAll(io.LimitReader(r, maxCaptureBytes))
	if err != nil {
		return nil, fmt.Errorf("read sections: %w", err)
	}
	pat, err := psi.ReadPAT(bytes.NewReader(capture))
	if err != nil {
		return nil, fmt.Errorf("read pat: %w", err)
	}

	pmap := pat.ProgramMap()
	numbers := make([]int, 0, len(pmap))
	for n := range pmap {
		if n != 0 {
			numbers = append(numbers, n)
		}
	}
	sort.Ints(numbers)

	logger := log.WithComponentFromContext(ctx, "scan")
	var out []Program
	for _, n := range numbers {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		pid := pmap[n]
		pmt, err := psi.ReadPMT(bytes.NewReader(capture), pid)
		if err != nil {
			logger.Warn().Err(err).Int("program", n).Int(log.FieldPID, pid).Msg("pmt not readable, skipping program")
			continue
		}
		prog := Program{ServiceID: uint16(n), PMTPID: uint16(pid)}
		for _, es := range pmt.ElementaryStreams() {
			s := Stream{StreamType: es.StreamType(), PID: uint16(es.ElementaryPid())}
			var tags []uint8
			for _, d := range es.Descriptors() {
				tags = append(tags, d.Tag())
				if d.Tag() == tagISO639 && s.Language == "" {
					s.Language = strings.TrimRight(d.DecodeIso639LanguageCode(), "\x00 ")
				}
			}
			s.Kind = Classify(s.StreamType, tags)
			if s.Kind == model.KindUnknown {
				continue
			}
			prog.Streams = append(prog.Streams, s)
		}
		prog.Name = p.name(prog.ServiceID)
		out = append(out, prog)
	}
	return out, nil
}

func (p PSIParser) name(sid uint16) string {
	if p.Namer != nil {
		if name, ok := p.Namer.ServiceName(sid); ok && name != "" {
			return name
		}
	}
	return fmt.Sprintf("%s %d", defaultNamePrefix, sid)
}

// Classify maps a PMT stream type and its descriptor tags to a stream
// kind. Private PES streams are told apart by their descriptors.
func Classify(streamType uint8, tags []uint8) model.StreamKind {
	has := func(tag uint8) bool {
		for _, t := range tags {
			if t == tag {
				return true
			}
		}
		return false
	}
	switch streamType {
	case streamMPEG1Video, streamMPEG2Video:
		return model.KindMPV
	case streamH264:
		return model.KindH264
	case streamHEVC:
		return model.KindHEVC
	case streamMPEG1Audio, streamMPEG2Audio:
		return model.KindMPA
	case streamATSCAC3:
		return model.KindAC3
	case streamATSCEAC3:
		return model.KindEAC3
	case streamADTS:
		return model.KindADTS
	case streamLATM:
		return model.KindLATM
	case streamPrivatePES:
		switch {
		case has(tagAC3):
			return model.KindAC3
		case has(tagEnhancedAC3):
			return model.KindEAC3
		case has(tagSubtitling):
			return model.KindSUB
		}
	}
	return model.KindUnknown
}
