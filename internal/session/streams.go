// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/ManuGH/dvbgraph/internal/channels"
	"github.com/ManuGH/dvbgraph/internal/log"
	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/media"
	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
)

// Stream groups as reported by StreamInfo.
const (
	GroupAudio    = 1
	GroupSubtitle = 2
)

const noSubtitlesName = "No subtitles"

// StreamInfo describes one selectable stream of the current channel.
type StreamInfo struct {
	Index     int
	Group     int
	Name      string
	Language  language.Tag
	Enabled   bool
	MediaType media.MediaType
	PID       uint16
}

// pesNames maps PMT stream types to display names.
var pesNames = map[uint8]string{
	0x01: "MPEG-1",
	0x02: "MPEG-2",
	0x03: "MPEG-1",
	0x04: "MPEG-2",
	0x1b: "H264",
	0x24: "HEVC",
	0x80: "LPCM",
	0x81: "Dolby Digital",
	0x82: "DTS",
	0x83: "Dolby TrueHD",
	0x84: "Dolby Digital Plus",
	0x85: "DTS-HD High Resolution Audio",
	0x86: "DTS-HD Master Audio",
	0x90: "Presentation Graphics Stream",
	0x91: "Interactive Graphics Stream",
	0x92: "Subtitle",
	0xa1: "Secondary Dolby Digital Plus",
	0xa2: "Secondary DTS-HD High Resolution Audio",
	0xea: "VC-1",
}

// StreamCount is the number of selectable streams: the audio tracks, the
// subtitle tracks and, when subtitles exist, a trailing "No subtitles"
// entry.
func (s *Session) StreamCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.lastChannel()
	if !ok {
		return 0
	}
	return streamCount(ch)
}

func streamCount(ch channels.Channel) int {
	n := len(ch.Audio) + len(ch.Subtitles)
	if len(ch.Subtitles) > 0 {
		n++
	}
	return n
}

// StreamInfo describes stream index of the current channel.
func (s *Session) StreamInfo(index int) (StreamInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.lastChannel()
	if !ok || index < 0 || index >= streamCount(ch) {
		return StreamInfo{}, fmt.Errorf("stream %d: %w", index, ErrInvalidStream)
	}

	nA, nS := len(ch.Audio), len(ch.Subtitles)
	switch {
	case index < nA:
		a := ch.Audio[index]
		d, _ := s.table.Get(a.Kind)
		tag, langName := displayLanguage(a.Language)
		name, ok := pesNames[a.PESType]
		if !ok {
			name = string(a.Kind)
		}
		return StreamInfo{
			Index:     index,
			Group:     GroupAudio,
			Name:      withLanguage(name, langName),
			Language:  tag,
			Enabled:   d.PID != 0 && d.PID == a.PID,
			MediaType: d.MediaType,
			PID:       a.PID,
		}, nil
	case index < nA+nS:
		sub := ch.Subtitles[index-nA]
		d, _ := s.table.Get(model.KindSUB)
		tag, langName := displayLanguage(sub.Language)
		return StreamInfo{
			Index:     index,
			Group:     GroupSubtitle,
			Name:      withLanguage(pesNames[0x92], langName),
			Language:  tag,
			Enabled:   d.PID != 0 && d.PID == sub.PID,
			MediaType: d.MediaType,
			PID:       sub.PID,
		}, nil
	default:
		d, _ := s.table.Get(model.KindSUB)
		return StreamInfo{
			Index:    index,
			Group:    GroupSubtitle,
			Name:     noSubtitlesName,
			Language: language.Und,
			Enabled:  d.PID == 0,
		}, nil
	}
}

// displayLanguage parses an ISO 639 code. Codes x/text does not know are
// shown verbatim.
func displayLanguage(code string) (language.Tag, string) {
	if code == "" {
		return language.Und, ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return language.Und, code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return tag, name
	}
	return tag, code
}

func withLanguage(name, lang string) string {
	if lang == "" {
		return name
	}
	return name + " [" + lang + "]"
}

// EnableStream selects stream index of the current channel. Selecting an
// audio track may switch the audio decoder path; the pipeline returns to
// its previous run state afterwards.
func (s *Session) EnableStream(ctx context.Context, index int) error {
	ctx = s.context(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pipeline == nil {
		return ErrNotOpen
	}
	ch, ok := s.lastChannel()
	if !ok || index < 0 || index >= streamCount(ch) {
		return fmt.Errorf("stream %d: %w", index, ErrInvalidStream)
	}

	nA, nS := len(ch.Audio), len(ch.Subtitles)
	switch {
	case index < nA:
		return s.enableAudio(ctx, ch, ch.Audio[index])
	case index < nA+nS:
		sub := ch.Subtitles[index-nA]
		if err := s.table.Map(ctx, model.KindSUB, sub.PID); err != nil {
			return err
		}
		s.logger.Info().Uint16(log.FieldPID, sub.PID).Str(log.FieldLanguage, sub.Language).Msg("subtitles enabled")
		return nil
	default:
		if err := s.table.Unmap(ctx, model.KindSUB); err != nil {
			return err
		}
		s.logger.Info().Msg("subtitles disabled")
		return nil
	}
}

func (s *Session) enableAudio(ctx context.Context, ch channels.Channel, a channels.AudioStream) error {
	logger := s.logger.With().
		Str(log.FieldStreamKind, string(a.Kind)).
		Uint16(log.FieldPID, a.PID).
		Str(log.FieldLanguage, a.Language).
		Logger()

	if err := s.table.Unmap(ctx, s.curAudio); err != nil {
		logger.Warn().Err(err).Msg("previous audio not unmapped")
	}
	saved, err := s.run.State(ctx)
	if err != nil {
		return err
	}
	if a.Kind != s.curAudio {
		if s.cfg.Graph.Stop == model.PolicyAlways {
			s.stopIfRunning(ctx, logger)
		}
		if err := s.switcher.SwitchStream(ctx, s.curAudio, a.Kind); err != nil {
			return err
		}
		s.curAudio = a.Kind
		if err := s.flush(ctx, videoKind(ch), a.Kind); err != nil {
			logger.Warn().Err(err).Msg("flush after audio change failed")
		}
	}
	if err := s.table.Map(ctx, a.Kind, a.PID); err != nil {
		return err
	}

	now, err := s.run.State(ctx)
	if err != nil {
		return err
	}
	if now != saved {
		if err := s.run.RequestState(ctx, saved); err != nil {
			return err
		}
	}
	logger.Info().Msg("audio stream enabled")
	return nil
}

// Flush discards queued data downstream of the subtitle, audio and video
// outputs and starts a new segment on each.
func (s *Session) Flush(ctx context.Context, video, audio model.StreamKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush(s.context(ctx), video, audio)
}

func (s *Session) flush(ctx context.Context, video, audio model.StreamKind) error {
	var errs []error
	for _, kind := range []model.StreamKind{model.KindSUB, audio, video} {
		if kind == model.KindUnknown {
			continue
		}
		out := s.table.Output(kind)
		if out == nil {
			continue
		}
		peer := graph.PeerNode(out)
		if peer == nil {
			continue
		}
		f, ok := graph.FirstPin(peer, graph.Input).(graph.Flusher)
		if !ok {
			continue
		}
		for _, step := range []struct {
			name string
			fn   func() error
		}{
			{"begin_flush", f.BeginFlush},
			{"end_flush", f.EndFlush},
			{"new_segment", f.NewSegment},
		} {
			if err := step.fn(); err != nil {
				errs = append(errs, graph.Wrap(step.name, peer.Name(), err))
				break
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		logger := log.WithComponentFromContext(ctx, "session")
		logger.Warn().Err(err).Str(log.FieldOp, "flush").Msg("flush incomplete")
		return err
	}
	return nil
}
