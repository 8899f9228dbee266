// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/ManuGH/dvbgraph/internal/channels"
	"github.com/ManuGH/dvbgraph/internal/log"
	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
	"github.com/ManuGH/dvbgraph/internal/pipeline/streams"
	"github.com/ManuGH/dvbgraph/internal/telemetry"
)

// SetChannel switches to the channel stored under pref. When the current
// graph cannot carry it, the preference is still remembered and
// ErrRebuildRequired is returned.
func (s *Session) SetChannel(ctx context.Context, pref int) (err error) {
	ctx = s.context(ctx)
	ch, err := s.store.FindByPreference(pref)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pipeline == nil {
		return ErrNotOpen
	}

	logger := s.logger.With().Int("preference", pref).Str(log.FieldChannel, ch.Name).Logger()
	if !s.applicable(ch, pref) {
		s.remember(logger, pref)
		logger.Info().Str("rebuild", string(s.cfg.Graph.Rebuild)).Msg("channel needs a rebuilt graph")
		return ErrRebuildRequired
	}

	ctx, span := telemetry.Start(ctx, "session", "session.SetChannel",
		telemetry.ChannelAttributes(pref, ch.Name)...)
	defer func() { telemetry.End(span, err, graph.Class(err)) }()

	if err := s.applyChannel(ctx, logger, ch); err != nil {
		logger.Error().Err(err).Str(log.FieldOp, "set_channel").Str(log.FieldStatus, graph.Class(err)).
			Msg("channel change failed")
		return fmt.Errorf("set channel %d: %w", pref, err)
	}
	s.remember(logger, pref)
	logger.Info().Msg("channel changed")
	return nil
}

// applicable reports whether ch can be applied without rebuilding: audio
// presence must not flip, and the rebuild policy must allow the change.
func (s *Session) applicable(ch channels.Channel, pref int) bool {
	hadAudio := s.curAudio != model.KindUnknown
	hasAudio := audioKind(ch) != model.KindUnknown
	if hadAudio != hasAudio {
		return false
	}
	switch s.cfg.Graph.Rebuild {
	case model.PolicyNever:
		return true
	case model.PolicyWhenSwitching:
		return s.curVideo == videoKind(ch)
	case model.PolicyAlways:
		return s.lastPref == pref
	}
	return false
}

func (s *Session) remember(logger zerolog.Logger, pref int) {
	s.lastPref = pref
	if err := s.store.SetLastChannel(pref); err != nil {
		logger.Warn().Err(err).Str(log.FieldOp, "persist_last_channel").Msg("last channel not saved")
	}
}

func (s *Session) applyChannel(ctx context.Context, logger zerolog.Logger, ch channels.Channel) error {
	if err := s.table.ClearMaps(ctx); err != nil {
		logger.Warn().Err(err).Msg("previous mappings not fully cleared")
	}
	if s.cfg.Graph.Stop == model.PolicyAlways {
		s.stopIfRunning(ctx, logger)
	}

	radioToTV := false
	if !ch.IsRadio() {
		kind := videoKind(ch)
		s.retypeVideo(ctx, logger, kind, ch)

		state, err := s.run.State(ctx)
		if err != nil {
			return err
		}
		if s.curVideo != kind || state == model.RunStopped {
			if s.cfg.Graph.Stop == model.PolicyWhenSwitching {
				s.stopIfRunning(ctx, logger)
			}
			if err := s.switcher.SwitchStream(ctx, s.curVideo, kind); err != nil {
				return fmt.Errorf("video: %w", err)
			}
			s.curVideo = kind
		}
		radioToTV = s.hidden
	} else {
		s.hidden = true
	}

	audio := audioKind(ch)
	if s.curAudio != audio {
		if err := s.switcher.SwitchStream(ctx, s.curAudio, audio); err != nil {
			return fmt.Errorf("audio: %w", err)
		}
		s.curAudio = audio
	}

	state, err := s.run.State(ctx)
	if err != nil {
		return err
	}
	if state == model.RunStopped {
		if err := s.run.RequestState(ctx, model.RunRunning); err != nil {
			return err
		}
	}

	logger.Debug().
		Str("frequency", humanize.SIWithDigits(float64(ch.Frequency), 3, "Hz")).
		Str("bandwidth", humanize.SIWithDigits(float64(ch.Bandwidth), 3, "Hz")).
		Msg("tuning")
	if err := s.facade.ApplyFrequency(ctx, ch.Frequency, ch.Bandwidth, ch.SymbolRate); err != nil {
		return err
	}
	if err := s.flush(ctx, videoKind(ch), audio); err != nil {
		return err
	}

	if !ch.IsRadio() {
		if err := s.table.Map(ctx, ch.VideoKind, ch.VideoPID); err != nil {
			return err
		}
	}
	if a, ok := ch.DefaultAudioStream(); ok {
		if err := s.table.Map(ctx, a.Kind, a.PID); err != nil {
			return err
		}
	}
	if sub, ok := ch.DefaultSubtitleStream(); ok {
		if err := s.table.Map(ctx, model.KindSUB, sub.PID); err != nil {
			return err
		}
	}

	if radioToTV {
		s.hidden = false
		if err := sleepCtx(ctx, s.cfg.Tuning.RadioToTVDelay); err != nil {
			return err
		}
	}
	s.publishWindow(ctx, ch)
	return nil
}

// retypeVideo refreshes the video output format from the channel's
// geometry. Failure leaves the previous format in place.
func (s *Session) retypeVideo(ctx context.Context, logger zerolog.Logger, kind model.StreamKind, ch channels.Channel) {
	mt, ok := streams.VideoMediaType(kind, ch.Geometry())
	if !ok {
		return
	}
	if err := s.table.SetMediaType(kind, mt); err != nil {
		logger.Warn().Err(err).Str(log.FieldStreamKind, string(kind)).Msg("video type not updated")
		return
	}
	if err := s.pipeline.Demux.SetOutputPinMediaType(ctx, kind.PinName(), mt); err != nil {
		logger.Warn().Err(err).Str(log.FieldStreamKind, string(kind)).Str(log.FieldStatus, graph.Class(err)).
			Msg("video output not retyped")
	}
}

func (s *Session) stopIfRunning(ctx context.Context, logger zerolog.Logger) {
	state, err := s.run.State(ctx)
	if err == nil && state == model.RunStopped {
		return
	}
	if err := s.run.RequestState(ctx, model.RunStopped); err != nil {
		logger.Warn().Err(err).Msg("pipeline not stopped")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
