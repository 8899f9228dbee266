// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"fmt"

	"github.com/ManuGH/dvbgraph/internal/channels"
	"github.com/ManuGH/dvbgraph/internal/log"
	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
	"github.com/ManuGH/dvbgraph/internal/pipeline/scan"
)

// Scan tunes to a multiplex and reads its program tables, publishing a
// channel.discovered event per named service. A zero frequency or
// bandwidth only clears the current PID mappings.
func (s *Session) Scan(ctx context.Context, frequency, bandwidth, symbolRate uint32) ([]scan.Program, error) {
	ctx = s.context(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pipeline == nil {
		return nil, ErrNotOpen
	}
	if frequency == 0 || bandwidth == 0 {
		return nil, s.table.ClearMaps(ctx)
	}

	if err := s.facade.ApplyFrequency(ctx, frequency, bandwidth, symbolRate); err != nil {
		return nil, fmt.Errorf("scan tune: %w", err)
	}
	req := scan.Request{Frequency: frequency, Bandwidth: bandwidth, SymbolRate: symbolRate}
	if src, ok := graph.PeerNode(s.table.Output(model.KindPSI)).(graph.SectionSource); ok {
		req.Source = src
	}

	var programs []scan.Program
	err := s.table.WithExclusive(func() error {
		var err error
		programs, err = s.scanner.RunScan(ctx, req)
		return err
	})
	return programs, err
}

// UpdateGuide reads the present/following events of ch when the channel
// carries them and a guide parser is configured. The bool reports whether
// guide data was read.
func (s *Session) UpdateGuide(ctx context.Context, ch channels.Channel) (model.NowNext, bool, error) {
	if !ch.NowNext || s.guide == nil {
		return model.NowNext{}, false, nil
	}
	ctx = s.context(ctx)
	nn, err := s.guide.NowNext(ctx, ch.SID)
	if err != nil {
		logger := log.WithComponentFromContext(ctx, "session")
		logger.Warn().Err(err).
			Str(log.FieldChannel, ch.Name).Str(log.FieldOp, "now_next").Msg("guide not read")
		return model.NowNext{}, false, err
	}
	s.publish(ctx, model.TopicNowNext, nn)
	return nn, true, nil
}
