// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package tuning applies frequency changes to the tuner and aggregates
// signal telemetry from its two statistics sources.
package tuning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/dvbgraph/internal/log"
	"github.com/ManuGH/dvbgraph/internal/metrics"
	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
	"github.com/ManuGH/dvbgraph/internal/telemetry"
)

const (
	DefaultPollInterval = 50 * time.Millisecond
	DefaultPollRetries  = 50

	// frequencyMultiplier makes the tuner read frequencies in kHz.
	frequencyMultiplier = 1000
)

// Options bound the wait for the tuner to apply changes.
type Options struct {
	PollInterval time.Duration
	PollRetries  int
	// Busy, when set, rejects calls while the pipeline is being assembled.
	Busy func() bool
}

// Stats is one telemetry snapshot.
type Stats struct {
	Present  bool
	Locked   bool
	Strength int32
	Quality  int32
}

// Facade tunes and reads telemetry.
type Facade struct {
	controls Controls
	opts     Options
	group    singleflight.Group
}

func New(c Controls, opts Options) *Facade {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.PollRetries <= 0 {
		opts.PollRetries = DefaultPollRetries
	}
	return &Facade{controls: c, opts: opts}
}

// Controls returns the handles the facade drives.
func (f *Facade) Controls() Controls {
	return f.controls
}

var errChangesPending = errors.New("changes pending")

func (f *Facade) busy() bool {
	return f.opts.Busy != nil && f.opts.Busy()
}

// ApplyFrequency tunes to frequency Hz with bandwidth Hz. A zero symbol
// rate, or a missing demodulator, leaves the symbol rate untouched. It
// blocks until the tuner reports the changes applied or the poll budget
// runs out with ErrTimeout.
func (f *Facade) ApplyFrequency(ctx context.Context, frequency, bandwidth, symbolRate uint32) (err error) {
	if f.busy() {
		return fmt.Errorf("apply frequency: %w", graph.ErrInvalidState)
	}
	ctx, span := telemetry.Start(ctx, "tuning", "tuning.ApplyFrequency",
		telemetry.TuneAttributes(frequency, bandwidth, symbolRate)...)
	attempts := 0
	defer func() {
		telemetry.End(span, err, graph.Class(err))
		metrics.RecordTune(err, attempts)
	}()

	logger := log.WithComponentFromContext(ctx, "tuning").With().
		Uint32(log.FieldFrequencyHz, frequency).
		Uint32(log.FieldBandwidthHz, bandwidth).
		Uint32(log.FieldSymbolRate, symbolRate).
		Logger()

	c := f.controls
	if c.Device == nil || c.Frequency == nil {
		return graph.PointerViolation("tuner controls")
	}

	if err := c.Device.StartChanges(ctx); err != nil {
		return f.fail(logger, "start_changes", err)
	}
	if symbolRate != 0 && c.Demodulator != nil {
		if err := c.Demodulator.SetSymbolRate(ctx, symbolRate); err != nil {
			logger.Warn().Err(err).Str(log.FieldOp, "set_symbol_rate").Str(log.FieldStatus, graph.Class(err)).Msg("symbol rate not applied")
		}
	}
	if err := c.Frequency.SetFrequencyMultiplier(ctx, frequencyMultiplier); err != nil {
		logger.Warn().Err(err).Str(log.FieldOp, "set_frequency_multiplier").Str(log.FieldStatus, graph.Class(err)).Msg("frequency multiplier not applied")
	}
	if err := c.Frequency.SetBandwidth(ctx, bandwidth/1_000_000); err != nil {
		logger.Warn().Err(err).Str(log.FieldOp, "set_bandwidth").Str(log.FieldStatus, graph.Class(err)).Msg("bandwidth not applied")
	}
	if err := c.Frequency.SetFrequency(ctx, frequency/frequencyMultiplier); err != nil {
		return f.fail(logger, "set_frequency", err)
	}
	if err := c.Device.CheckChanges(ctx); err != nil {
		return f.fail(logger, "check_changes", err)
	}
	if err := c.Device.CommitChanges(ctx); err != nil {
		return f.fail(logger, "commit_changes", err)
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		state, err := c.Device.ChangeState(ctx)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if state == graph.ChangesPending {
			return struct{}{}, errChangesPending
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(f.opts.PollInterval)),
		backoff.WithMaxTries(uint(f.opts.PollRetries)),
	)
	if errors.Is(err, errChangesPending) {
		err = fmt.Errorf("tuner still pending after %d polls: %w", attempts, graph.ErrTimeout)
	}
	if err != nil {
		return f.fail(logger, "change_state", err)
	}

	logger.Info().
		Int(log.FieldAttempts, attempts).
		Str("frequency", humanize.SIWithDigits(float64(frequency), 3, "Hz")).
		Msg("frequency applied")
	return nil
}

func (f *Facade) fail(logger zerolog.Logger, op string, err error) error {
	wrapped := graph.Wrap("apply_frequency", op, err)
	logger.Error().Err(err).Str(log.FieldOp, op).Str(log.FieldStatus, graph.Class(err)).Msg("tuning failed")
	return wrapped
}

// GetStats reads the four signal metrics, each from its primary source
// with the other as fallback. Concurrent callers share one read.
func (f *Facade) GetStats(ctx context.Context) (Stats, error) {
	v, err, _ := f.group.Do("stats", func() (any, error) {
		return f.readStats(ctx)
	})
	if err != nil {
		return Stats{}, err
	}
	return v.(Stats), nil
}

func (f *Facade) readStats(ctx context.Context) (Stats, error) {
	c := f.controls
	if c.TunerStats == nil || c.DemodStats == nil {
		return Stats{}, fmt.Errorf("read stats: %w", graph.ErrNoStatsAvailable)
	}

	var (
		s    Stats
		errs []error
	)
	present, err := read(ctx, "present", c.TunerStats, c.DemodStats, graph.SignalStatistics.SignalPresent)
	errs = append(errs, err)
	locked, err := read(ctx, "locked", c.DemodStats, c.TunerStats, graph.SignalStatistics.SignalLocked)
	errs = append(errs, err)
	strength, err := read(ctx, "strength", c.TunerStats, c.DemodStats, graph.SignalStatistics.SignalStrength)
	errs = append(errs, err)
	quality, err := read(ctx, "quality", c.DemodStats, c.TunerStats, graph.SignalStatistics.SignalQuality)
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		logger := log.WithComponent("tuning")
		logger.Debug().Err(err).Str(log.FieldOp, "get_stats").Msg("statistics unavailable")
		return Stats{}, fmt.Errorf("%w: %w", graph.ErrNoStatsAvailable, err)
	}
	s = Stats{Present: present, Locked: locked, Strength: strength, Quality: quality}
	metrics.RecordSignal(s.Strength, s.Quality, s.Locked)
	return s, nil
}

func read[T any](ctx context.Context, metric string, primary, secondary graph.SignalStatistics,
	get func(graph.SignalStatistics, context.Context) (T, error)) (T, error) {
	v, err := get(primary, ctx)
	if err == nil {
		return v, nil
	}
	if sameSource(primary, secondary) {
		return v, fmt.Errorf("%s: %w", metric, err)
	}
	v, err2 := get(secondary, ctx)
	if err2 != nil {
		return v, fmt.Errorf("%s: %w", metric, errors.Join(err, err2))
	}
	metrics.IncTelemetryFallback(metric)
	return v, nil
}
