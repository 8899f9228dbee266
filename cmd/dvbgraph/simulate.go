// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/dvbgraph/internal/channels"
	"github.com/ManuGH/dvbgraph/internal/config"
	"github.com/ManuGH/dvbgraph/internal/health"
	"github.com/ManuGH/dvbgraph/internal/log"
	"github.com/ManuGH/dvbgraph/internal/pipeline/bus"
	"github.com/ManuGH/dvbgraph/internal/session"
	"github.com/ManuGH/dvbgraph/internal/telemetry"
	"github.com/ManuGH/dvbgraph/internal/version"
)

type simulateOptions struct {
	file        string
	channel     int
	scan        bool
	metricsAddr string
	hold        bool
}

func runSimulate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dvbgraph simulate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts simulateOptions
	fs.StringVar(&opts.file, "file", "", "path to YAML configuration file")
	fs.StringVar(&opts.file, "f", "", "path to YAML configuration file (shorthand)")
	fs.IntVar(&opts.channel, "channel", 0, "channel preference to tune (default: last channel)")
	fs.BoolVar(&opts.scan, "scan", false, "scan the tuned multiplex after tuning")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while holding")
	fs.BoolVar(&opts.hold, "hold", false, "keep the pipeline running until interrupted")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(opts.file) == "" {
		fmt.Fprintln(stderr, "Error: --file is required")
		return 2
	}

	cfg, err := config.NewLoader(opts.file, version.Version).Load()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", opts.file, err)
		return 1
	}
	if opts.metricsAddr != "" {
		cfg.Metrics.ListenAddr = opts.metricsAddr
	}

	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Output:  stderr,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	logger := log.WithComponent("simulate")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := simulate(ctx, cfg, opts, stdout, logger); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "simulate.failed").Msg("simulation failed")
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func simulate(ctx context.Context, cfg config.AppConfig, opts simulateOptions, stdout io.Writer, logger zerolog.Logger) (err error) {
	provider, err := telemetry.NewProvider(ctx, cfg.TracingConfig())
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if serr := provider.Shutdown(context.Background()); serr != nil {
			logger.Warn().Err(serr).Msg("telemetry shutdown failed")
		}
	}()

	log.ClearRecentLogs()

	if cfg.Channels.Path == "" {
		return errors.New("channels.path is required for simulation")
	}
	store, err := channels.Open(cfg.Channels.Path)
	if err != nil {
		return err
	}
	pref := opts.channel
	if pref == 0 {
		pref = store.LastChannel()
	}
	if pref == 0 {
		pref = cfg.Channels.LastChannel
	}
	if pref == 0 {
		all := store.All()
		if len(all) == 0 {
			return errors.New("channel file is empty")
		}
		pref = all[0].Preference
	}

	b := bus.NewMemoryBus()
	r, sess, err := tune(ctx, cfg, store, b, pref, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(context.Background()); cerr != nil && err == nil {
			err = cerr
		}
	}()

	var programs int
	if opts.scan {
		ch, _ := store.FindByPreference(pref)
		found, err := sess.Scan(ctx, ch.Frequency, ch.Bandwidth, ch.SymbolRate)
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		programs = len(found)
	}
	if err := report(ctx, stdout, sess, r, store, pref, opts.scan, programs); err != nil {
		return err
	}
	if !opts.hold {
		return nil
	}
	return serve(ctx, cfg, r, store, sess, logger)
}

// tune opens a session and applies pref, rebuilding the pipeline once when
// the assembled graph cannot carry the channel.
func tune(ctx context.Context, cfg config.AppConfig, store *channels.Store, b bus.Bus, pref int, logger zerolog.Logger) (*rig, *session.Session, error) {
	for attempt := 0; ; attempt++ {
		r := newRig(cfg, store, b)
		sess, err := session.New(cfg, r.deps)
		if err != nil {
			return nil, nil, err
		}
		if err := sess.Open(ctx); err != nil {
			_ = sess.Close(context.Background())
			return nil, nil, err
		}
		err = sess.SetChannel(ctx, pref)
		if err == nil {
			return r, sess, nil
		}
		_ = sess.Close(context.Background())
		if !errors.Is(err, session.ErrRebuildRequired) || attempt > 0 {
			return nil, nil, err
		}
		logger.Info().Int("preference", pref).Msg("rebuilding pipeline for channel")
	}
}

// serve keeps background work running until ctx ends: metrics and health
// endpoints, the module janitor, the channel file watcher and a signal
// poll.
func serve(ctx context.Context, cfg config.AppConfig, r *rig, store *channels.Store, sess *session.Session, logger zerolog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r.modules.Run(gctx)
		return nil
	})

	if cfg.Metrics.ListenAddr != "" {
		checks := health.NewManager(cfg.Version)
		checks.RegisterChecker(health.SignalChecker{Source: sess})
		checks.RegisterChecker(health.RunStateChecker{Source: sess})

		srv := &http.Server{
			Addr:              cfg.Metrics.ListenAddr,
			Handler:           newRouter(checks),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info().Str("addr", srv.Addr).Msg("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if cfg.Channels.Watch {
		g.Go(func() error {
			return store.Watch(gctx, func() {
				logger.Info().Int("channels", len(store.All())).Msg("channel file reloaded")
			})
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if _, err := sess.Stats(gctx); err != nil {
					logger.Debug().Err(err).Msg("signal poll failed")
				}
			}
		}
	})

	logger.Info().Msg("holding pipeline, interrupt to stop")
	return g.Wait()
}

func report(ctx context.Context, w io.Writer, sess *session.Session, r *rig, store *channels.Store, pref int, scanned bool, programs int) error {
	ch, err := store.FindByPreference(pref)
	if err != nil {
		return err
	}
	stats, err := sess.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	state, err := sess.State(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Session\t%s\n", sess.ID())
	fmt.Fprintf(tw, "Channel\t%d %s\n", ch.Preference, ch.Name)
	fmt.Fprintf(tw, "Tuning\t%s, %s\n",
		humanize.SIWithDigits(float64(ch.Frequency), 3, "Hz"),
		humanize.SIWithDigits(float64(ch.Bandwidth), 3, "Hz"))
	fmt.Fprintf(tw, "State\t%s\n", state)
	fmt.Fprintf(tw, "Signal\tpresent=%t locked=%t strength=%d quality=%d\n",
		stats.Present, stats.Locked, stats.Strength, stats.Quality)
	if scanned {
		fmt.Fprintf(tw, "Scan\t%s\n", english.Plural(programs, "program", "programs"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nTopology")
	for _, e := range r.graph.Topology() {
		fmt.Fprintf(w, "  %s.%s -> %s.%s\n", e.From, e.FromPin, e.To, e.ToPin)
	}

	fmt.Fprintln(w, "\nMapped PIDs")
	for _, k := range sess.Table().Kinds() {
		d, ok := sess.Table().Get(k)
		if !ok || d.PID == 0 {
			continue
		}
		fmt.Fprintf(w, "  %-5s %d\n", k, d.PID)
	}

	fmt.Fprintln(w, "\nStreams")
	for i := 0; i < sess.StreamCount(); i++ {
		info, err := sess.StreamInfo(i)
		if err != nil {
			return err
		}
		group := "audio"
		if info.Group == session.GroupSubtitle {
			group = "subtitle"
		}
		mark := " "
		if info.Enabled {
			mark = "*"
		}
		fmt.Fprintf(w, "  %s [%d] %-8s %s\n", mark, info.Index, group, info.Name)
	}

	var warnings []log.Entry
	for _, e := range log.GetRecentLogs() {
		if e.Level != "warn" && e.Level != "error" {
			continue
		}
		warnings = append(warnings, e)
	}
	if len(warnings) > 0 {
		fmt.Fprintf(w, "\n%s\n", english.Plural(len(warnings), "Warning", "Warnings"))
		for _, e := range warnings {
			fmt.Fprintf(w, "  %-5s %s: %s\n", strings.ToUpper(e.Level), e.Component, e.Message)
		}
	}
	return nil
}
