// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
	"github.com/ManuGH/dvbgraph/internal/validate"
)

var policies = []model.Policy{model.PolicyNever, model.PolicyWhenSwitching, model.PolicyAlways}

// Validate checks a resolved configuration. All problems are reported at once.
func Validate(cfg AppConfig) error {
	c := validate.New()

	c.LogLevel("logLevel", cfg.LogLevel)

	c.NotBlank("tuner.networkProvider", cfg.Tuner.NetworkProvider)
	validate.OneOf(c, "tuner.networkType", cfg.Tuner.NetworkType, model.NetworkDVB, model.NetworkATSC)

	validate.OneOf(c, "graph.rebuild", cfg.Graph.Rebuild, policies...)
	validate.OneOf(c, "graph.stop", cfg.Graph.Stop, policies...)

	c.Duration("tuning.pollInterval", cfg.Tuning.PollInterval, time.Millisecond, 10*time.Second)
	c.Between("tuning.pollRetries", cfg.Tuning.PollRetries, 1, 1000)
	c.Duration("tuning.stateTimeout", cfg.Tuning.StateTimeout, time.Millisecond, time.Minute)
	c.Duration("tuning.radioToTVDelay", cfg.Tuning.RadioToTVDelay, 0, time.Minute)

	c.FilePath("channels.path", cfg.Channels.Path)
	c.NonNegative("channels.lastChannel", cfg.Channels.LastChannel)
	if cfg.Channels.Watch && cfg.Channels.Path == "" {
		c.Add("channels.watch", cfg.Channels.Watch, "requires channels.path")
	}

	c.Duration("modules.unloadInterval", cfg.Modules.UnloadInterval, time.Second, 24*time.Hour)

	c.ListenAddr("metrics.listenAddr", cfg.Metrics.ListenAddr)

	if cfg.Telemetry.Enabled {
		validate.OneOf(c, "telemetry.exporter", cfg.Telemetry.Exporter, "grpc", "http")
		c.NotBlank("telemetry.endpoint", cfg.Telemetry.Endpoint)
	}
	c.Fraction("telemetry.samplingRate", cfg.Telemetry.SamplingRate)

	return c.Err()
}
