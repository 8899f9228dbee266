// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config provides configuration management for dvbgraph.
package config

import (
	"time"

	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
	"github.com/ManuGH/dvbgraph/internal/telemetry"
)

const (
	DefaultNetworkProvider = "Microsoft Network Provider"
	DefaultLogService      = "dvbgraph"
)

// AppConfig is the resolved configuration after defaults, file and
// environment have been applied.
type AppConfig struct {
	Version    string
	LogLevel   string
	LogService string

	Tuner     TunerConfig
	Graph     GraphConfig
	Tuning    TuningConfig
	Channels  ChannelsConfig
	Modules   ModulesConfig
	Metrics   MetricsConfig
	Telemetry TelemetryConfig
}

// TunerConfig names the devices the pipeline is assembled from. Device and
// Receiver are matched against display names; empty matches any.
type TunerConfig struct {
	NetworkProvider string
	Device          string
	Receiver        string
	NetworkType     model.NetworkType
}

// GraphConfig holds the rebuild and stop policies applied on channel change.
type GraphConfig struct {
	Rebuild model.Policy
	Stop    model.Policy
}

type TuningConfig struct {
	PollInterval   time.Duration
	PollRetries    int
	StateTimeout   time.Duration
	RadioToTVDelay time.Duration
}

type ChannelsConfig struct {
	Path        string
	Watch       bool
	LastChannel int
}

type ModulesConfig struct {
	UnloadInterval time.Duration
}

// MetricsConfig holds the Prometheus endpoint. An empty ListenAddr disables it.
type MetricsConfig struct {
	ListenAddr string
}

type TelemetryConfig struct {
	Enabled      bool
	Exporter     string // "grpc" or "http"
	Endpoint     string
	SamplingRate float64
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:   "info",
		LogService: DefaultLogService,
		Tuner: TunerConfig{
			NetworkProvider: DefaultNetworkProvider,
			NetworkType:     model.NetworkDVB,
		},
		Graph: GraphConfig{
			Rebuild: model.PolicyWhenSwitching,
			Stop:    model.PolicyWhenSwitching,
		},
		Tuning: TuningConfig{
			PollInterval:   50 * time.Millisecond,
			PollRetries:    50,
			StateTimeout:   500 * time.Millisecond,
			RadioToTVDelay: 1800 * time.Millisecond,
		},
		Modules: ModulesConfig{
			UnloadInterval: 60 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}

// TracingConfig converts the telemetry section for telemetry.NewProvider.
func (c AppConfig) TracingConfig() telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Telemetry.Enabled,
		ServiceName:    c.LogService,
		ServiceVersion: c.Version,
		ExporterType:   c.Telemetry.Exporter,
		Endpoint:       c.Telemetry.Endpoint,
		SamplingRate:   c.Telemetry.SamplingRate,
	}
}
