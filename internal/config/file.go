// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

// FileConfig represents the YAML configuration structure.
// Pointers distinguish "not set" from an explicit zero or false.
type FileConfig struct {
	LogLevel   string `yaml:"logLevel,omitempty"`
	LogService string `yaml:"logService,omitempty"`

	Tuner     TunerFileConfig     `yaml:"tuner,omitempty"`
	Graph     GraphFileConfig     `yaml:"graph,omitempty"`
	Tuning    TuningFileConfig    `yaml:"tuning,omitempty"`
	Channels  ChannelsFileConfig  `yaml:"channels,omitempty"`
	Modules   ModulesFileConfig   `yaml:"modules,omitempty"`
	Metrics   MetricsFileConfig   `yaml:"metrics,omitempty"`
	Telemetry TelemetryFileConfig `yaml:"telemetry,omitempty"`
}

type TunerFileConfig struct {
	NetworkProvider string `yaml:"networkProvider,omitempty"`
	Device          string `yaml:"device,omitempty"`
	Receiver        string `yaml:"receiver,omitempty"`
	NetworkType     string `yaml:"networkType,omitempty"` // "dvb" or "atsc"
}

type GraphFileConfig struct {
	Rebuild string `yaml:"rebuild,omitempty"` // never, when_switching, always
	Stop    string `yaml:"stop,omitempty"`
}

type TuningFileConfig struct {
	PollInterval   string `yaml:"pollInterval,omitempty"` // e.g. "50ms"
	PollRetries    *int   `yaml:"pollRetries,omitempty"`
	StateTimeout   string `yaml:"stateTimeout,omitempty"`
	RadioToTVDelay string `yaml:"radioToTVDelay,omitempty"`
}

type ChannelsFileConfig struct {
	Path        string `yaml:"path,omitempty"`
	Watch       *bool  `yaml:"watch,omitempty"`
	LastChannel *int   `yaml:"lastChannel,omitempty"`
}

type ModulesFileConfig struct {
	UnloadInterval string `yaml:"unloadInterval,omitempty"`
}

type MetricsFileConfig struct {
	ListenAddr string `yaml:"listenAddr,omitempty"`
}

type TelemetryFileConfig struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
}
