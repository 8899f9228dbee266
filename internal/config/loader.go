// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults, then
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := l.mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	cfg.Version = l.version

	if cfg.Channels.Path != "" {
		if abs, err := filepath.Abs(cfg.Channels.Path); err == nil {
			cfg.Channels.Path = abs
		}
	}

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("%w: %w", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, ErrMultipleDocuments
	}

	return &fileCfg, nil
}

func (l *Loader) mergeFileConfig(dst *AppConfig, src *FileConfig) error {
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.LogService != "" {
		dst.LogService = src.LogService
	}

	if src.Tuner.NetworkProvider != "" {
		dst.Tuner.NetworkProvider = src.Tuner.NetworkProvider
	}
	if src.Tuner.Device != "" {
		dst.Tuner.Device = src.Tuner.Device
	}
	if src.Tuner.Receiver != "" {
		dst.Tuner.Receiver = src.Tuner.Receiver
	}
	if src.Tuner.NetworkType != "" {
		dst.Tuner.NetworkType = model.NetworkType(strings.ToLower(src.Tuner.NetworkType))
	}

	if src.Graph.Rebuild != "" {
		dst.Graph.Rebuild = model.Policy(src.Graph.Rebuild)
	}
	if src.Graph.Stop != "" {
		dst.Graph.Stop = model.Policy(src.Graph.Stop)
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"tuning.pollInterval", src.Tuning.PollInterval, &dst.Tuning.PollInterval},
		{"tuning.stateTimeout", src.Tuning.StateTimeout, &dst.Tuning.StateTimeout},
		{"tuning.radioToTVDelay", src.Tuning.RadioToTVDelay, &dst.Tuning.RadioToTVDelay},
		{"modules.unloadInterval", src.Modules.UnloadInterval, &dst.Modules.UnloadInterval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	if src.Tuning.PollRetries != nil {
		dst.Tuning.PollRetries = *src.Tuning.PollRetries
	}

	if src.Channels.Path != "" {
		dst.Channels.Path = expandEnv(src.Channels.Path)
	}
	if src.Channels.Watch != nil {
		dst.Channels.Watch = *src.Channels.Watch
	}
	if src.Channels.LastChannel != nil {
		dst.Channels.LastChannel = *src.Channels.LastChannel
	}

	if src.Metrics.ListenAddr != "" {
		dst.Metrics.ListenAddr = src.Metrics.ListenAddr
	}

	if src.Telemetry.Enabled != nil {
		dst.Telemetry.Enabled = *src.Telemetry.Enabled
	}
	if src.Telemetry.Exporter != "" {
		dst.Telemetry.Exporter = src.Telemetry.Exporter
	}
	if src.Telemetry.Endpoint != "" {
		dst.Telemetry.Endpoint = expandEnv(src.Telemetry.Endpoint)
	}
	if src.Telemetry.SamplingRate != nil {
		dst.Telemetry.SamplingRate = *src.Telemetry.SamplingRate
	}
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = l.envString("DVBGRAPH_LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = l.envString("DVBGRAPH_LOG_SERVICE", cfg.LogService)

	cfg.Tuner.NetworkProvider = l.envString("DVBGRAPH_NETWORK_PROVIDER", cfg.Tuner.NetworkProvider)
	cfg.Tuner.Device = l.envString("DVBGRAPH_TUNER", cfg.Tuner.Device)
	cfg.Tuner.Receiver = l.envString("DVBGRAPH_RECEIVER", cfg.Tuner.Receiver)
	cfg.Tuner.NetworkType = model.NetworkType(strings.ToLower(
		l.envString("DVBGRAPH_NETWORK_TYPE", string(cfg.Tuner.NetworkType))))

	cfg.Graph.Rebuild = model.Policy(l.envString("DVBGRAPH_REBUILD", string(cfg.Graph.Rebuild)))
	cfg.Graph.Stop = model.Policy(l.envString("DVBGRAPH_STOP", string(cfg.Graph.Stop)))

	cfg.Tuning.PollInterval = l.envDuration("DVBGRAPH_POLL_INTERVAL", cfg.Tuning.PollInterval)
	cfg.Tuning.PollRetries = l.envInt("DVBGRAPH_POLL_RETRIES", cfg.Tuning.PollRetries)
	cfg.Tuning.StateTimeout = l.envDuration("DVBGRAPH_STATE_TIMEOUT", cfg.Tuning.StateTimeout)
	cfg.Tuning.RadioToTVDelay = l.envDuration("DVBGRAPH_RADIO_TO_TV_DELAY", cfg.Tuning.RadioToTVDelay)

	cfg.Channels.Path = l.envString("DVBGRAPH_CHANNELS", cfg.Channels.Path)
	cfg.Channels.Watch = l.envBool("DVBGRAPH_CHANNELS_WATCH", cfg.Channels.Watch)
	cfg.Channels.LastChannel = l.envInt("DVBGRAPH_LAST_CHANNEL", cfg.Channels.LastChannel)

	cfg.Modules.UnloadInterval = l.envDuration("DVBGRAPH_MODULE_UNLOAD_INTERVAL", cfg.Modules.UnloadInterval)

	cfg.Metrics.ListenAddr = l.envString("DVBGRAPH_METRICS_LISTEN", cfg.Metrics.ListenAddr)

	cfg.Telemetry.Enabled = l.envBool("DVBGRAPH_OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString("DVBGRAPH_OTEL_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("DVBGRAPH_OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat("DVBGRAPH_OTEL_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
}
