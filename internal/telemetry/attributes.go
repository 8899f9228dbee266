// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the pipeline.
const (
	// Stream attributes
	StreamKindKey   = "stream.kind"
	StreamFamilyKey = "stream.family"
	StreamPIDKey    = "stream.pid"

	// Tuning attributes
	TuneFrequencyKey  = "tune.frequency_hz"
	TuneBandwidthKey  = "tune.bandwidth_hz"
	TuneSymbolRateKey = "tune.symbol_rate"

	// Channel attributes
	ChannelPreferenceKey = "channel.preference"
	ChannelNameKey       = "channel.name"

	// Assembly attributes
	AssemblyStageKey = "assembly.stage"

	// Error attributes
	ErrorKey      = "error"
	ErrorClassKey = "error.class"
)

// StreamAttributes creates stream-switch span attributes. A zero pid is omitted.
func StreamAttributes(kind, family string, pid uint16) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if kind != "" {
		attrs = append(attrs, attribute.String(StreamKindKey, kind))
	}
	if family != "" {
		attrs = append(attrs, attribute.String(StreamFamilyKey, family))
	}
	if pid != 0 {
		attrs = append(attrs, attribute.Int(StreamPIDKey, int(pid)))
	}
	return attrs
}

// TuneAttributes creates tuning span attributes.
func TuneAttributes(frequency, bandwidth, symbolRate uint32) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64(TuneFrequencyKey, int64(frequency)),
		attribute.Int64(TuneBandwidthKey, int64(bandwidth)),
		attribute.Int64(TuneSymbolRateKey, int64(symbolRate)),
	}
}

// ChannelAttributes creates channel-apply span attributes.
func ChannelAttributes(preference int, name string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(ChannelPreferenceKey, preference),
		attribute.String(ChannelNameKey, name),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(class string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorClassKey, class),
	}
}
