// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"encoding/json"
	"sync"
)

const (
	maxRecentLogs   = 200
	maxLineBytes    = 16 * 1024
	maxPartialBytes = 64 * 1024
)

// Entry is one retained structured log line.
type Entry struct {
	Level     string
	Component string
	Event     string
	Message   string
	Fields    map[string]any
}

// BufferMetrics counts lines the recent-events buffer refused to keep.
type BufferMetrics struct {
	DroppedPartialOverflow uint64
	DroppedTooLargeLines   uint64
	DroppedMalformed       uint64
	DroppedIrrelevant      uint64
}

var (
	recentMu      sync.Mutex
	recent        []Entry
	bufferMetrics BufferMetrics
)

// structuredBufferWriter splits the JSON line stream and keeps the lines an
// operator would want to see after the fact: events and anything at warn or above.
type structuredBufferWriter struct {
	mu      sync.Mutex
	partial bytes.Buffer
}

func (w *structuredBufferWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data := p
	for len(data) > 0 {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			if w.partial.Len()+len(data) > maxPartialBytes {
				w.partial.Reset()
				recordDrop(func(m *BufferMetrics) { m.DroppedPartialOverflow++ })
				return len(p), nil
			}
			w.partial.Write(data)
			break
		}
		var line []byte
		if w.partial.Len() > 0 {
			w.partial.Write(data[:idx])
			line = append([]byte(nil), w.partial.Bytes()...)
			w.partial.Reset()
		} else {
			line = data[:idx]
		}
		data = data[idx+1:]
		ingest(line)
	}
	return len(p), nil
}

func ingest(line []byte) {
	if len(line) == 0 {
		return
	}
	if len(line) > maxLineBytes {
		recordDrop(func(m *BufferMetrics) { m.DroppedTooLargeLines++ })
		return
	}
	var fields map[string]any
	if err := json.Unmarshal(line, &fields); err != nil {
		recordDrop(func(m *BufferMetrics) { m.DroppedMalformed++ })
		return
	}

	e := Entry{Fields: fields}
	e.Level, _ = fields["level"].(string)
	e.Component, _ = fields[FieldComponent].(string)
	e.Event, _ = fields[FieldEvent].(string)
	e.Message, _ = fields["message"].(string)

	if !relevant(e) {
		recordDrop(func(m *BufferMetrics) { m.DroppedIrrelevant++ })
		return
	}

	recentMu.Lock()
	recent = append(recent, e)
	if len(recent) > maxRecentLogs {
		recent = append([]Entry(nil), recent[len(recent)-maxRecentLogs:]...)
	}
	recentMu.Unlock()
}

func relevant(e Entry) bool {
	switch e.Level {
	case "warn", "error", "fatal", "panic":
		return true
	}
	return e.Event != ""
}

func recordDrop(fn func(*BufferMetrics)) {
	recentMu.Lock()
	fn(&bufferMetrics)
	recentMu.Unlock()
}

// GetRecentLogs returns a copy of the retained entries, oldest first.
func GetRecentLogs() []Entry {
	recentMu.Lock()
	defer recentMu.Unlock()
	out := make([]Entry, len(recent))
	copy(out, recent)
	return out
}

// GetBufferMetrics returns a snapshot of the drop counters.
func GetBufferMetrics() BufferMetrics {
	recentMu.Lock()
	defer recentMu.Unlock()
	return bufferMetrics
}

// ClearRecentLogs empties the buffer and resets its counters.
func ClearRecentLogs() {
	recentMu.Lock()
	recent = nil
	bufferMetrics = BufferMetrics{}
	recentMu.Unlock()
}
