// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldScanID    = "scan_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldOp        = "op"
	FieldStage     = "stage"
	FieldStatus    = "status"
	FieldStrategy  = "strategy"

	// Graph fields
	FieldNode      = "node"
	FieldPin       = "pin"
	FieldCandidate = "candidate"
	FieldMerit     = "merit"

	// Media / stream fields
	FieldStreamKind = "stream_kind"
	FieldFamily     = "family"
	FieldPID        = "pid"
	FieldLanguage   = "language"

	// Tuning fields
	FieldChannel     = "channel"
	FieldFrequencyHz = "frequency_hz"
	FieldBandwidthHz = "bandwidth_hz"
	FieldSymbolRate  = "symbol_rate"
	FieldAttempts    = "attempts"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path fields
	FieldPath = "path"
)
