// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package assembler

import "fmt"

// Stage names a mandatory assembly step.
type Stage string

const (
	StageNetworkProvider Stage = "network_provider"
	StageTuner           Stage = "tuner"
	StageConnectTuner    Stage = "connect_tuner"
	StageTopology        Stage = "topology"
	StageDemultiplexer   Stage = "demultiplexer"
	StageReceiver        Stage = "receiver"
	StageConnectReceiver Stage = "connect_receiver"
)

// User-facing diagnostic ids, one per fatal stage.
const (
	DiagNoNetworkProvider    = "no_network_provider"
	DiagCreateTuner          = "create_tuner"
	DiagConnectTuner         = "connect_tuner"
	DiagNoStatistics         = "no_statistics"
	DiagDemultiplexer        = "demultiplexer"
	DiagCreateReceiver       = "create_receiver"
	DiagConnectTunerReceiver = "connect_tuner_receiver"
)

var diagnostics = map[Stage]string{
	StageNetworkProvider: DiagNoNetworkProvider,
	StageTuner:           DiagCreateTuner,
	StageConnectTuner:    DiagConnectTuner,
	StageTopology:        DiagNoStatistics,
	StageDemultiplexer:   DiagDemultiplexer,
	StageReceiver:        DiagCreateReceiver,
	StageConnectReceiver: DiagConnectTunerReceiver,
}

// StageError is a fatal assembly failure. Diagnostic is the message id the
// UI host renders.
type StageError struct {
	Stage      Stage
	Diagnostic string
	Err        error
}

func stageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Diagnostic: diagnostics[stage], Err: err}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("assembly failed at %s (%s): %v", e.Stage, e.Diagnostic, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
