// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"fmt"
	"strings"
)

// RunState is the pipeline run state. Only the run-state controller moves it.
type RunState string

const (
	RunStopped RunState = "STOPPED"
	RunPaused  RunState = "PAUSED"
	RunRunning RunState = "RUNNING"
)

// Policy governs when the graph is rebuilt or stopped on a channel change.
type Policy string

const (
	PolicyNever         Policy = "never"
	PolicyWhenSwitching Policy = "when_switching"
	PolicyAlways        Policy = "always"
)

// Valid reports whether p is one of the three known policies.
func (p Policy) Valid() bool {
	switch p {
	case PolicyNever, PolicyWhenSwitching, PolicyAlways:
		return true
	}
	return false
}

// NetworkType selects the section subtypes declared for TIF/EPG outputs.
type NetworkType string

const (
	NetworkDVB  NetworkType = "dvb"
	NetworkATSC NetworkType = "atsc"
)

// Family groups stream kinds by how they are routed.
type Family string

const (
	FamilyVideo    Family = "video"
	FamilyAudio    Family = "audio"
	FamilySection  Family = "section"
	FamilySubtitle Family = "subtitle"
)

// StreamKind is the logical elementary stream carried by one demultiplexer output.
type StreamKind string

const (
	KindUnknown StreamKind = ""
	KindMPV     StreamKind = "MPV"
	KindH264    StreamKind = "H264"
	KindHEVC    StreamKind = "HEVC"
	KindMPA     StreamKind = "MPA"
	KindAC3     StreamKind = "AC3"
	KindEAC3    StreamKind = "EAC3"
	KindADTS    StreamKind = "ADTS"
	KindLATM    StreamKind = "LATM"
	KindPSI     StreamKind = "PSI"
	KindTIF     StreamKind = "TIF"
	KindEPG     StreamKind = "EPG"
	KindSUB     StreamKind = "SUB"
)

// StreamKinds lists every kind in declaration order. Assembly iterates in this order.
var StreamKinds = []StreamKind{
	KindMPV, KindH264, KindHEVC,
	KindMPA, KindAC3, KindEAC3, KindADTS, KindLATM,
	KindPSI, KindTIF, KindEPG,
	KindSUB,
}

// Family returns the routing family of k.
func (k StreamKind) Family() Family {
	switch k {
	case KindMPV, KindH264, KindHEVC:
		return FamilyVideo
	case KindMPA, KindAC3, KindEAC3, KindADTS, KindLATM:
		return FamilyAudio
	case KindSUB:
		return FamilySubtitle
	default:
		return FamilySection
	}
}

func (k StreamKind) IsVideo() bool { return k.Family() == FamilyVideo }
func (k StreamKind) IsAudio() bool { return k != KindUnknown && k.Family() == FamilyAudio }

// PinName is the demultiplexer output name used for k.
func (k StreamKind) PinName() string {
	if k == KindHEVC {
		return "HEVC"
	}
	return strings.ToLower(string(k))
}

// ParseStreamKind accepts the kind name case-insensitively. The empty string is KindUnknown.
func ParseStreamKind(s string) (StreamKind, error) {
	if s == "" {
		return KindUnknown, nil
	}
	up := StreamKind(strings.ToUpper(s))
	for _, k := range StreamKinds {
		if k == up {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown stream kind %q", s)
}

// UnmarshalText lets kinds be written by name in YAML channel files.
func (k *StreamKind) UnmarshalText(b []byte) error {
	parsed, err := ParseStreamKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
