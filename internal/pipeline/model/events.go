// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

// Bus topics for notifications to the UI/session host.
const (
	TopicChannelDiscovered = "channel.discovered"
	TopicVideoWindow       = "video.window"
	TopicLayoutRecalc      = "layout.recalc"
	TopicFeedback          = "feedback"
	TopicNowNext           = "guide.now_next"
)

// ChannelDiscovered is published for every named channel found during a scan.
type ChannelDiscovered struct {
	Name        string
	Frequency   uint32
	Bandwidth   uint32
	SymbolRate  uint32
	ServiceID   uint16
	PMTPID      uint16
	VideoKind   StreamKind
	VideoPID    uint16
	AudioKinds  []StreamKind
	AudioPIDs   []uint16
	Subtitles   int
	Description string
}

// VideoWindow asks the host to show or hide the video surface.
type VideoWindow struct {
	Hidden bool
}

// LayoutRecalc asks the host to recompute layout after a geometry change.
type LayoutRecalc struct {
	Width, Height uint32
}

// Feedback toggles periodic UI feedback (timers, OSD refresh).
type Feedback struct {
	Active bool
}

// NowNext carries the present/following guide events for a service.
type NowNext struct {
	ServiceID uint16
	Now       string
	Next      string
}
