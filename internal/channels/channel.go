// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package channels

import (
	"github.com/ManuGH/dvbgraph/internal/pipeline/media"
	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
)

// AudioStream is one audio track of a channel.
type AudioStream struct {
	Kind     model.StreamKind `yaml:"kind"`
	PID      uint16           `yaml:"pid"`
	Language string           `yaml:"language,omitempty"`
	// PESType is the PMT stream type the track was found with.
	PESType uint8 `yaml:"pes_type,omitempty"`
}

// SubtitleStream is one DVB subtitle track.
type SubtitleStream struct {
	PID      uint16 `yaml:"pid"`
	Language string `yaml:"language,omitempty"`
}

// Channel is a tunable service as stored in the channel file.
type Channel struct {
	Preference int    `yaml:"preference"`
	Name       string `yaml:"name"`

	Frequency  uint32 `yaml:"frequency_hz"`
	Bandwidth  uint32 `yaml:"bandwidth_hz"`
	SymbolRate uint32 `yaml:"symbol_rate,omitempty"`

	ONID   uint16 `yaml:"onid,omitempty"`
	TSID   uint16 `yaml:"tsid,omitempty"`
	SID    uint16 `yaml:"sid"`
	PMTPID uint16 `yaml:"pmt_pid,omitempty"`

	VideoKind model.StreamKind `yaml:"video_kind,omitempty"`
	VideoPID  uint16           `yaml:"video_pid,omitempty"`
	Width     uint32           `yaml:"width,omitempty"`
	Height    uint32           `yaml:"height,omitempty"`
	AspectX   uint32           `yaml:"aspect_x,omitempty"`
	AspectY   uint32           `yaml:"aspect_y,omitempty"`
	// FrameRate is in millihertz (25 fps = 25000).
	FrameRate media.FrameRate `yaml:"frame_rate,omitempty"`

	Audio     []AudioStream    `yaml:"audio,omitempty"`
	Subtitles []SubtitleStream `yaml:"subtitles,omitempty"`
	// DefaultAudio indexes Audio. DefaultSubtitle indexes Subtitles; -1
	// starts without subtitles.
	DefaultAudio    int `yaml:"default_audio"`
	DefaultSubtitle int `yaml:"default_subtitle"`

	NowNext bool `yaml:"now_next,omitempty"`
}

// IsRadio reports whether the channel carries no video.
func (c Channel) IsRadio() bool {
	return c.VideoKind == model.KindUnknown || c.VideoPID == 0
}

// Geometry is the picture description used to refresh the video header.
func (c Channel) Geometry() media.Geometry {
	return media.Geometry{
		FrameRate: c.FrameRate,
		Width:     c.Width,
		Height:    c.Height,
		AspectX:   c.AspectX,
		AspectY:   c.AspectY,
	}
}

// DefaultAudioStream returns the track selected when the channel starts.
func (c Channel) DefaultAudioStream() (AudioStream, bool) {
	if c.DefaultAudio < 0 || c.DefaultAudio >= len(c.Audio) {
		if len(c.Audio) == 0 {
			return AudioStream{}, false
		}
		return c.Audio[0], true
	}
	return c.Audio[c.DefaultAudio], true
}

// DefaultSubtitleStream returns the subtitle track shown at start, if any.
func (c Channel) DefaultSubtitleStream() (SubtitleStream, bool) {
	if c.DefaultSubtitle < 0 || c.DefaultSubtitle >= len(c.Subtitles) {
		return SubtitleStream{}, false
	}
	return c.Subtitles[c.DefaultSubtitle], true
}

// AudioKinds lists the distinct audio kinds in track order.
func (c Channel) AudioKinds() []model.StreamKind {
	var out []model.StreamKind
	seen := make(map[model.StreamKind]bool)
	for _, a := range c.Audio {
		if !seen[a.Kind] {
			seen[a.Kind] = true
			out = append(out, a.Kind)
		}
	}
	return out
}
