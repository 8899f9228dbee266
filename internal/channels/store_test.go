// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package channels

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/dvbgraph/internal/pipeline/media"
	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const sample = `last_channel: 2
channels:
  - preference: 1
    name: Das Erste HD
    frequency_hz: 514000000
    bandwidth_hz: 8000000
    sid: 28106
    video_kind: h264
    video_pid: 5101
    width: 1920
    height: 1080
    frame_rate: 50000
    audio:
      - {kind: mpa, pid: 5102, language: deu, pes_type: 3}
      - {kind: ac3, pid: 5106, language: eng, pes_type: 6}
    subtitles:
      - {pid: 5105, language: deu}
    default_audio: 0
    default_subtitle: -1
    now_next: true
  - preference: 2
    name: Deutschlandfunk
    frequency_hz: 522000000
    bandwidth_hz: 8000000
    sid: 28012
    audio:
      - {kind: mpa, pid: 801}
    default_audio: 0
    default_subtitle: -1
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "channels.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestOpen_LoadsChannels(t *testing.T) {
	s, err := Open(writeFile(t, sample))
	require.NoError(t, err)

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].Preference)
	assert.Equal(t, 2, s.LastChannel())

	tv, err := s.FindByPreference(1)
	require.NoError(t, err)
	assert.Equal(t, model.KindH264, tv.VideoKind)
	assert.False(t, tv.IsRadio())
	assert.Equal(t, []model.StreamKind{model.KindMPA, model.KindAC3}, tv.AudioKinds())
	assert.Equal(t, media.Geometry{FrameRate: media.FPS50, Width: 1920, Height: 1080}, tv.Geometry())
	a, ok := tv.DefaultAudioStream()
	require.True(t, ok)
	assert.Equal(t, uint16(5102), a.PID)
	_, ok = tv.DefaultSubtitleStream()
	assert.False(t, ok)

	radio, err := s.FindByPreference(2)
	require.NoError(t, err)
	assert.True(t, radio.IsRadio())

	_, err = s.FindByPreference(9)
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, s.All())
	assert.Zero(t, s.LastChannel())
}

func TestOpen_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown field", "channels:\n  - preference: 1\n    colour: red\n", "colour"},
		{"duplicate preference", "channels:\n  - {preference: 1, name: a}\n  - {preference: 1, name: b}\n", "duplicate preference 1"},
		{"zero preference", "channels:\n  - {preference: 0, name: a}\n", "preference must be positive"},
		{"unknown kind", "channels:\n  - {preference: 1, video_kind: vp9}\n", "unknown stream kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(writeFile(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_KeepsPreviousOnError(t *testing.T) {
	path := writeFile(t, sample)
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("channels: [\n"), 0o600))
	require.Error(t, s.Load())
	assert.Len(t, s.All(), 2)
}

func TestSetLastChannel_Persists(t *testing.T) {
	path := writeFile(t, sample)
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.SetLastChannel(1))
	assert.Equal(t, 1, s.LastChannel())

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.LastChannel())
	assert.Equal(t, s.All(), reopened.All())
}

func TestSetLastChannel_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.yaml")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.SetLastChannel(3))
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := writeFile(t, sample)
	s, err := Open(path)
	require.NoError(t, err)
	s.DebounceDelay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	reloaded := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, func() { reloaded <- struct{}{} })
	}()

	updated := sample + "  - {preference: 3, name: arte HD, sid: 10301}\n"
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte(updated), 0o600)
		select {
		case <-reloaded:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	ch, err := s.FindByPreference(3)
	require.NoError(t, err)
	assert.Equal(t, "arte HD", ch.Name)

	cancel()
	require.NoError(t, <-done)
}
