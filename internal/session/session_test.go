// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/dvbgraph/internal/channels"
	"github.com/ManuGH/dvbgraph/internal/config"
	"github.com/ManuGH/dvbgraph/internal/pipeline/bus"
	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/graph/memgraph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/media"
	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
	"github.com/ManuGH/dvbgraph/internal/pipeline/registry"
	"github.com/ManuGH/dvbgraph/internal/pipeline/scan"
	"github.com/ManuGH/dvbgraph/internal/pipeline/streams"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const channelFile = `last_channel: 1
channels:
  - preference: 1
    name: Das Erste
    frequency_hz: 514000000
    bandwidth_hz: 8000000
    sid: 10
    video_kind: mpv
    video_pid: 101
    width: 720
    height: 576
    audio:
      - {kind: mpa, pid: 102, language: deu, pes_type: 4}
      - {kind: ac3, pid: 103, language: eng, pes_type: 129}
    subtitles:
      - {pid: 104, language: deu}
    default_audio: 0
    default_subtitle: -1
    now_next: true
  - preference: 2
    name: Das Erste HD
    frequency_hz: 522000000
    bandwidth_hz: 8000000
    sid: 20
    video_kind: h264
    video_pid: 201
    width: 1920
    height: 1080
    audio:
      - {kind: mpa, pid: 202, language: deu}
    default_audio: 0
    default_subtitle: -1
  - preference: 3
    name: Deutschlandfunk
    frequency_hz: 514000000
    bandwidth_hz: 8000000
    sid: 30
    audio:
      - {kind: mpa, pid: 301}
    default_audio: 0
    default_subtitle: -1
  - preference: 4
    name: Testbild
    frequency_hz: 514000000
    bandwidth_hz: 8000000
    sid: 40
    video_kind: mpv
    video_pid: 401
    default_audio: -1
    default_subtitle: -1
`

var (
	nv12 = media.Capability{Major: media.MajorVideo, Minor: media.MinorNV12}
	pcm  = media.Capability{Major: media.MajorAudio, Minor: media.MinorPCM}
)

const (
	providerName = "Microsoft DVBT Network Provider"
	tunerName    = "@device:pnp:tuner0"
)

type fixture struct {
	g       *memgraph.Graph
	demux   *memgraph.Demux
	tuner   *memgraph.Tuner
	store   *channels.Store
	bus     *bus.MemoryBus
	scanner *scan.Manager
	guide   *fakeGuide
	cfg     config.AppConfig
	deps    Deps
}

type fakeGuide struct {
	nn  model.NowNext
	err error
}

func (g *fakeGuide) NowNext(_ context.Context, sid uint16) (model.NowNext, error) {
	if g.err != nil {
		return model.NowNext{}, g.err
	}
	nn := g.nn
	nn.ServiceID = sid
	return nn, nil
}

func newFixture(t *testing.T, rebuild model.Policy) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "channels.yaml")
	require.NoError(t, os.WriteFile(path, []byte(channelFile), 0o600))
	store, err := channels.Open(path)
	require.NoError(t, err)

	f := &fixture{
		g:     memgraph.New(),
		demux: memgraph.NewDemux("demux", nil),
		tuner: memgraph.NewTuner("tuner", memgraph.TunerOptions{DirectTransport: true}),
		store: store,
		bus:   bus.NewMemoryBus(),
		guide: &fakeGuide{nn: model.NowNext{Now: "Tagesschau", Next: "Wetter"}},
	}
	f.scanner = scan.NewManager(nil, f.bus)
	f.scanner.SettleDelay = 0

	f.cfg = config.Defaults()
	f.cfg.Tuner.NetworkProvider = providerName
	f.cfg.Tuner.Device = tunerName
	f.cfg.Graph.Rebuild = rebuild
	f.cfg.Tuning.PollInterval = time.Millisecond
	f.cfg.Tuning.RadioToTVDelay = 0

	devices := memgraph.NewDevices()
	devices.Register(media.CategoryNetworkProvider,
		registry.Device{DisplayName: "@device:sw:provider", FriendlyName: providerName},
		func() graph.Node { return memgraph.NewNetworkProvider("provider") })
	devices.Register(media.CategoryNetworkTuner,
		registry.Device{DisplayName: tunerName, FriendlyName: "DVB-T Tuner", ID: uuid.New()},
		func() graph.Node { return f.tuner })

	catalog := streams.DefaultCatalog(model.NetworkDVB, media.Geometry{})
	var transforms []*registry.Descriptor
	add := func(name string, in media.Capability, build func() graph.Node) {
		d := &registry.Descriptor{
			ID:    uuid.New(),
			Name:  name,
			Merit: registry.MeritNormal,
			Source: registry.SourceFactory{New: func(context.Context) (graph.Node, error) {
				return build(), nil
			}},
		}
		d.AddType(in.Major, in.Minor)
		transforms = append(transforms, d)
	}
	for _, k := range []model.StreamKind{model.KindMPV, model.KindH264, model.KindHEVC} {
		d, _ := catalog.Get(k)
		add("dec-"+string(k), d.MediaType.Capability, func() graph.Node {
			return memgraph.NewTransform("dec-"+string(k), []media.MediaType{d.MediaType}, []media.MediaType{{Capability: nv12}})
		})
	}
	for _, k := range []model.StreamKind{model.KindMPA, model.KindAC3, model.KindEAC3, model.KindADTS, model.KindLATM} {
		d, _ := catalog.Get(k)
		add("dec-"+string(k), d.MediaType.Capability, func() graph.Node {
			return memgraph.NewTransform("dec-"+string(k), []media.MediaType{d.MediaType}, []media.MediaType{{Capability: pcm}})
		})
	}
	add("video renderer", nv12, func() graph.Node {
		return memgraph.NewSink("video renderer", media.MediaType{Capability: nv12})
	})
	add("audio renderer", pcm, func() graph.Node {
		return memgraph.NewSink("audio renderer", media.MediaType{Capability: pcm})
	})
	add("sections", media.Capability{Major: media.MajorMPEG2Sections}, func() graph.Node {
		return memgraph.NewSectionSink("sections", nil)
	})
	add("subtitle decoder", media.DVBSubtitles().Capability, func() graph.Node {
		return memgraph.NewSink("subtitle decoder", media.DVBSubtitles())
	})

	f.deps = Deps{
		Runtime:    f.g,
		Devices:    devices,
		Env:        registry.Environment{Devices: devices},
		Transforms: transforms,
		Demux: func(context.Context) (graph.Demultiplexer, error) {
			return f.demux, nil
		},
		Channels: store,
		Bus:      f.bus,
		Scanner:  f.scanner,
		Guide:    f.guide,
	}
	return f
}

func (f *fixture) open(t *testing.T) *Session {
	t.Helper()
	s, err := New(f.cfg, f.deps)
	require.NoError(t, err)
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func (f *fixture) subscribe(t *testing.T, topic string) bus.Subscriber {
	t.Helper()
	sub, err := f.bus.Subscribe(context.Background(), topic)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })
	return sub
}

// rendererOf names the node fed by kind's decoder.
func rendererOf(s *Session, kind model.StreamKind) string {
	dec := graph.PeerNode(s.Table().Output(kind))
	if dec == nil {
		return ""
	}
	next := graph.PeerNode(graph.FirstPin(dec, graph.Output))
	if next == nil {
		return ""
	}
	return next.Name()
}

func drain(sub bus.Subscriber) []bus.Message {
	var out []bus.Message
	for {
		select {
		case m := <-sub.C():
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestNew_RequiresRuntimeAndStore(t *testing.T) {
	f := newFixture(t, model.PolicyNever)
	deps := f.deps
	deps.Runtime = nil
	_, err := New(f.cfg, deps)
	assert.ErrorIs(t, err, graph.ErrPointer)

	deps = f.deps
	deps.Channels = nil
	_, err = New(f.cfg, deps)
	assert.ErrorIs(t, err, graph.ErrPointer)
}

func TestOpen(t *testing.T) {
	f := newFixture(t, model.PolicyWhenSwitching)
	windows := f.subscribe(t, model.TopicVideoWindow)
	layouts := f.subscribe(t, model.TopicLayoutRecalc)

	s := f.open(t)
	require.NotNil(t, s.Pipeline())
	assert.Equal(t, "video renderer", rendererOf(s, model.KindMPV))
	assert.Equal(t, "audio renderer", rendererOf(s, model.KindMPA))
	assert.Nil(t, s.Table().Output(model.KindH264), "when_switching builds only the current video kind")

	assert.Equal(t, []bus.Message{model.VideoWindow{Hidden: false}}, drain(windows))
	assert.Equal(t, []bus.Message{model.LayoutRecalc{Width: 720, Height: 576}}, drain(layouts))

	err := s.Open(context.Background())
	assert.ErrorIs(t, err, graph.ErrInvalidState)
}

func TestNotOpen(t *testing.T) {
	f := newFixture(t, model.PolicyNever)
	s, err := New(f.cfg, f.deps)
	require.NoError(t, err)

	assert.ErrorIs(t, s.SetChannel(context.Background(), 1), ErrNotOpen)
	assert.ErrorIs(t, s.EnableStream(context.Background(), 0), ErrNotOpen)
	_, err = s.Stats(context.Background())
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = s.Scan(context.Background(), 514000000, 8000000, 0)
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.NoError(t, s.Close(context.Background()), "closing a session never opened")
}

func TestSetChannel_UnknownPreference(t *testing.T) {
	f := newFixture(t, model.PolicyNever)
	s := f.open(t)
	assert.ErrorIs(t, s.SetChannel(context.Background(), 99), channels.ErrChannelNotFound)
}

func TestSetChannel_TunesAndMaps(t *testing.T) {
	f := newFixture(t, model.PolicyWhenSwitching)
	s := f.open(t)

	require.NoError(t, s.SetChannel(context.Background(), 1))

	assert.Equal(t, []uint16{101}, f.demux.Mapped("mpv"))
	assert.Equal(t, []uint16{102}, f.demux.Mapped("mpa"))
	assert.Empty(t, f.demux.Mapped("sub"), "default subtitle is off")

	v, _ := f.tuner.Frequency.Value("frequency")
	assert.Equal(t, uint32(514000), v)
	v, _ = f.tuner.Frequency.Value("bandwidth")
	assert.Equal(t, uint32(8), v)

	state, err := s.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunRunning, state)
	assert.Equal(t, 1, f.store.LastChannel())
	assert.Positive(t, f.demux.Retyped("mpv"), "video output refreshed from channel geometry")

	in := graph.FirstPin(graph.PeerNode(s.Table().Output(model.KindMPA)), graph.Input).(*memgraph.Pin)
	assert.Equal(t, 1, in.Flushes())
}

func TestSetChannel_RebuildGate(t *testing.T) {
	tests := []struct {
		name    string
		rebuild model.Policy
		pref    int
		wantErr error
	}{
		{name: "when_switching same video kind", rebuild: model.PolicyWhenSwitching, pref: 3},
		{name: "when_switching new video kind", rebuild: model.PolicyWhenSwitching, pref: 2, wantErr: ErrRebuildRequired},
		{name: "never switches video kind", rebuild: model.PolicyNever, pref: 2},
		{name: "audio presence flips", rebuild: model.PolicyNever, pref: 4, wantErr: ErrRebuildRequired},
		{name: "always same channel", rebuild: model.PolicyAlways, pref: 1},
		{name: "always other channel", rebuild: model.PolicyAlways, pref: 3, wantErr: ErrRebuildRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.rebuild)
			s := f.open(t)

			err := s.SetChannel(context.Background(), tt.pref)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, f.demux.Mapped("mpa"), "nothing mapped when a rebuild is needed")
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.pref, f.store.LastChannel(), "preference remembered either way")
		})
	}
}

func TestSetChannel_SwitchesVideoKind(t *testing.T) {
	f := newFixture(t, model.PolicyNever)
	s := f.open(t)
	require.NoError(t, s.SetChannel(context.Background(), 1))
	require.Equal(t, "video renderer", rendererOf(s, model.KindMPV))

	require.NoError(t, s.SetChannel(context.Background(), 2))

	assert.Equal(t, "video renderer", rendererOf(s, model.KindH264))
	assert.Empty(t, rendererOf(s, model.KindMPV))
	assert.Equal(t, []uint16{201}, f.demux.Mapped("h264"))
	assert.Empty(t, f.demux.Mapped("mpv"), "previous mappings cleared")
	assert.Equal(t, []uint16{202}, f.demux.Mapped("mpa"))

	state, err := s.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunRunning, state)
}

func TestSetChannel_RadioHidesVideo(t *testing.T) {
	f := newFixture(t, model.PolicyNever)
	s := f.open(t)
	windows := f.subscribe(t, model.TopicVideoWindow)

	require.NoError(t, s.SetChannel(context.Background(), 3))
	assert.Empty(t, f.demux.Mapped("mpv"))
	assert.Equal(t, []uint16{301}, f.demux.Mapped("mpa"))
	assert.Equal(t, []bus.Message{model.VideoWindow{Hidden: true}}, drain(windows))

	require.NoError(t, s.SetChannel(context.Background(), 1))
	assert.Equal(t, []bus.Message{model.VideoWindow{Hidden: false}}, drain(windows))
	assert.Equal(t, []uint16{101}, f.demux.Mapped("mpv"))
}

func TestSetChannel_StopAlways(t *testing.T) {
	f := newFixture(t, model.PolicyNever)
	f.cfg.Graph.Stop = model.PolicyAlways
	s := f.open(t)
	require.NoError(t, s.SetChannel(context.Background(), 1))

	f.g.ResetCalls()
	require.NoError(t, s.SetChannel(context.Background(), 3))
	assert.Contains(t, f.g.Calls(), "state "+string(model.RunStopped))
	state, err := s.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunRunning, state)
}

func TestStreamInfo(t *testing.T) {
	f := newFixture(t, model.PolicyWhenSwitching)
	s := f.open(t)
	require.NoError(t, s.SetChannel(context.Background(), 1))

	require.Equal(t, 4, s.StreamCount())

	info, err := s.StreamInfo(0)
	require.NoError(t, err)
	assert.Equal(t, GroupAudio, info.Group)
	assert.Equal(t, "MPEG-2 [German]", info.Name)
	assert.Equal(t, "de", info.Language.String())
	assert.True(t, info.Enabled)
	assert.Equal(t, uint16(102), info.PID)

	info, err = s.StreamInfo(1)
	require.NoError(t, err)
	assert.Equal(t, "Dolby Digital [English]", info.Name)
	assert.False(t, info.Enabled)

	info, err = s.StreamInfo(2)
	require.NoError(t, err)
	assert.Equal(t, GroupSubtitle, info.Group)
	assert.Equal(t, "Subtitle [German]", info.Name)
	assert.False(t, info.Enabled)

	info, err = s.StreamInfo(3)
	require.NoError(t, err)
	assert.Equal(t, noSubtitlesName, info.Name)
	assert.True(t, info.Enabled)

	_, err = s.StreamInfo(4)
	assert.ErrorIs(t, err, ErrInvalidStream)
	_, err = s.StreamInfo(-1)
	assert.ErrorIs(t, err, ErrInvalidStream)
}

func TestStreamInfo_NoSubtitleEntryWithoutSubtitles(t *testing.T) {
	f := newFixture(t, model.PolicyNever)
	s := f.open(t)
	require.NoError(t, s.SetChannel(context.Background(), 3))

	assert.Equal(t, 1, s.StreamCount())
	info, err := s.StreamInfo(0)
	require.NoError(t, err)
	assert.Equal(t, string(model.KindMPA), info.Name, "unknown stream type falls back to the kind")
}

func TestEnableStream_Subtitles(t *testing.T) {
	f := newFixture(t, model.PolicyWhenSwitching)
	s := f.open(t)
	require.NoError(t, s.SetChannel(context.Background(), 1))

	require.NoError(t, s.EnableStream(context.Background(), 2))
	assert.Equal(t, []uint16{104}, f.demux.Mapped("sub"))
	info, err := s.StreamInfo(3)
	require.NoError(t, err)
	assert.False(t, info.Enabled)

	require.NoError(t, s.EnableStream(context.Background(), 3))
	assert.Empty(t, f.demux.Mapped("sub"))
	require.NoError(t, s.EnableStream(context.Background(), 3), "disabling twice succeeds")

	assert.ErrorIs(t, s.EnableStream(context.Background(), 4), ErrInvalidStream)
}

func TestEnableStream_AudioSwitchesDecoder(t *testing.T) {
	f := newFixture(t, model.PolicyWhenSwitching)
	s := f.open(t)
	require.NoError(t, s.SetChannel(context.Background(), 1))

	require.NoError(t, s.EnableStream(context.Background(), 1))

	assert.Equal(t, []uint16{103}, f.demux.Mapped("ac3"))
	assert.Empty(t, f.demux.Mapped("mpa"))
	assert.Equal(t, "audio renderer", rendererOf(s, model.KindAC3))
	assert.Empty(t, rendererOf(s, model.KindMPA))

	state, err := s.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunRunning, state, "run state restored")

	info, err := s.StreamInfo(1)
	require.NoError(t, err)
	assert.True(t, info.Enabled)

	require.NoError(t, s.EnableStream(context.Background(), 0))
	assert.Equal(t, []uint16{102}, f.demux.Mapped("mpa"))
	assert.Equal(t, "audio renderer", rendererOf(s, model.KindMPA))
}

func TestEnableStream_StopAndFlushOnlyOnKindChange(t *testing.T) {
	f := newFixture(t, model.PolicyWhenSwitching)
	f.cfg.Graph.Stop = model.PolicyAlways
	s := f.open(t)
	require.NoError(t, s.SetChannel(context.Background(), 1))

	flushes := func(kind model.StreamKind) int {
		return graph.FirstPin(graph.PeerNode(s.Table().Output(kind)), graph.Input).(*memgraph.Pin).Flushes()
	}
	mpaFlushes := flushes(model.KindMPA)

	f.g.ResetCalls()
	require.NoError(t, s.EnableStream(context.Background(), 0))
	assert.NotContains(t, f.g.Calls(), "state "+string(model.RunStopped), "same kind keeps running")
	assert.Equal(t, mpaFlushes, flushes(model.KindMPA), "same kind is not flushed")
	assert.Equal(t, []uint16{102}, f.demux.Mapped("mpa"))

	f.g.ResetCalls()
	require.NoError(t, s.EnableStream(context.Background(), 1))
	assert.Contains(t, f.g.Calls(), "state "+string(model.RunStopped))
	assert.Equal(t, 1, flushes(model.KindAC3))
	state, err := s.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunRunning, state)
}

func TestFlush(t *testing.T) {
	f := newFixture(t, model.PolicyWhenSwitching)
	s := f.open(t)

	require.NoError(t, s.Flush(context.Background(), model.KindMPV, model.KindMPA))
	for _, k := range []model.StreamKind{model.KindMPV, model.KindMPA, model.KindSUB} {
		in := graph.FirstPin(graph.PeerNode(s.Table().Output(k)), graph.Input).(*memgraph.Pin)
		assert.Equal(t, 1, in.Flushes(), "%s", k)
	}
}

func TestScan(t *testing.T) {
	f := newFixture(t, model.PolicyWhenSwitching)
	s := f.open(t)
	discovered := f.subscribe(t, model.TopicChannelDiscovered)

	sink, ok := graph.PeerNode(s.Table().Output(model.KindPSI)).(*memgraph.SectionSink)
	require.True(t, ok)
	sink.SetTransport(memgraph.BuildTransport(1, memgraph.Program{
		Number: 10,
		PMTPID: 0x100,
		PCRPID: 101,
		Streams: []memgraph.ElementaryStream{
			{Type: 0x02, PID: 101},
			{Type: 0x03, PID: 102, Descriptors: []memgraph.Descriptor{memgraph.LanguageDescriptor("deu")}},
		},
	}))

	programs, err := s.Scan(context.Background(), 514000000, 8000000, 0)
	require.NoError(t, err)
	require.Len(t, programs, 1)
	assert.Equal(t, uint16(10), programs[0].ServiceID)

	msgs := drain(discovered)
	require.Len(t, msgs, 1)
	ev := msgs[0].(model.ChannelDiscovered)
	assert.Equal(t, uint32(514000000), ev.Frequency)
	assert.Equal(t, model.KindMPV, ev.VideoKind)
	assert.Equal(t, uint16(101), ev.VideoPID)
}

func TestScan_ZeroFrequencyClearsMaps(t *testing.T) {
	f := newFixture(t, model.PolicyWhenSwitching)
	s := f.open(t)
	require.NoError(t, s.SetChannel(context.Background(), 1))
	require.NotEmpty(t, f.demux.Mapped("mpv"))

	programs, err := s.Scan(context.Background(), 0, 8000000, 0)
	require.NoError(t, err)
	assert.Nil(t, programs)
	assert.Empty(t, f.demux.Mapped("mpv"))
	assert.Empty(t, f.demux.Mapped("mpa"))
}

func TestUpdateGuide(t *testing.T) {
	f := newFixture(t, model.PolicyNever)
	s := f.open(t)
	guide := f.subscribe(t, model.TopicNowNext)

	ch, err := f.store.FindByPreference(1)
	require.NoError(t, err)
	nn, ok, err := s.UpdateGuide(context.Background(), ch)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.NowNext{ServiceID: 10, Now: "Tagesschau", Next: "Wetter"}, nn)
	assert.Equal(t, []bus.Message{nn}, drain(guide))

	ch, err = f.store.FindByPreference(3)
	require.NoError(t, err)
	_, ok, err = s.UpdateGuide(context.Background(), ch)
	require.NoError(t, err)
	assert.False(t, ok, "channel without now/next data")

	f.guide.err = errors.New("eit timeout")
	ch, _ = f.store.FindByPreference(1)
	_, ok, err = s.UpdateGuide(context.Background(), ch)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestStats(t *testing.T) {
	f := newFixture(t, model.PolicyNever)
	sig := memgraph.Signal{Present: true, Locked: true, Strength: 80, Quality: 95}
	f.tuner.Frequency.SetSignal(sig)
	f.tuner.Demodulator.SetSignal(sig)
	s := f.open(t)

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.Present)
	assert.True(t, stats.Locked)
	assert.Equal(t, int32(80), stats.Strength)
	assert.Equal(t, int32(95), stats.Quality)
}

func TestClose(t *testing.T) {
	f := newFixture(t, model.PolicyNever)
	s, err := New(f.cfg, f.deps)
	require.NoError(t, err)
	require.NoError(t, s.Open(context.Background()))
	require.NoError(t, s.SetChannel(context.Background(), 1))

	require.NoError(t, s.Close(context.Background()))
	assert.Empty(t, f.g.Nodes())
	assert.Empty(t, s.Table().Kinds())
	assert.Nil(t, s.Pipeline())
	assert.Empty(t, f.demux.Mapped("mpv"))

	state, err := f.g.State(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, model.RunStopped, state)
}

func TestBlacklistedTransformsDropped(t *testing.T) {
	tests := []struct {
		name     string
		id       uuid.UUID
		renderer string
	}{
		{"blacklisted identity", AudioSwitcherID, "audio renderer"},
		{"unlisted identity", uuid.New(), "audio switcher"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, model.PolicyNever)
			switcher := &registry.Descriptor{
				ID:    tt.id,
				Name:  "audio switcher",
				Merit: registry.MeritPreferred,
				Source: registry.SourceFactory{New: func(context.Context) (graph.Node, error) {
					return memgraph.NewSink("audio switcher", media.MediaType{Capability: pcm}), nil
				}},
			}
			switcher.AddType(pcm.Major, pcm.Minor)
			f.deps.Transforms = append(f.deps.Transforms, switcher)

			s := f.open(t)
			assert.Equal(t, tt.renderer, rendererOf(s, model.KindMPA))
		})
	}
}
