// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package assembler

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/dvbgraph/internal/metrics"
	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/graph/memgraph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/media"
	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
	"github.com/ManuGH/dvbgraph/internal/pipeline/registry"
	"github.com/ManuGH/dvbgraph/internal/pipeline/streams"
)

var (
	nv12 = media.Capability{Major: media.MajorVideo, Minor: media.MinorNV12}
	pcm  = media.Capability{Major: media.MajorAudio, Minor: media.MinorPCM}
	utf8 = media.Capability{Major: media.MajorSubtitle, Minor: media.MinorUTF8}

	tunerID = uuid.MustParse("9b365890-165f-11d0-a195-0020afd156e4")
)

const (
	providerName = "Microsoft DVBT Network Provider"
	tunerName    = "@device:pnp:tuner0"
	tunerFriend  = "Hauppauge WinTV DVB-T Tuner"
)

type fixture struct {
	g          *memgraph.Graph
	devices    *memgraph.Devices
	transforms *registry.List
	table      *streams.Table
	demux      *memgraph.Demux
	tuner      *memgraph.Tuner
	cfg        Config
	deps       Deps
}

func newFixture(t *testing.T, opts memgraph.TunerOptions) *fixture {
	t.Helper()
	f := &fixture{
		g:          memgraph.New(),
		devices:    memgraph.NewDevices(),
		transforms: registry.NewList(),
		table:      streams.DefaultCatalog(model.NetworkDVB, media.Geometry{}),
		demux:      memgraph.NewDemux("demux", nil),
		tuner:      memgraph.NewTuner("tuner", opts),
		cfg: Config{
			NetworkType:     model.NetworkDVB,
			NetworkProvider: providerName,
			Tuner:           tunerName,
			Rebuild:         model.PolicyNever,
		},
	}
	f.devices.Register(media.CategoryNetworkProvider,
		registry.Device{DisplayName: "@device:sw:provider", FriendlyName: providerName},
		func() graph.Node { return memgraph.NewNetworkProvider("provider") })
	f.devices.Register(media.CategoryNetworkTuner,
		registry.Device{DisplayName: tunerName, FriendlyName: tunerFriend, ID: tunerID},
		func() graph.Node { return f.tuner })

	for _, k := range []model.StreamKind{model.KindMPV, model.KindH264, model.KindHEVC} {
		d, _ := f.table.Get(k)
		f.transform("dec-"+string(k), d.MediaType.Capability, func() graph.Node {
			return memgraph.NewTransform("dec-"+string(k), []media.MediaType{d.MediaType}, []media.MediaType{{Capability: nv12}})
		})
	}
	for _, k := range []model.StreamKind{model.KindMPA, model.KindAC3, model.KindEAC3, model.KindADTS, model.KindLATM} {
		d, _ := f.table.Get(k)
		f.transform("dec-"+string(k), d.MediaType.Capability, func() graph.Node {
			return memgraph.NewTransform("dec-"+string(k), []media.MediaType{d.MediaType}, []media.MediaType{{Capability: pcm}})
		})
	}
	f.transform("video renderer", nv12, func() graph.Node {
		return memgraph.NewSink("video renderer", media.MediaType{Capability: nv12})
	})
	f.transform("audio renderer", pcm, func() graph.Node {
		return memgraph.NewSink("audio renderer", media.MediaType{Capability: pcm})
	})
	f.transform("text renderer", utf8, func() graph.Node {
		return memgraph.NewSink("text renderer", media.MediaType{Capability: utf8})
	})
	f.transform("sections", media.Capability{Major: media.MajorMPEG2Sections}, func() graph.Node {
		return memgraph.NewSectionSink("sections", nil)
	})
	f.transform("subtitle decoder", media.DVBSubtitles().Capability, func() graph.Node {
		return memgraph.NewSink("subtitle decoder", media.DVBSubtitles())
	})

	f.deps = Deps{
		Runtime:    f.g,
		Transforms: f.transforms,
		Devices:    f.devices,
		Env:        registry.Environment{Devices: f.devices},
		Table:      f.table,
		Demux: func(context.Context) (graph.Demultiplexer, error) {
			return f.demux, nil
		},
	}
	return f
}

func (f *fixture) transform(name string, in media.Capability, build func() graph.Node) {
	d := &registry.Descriptor{
		ID:    uuid.New(),
		Name:  name,
		Merit: registry.MeritNormal,
		Source: registry.SourceFactory{New: func(context.Context) (graph.Node, error) {
			return build(), nil
		}},
	}
	d.AddType(in.Major, in.Minor)
	f.transforms.Insert(d, 0, true, false)
}

func (f *fixture) registerReceiver() {
	f.devices.Register(media.CategoryReceiver,
		registry.Device{DisplayName: "@device:pnp:receiver0", FriendlyName: "BDA Receiver"},
		func() graph.Node { return memgraph.NewReceiver("receiver") })
}

func (f *fixture) assembler() *Assembler {
	return New(f.cfg, f.deps)
}

func (f *fixture) added(name string) bool {
	return slices.Contains(f.g.Calls(), "add "+name)
}

var defaultSelection = Selection{Video: model.KindMPV, Audio: model.KindMPA, AudioKinds: []model.StreamKind{model.KindMPA}}

func TestBuild_DirectTransportSkipsReceiver(t *testing.T) {
	f := newFixture(t, memgraph.TunerOptions{DirectTransport: true})
	f.registerReceiver()

	p, err := f.assembler().Build(context.Background(), defaultSelection)
	require.NoError(t, err)

	assert.Nil(t, p.Receiver)
	assert.False(t, f.added("receiver"), "receiver must not be instantiated")
	assert.Same(t, f.tuner, p.Tuner)
	assert.Same(t, f.tuner.Pin("out"), f.demux.Pin("in").ConnectedTo())
	assert.Same(t, p.Tuner.(*memgraph.Tuner).Pin("antenna"), p.Network.(*memgraph.Node).Pin("antenna").ConnectedTo())
	assert.NotNil(t, p.Controls.Frequency)
	assert.NotNil(t, p.Controls.Demodulator)
	assert.False(t, p.Controls.SharedSource())
}

func TestBuild_ReceiverWhenDirectConnectFails(t *testing.T) {
	f := newFixture(t, memgraph.TunerOptions{})
	f.registerReceiver()

	p, err := f.assembler().Build(context.Background(), defaultSelection)
	require.NoError(t, err)

	require.NotNil(t, p.Receiver)
	recv := p.Receiver.(*memgraph.Node)
	assert.Same(t, recv.Pin("in"), f.tuner.Pin("out").ConnectedTo())
	assert.Same(t, recv.Pin("out"), f.demux.Pin("in").ConnectedTo())
}

func TestBuild_StreamOutputs(t *testing.T) {
	f := newFixture(t, memgraph.TunerOptions{DirectTransport: true})

	_, err := f.assembler().Build(context.Background(), defaultSelection)
	require.NoError(t, err)

	rendered := func(kind model.StreamKind) string {
		out := f.table.Output(kind)
		require.NotNil(t, out, "output for %s", kind)
		dec := graph.PeerNode(out)
		require.NotNil(t, dec, "%s not connected", kind)
		next := graph.PeerNode(graph.FirstPin(dec, graph.Output))
		if next == nil {
			return ""
		}
		return next.Name()
	}

	assert.Equal(t, "video renderer", rendered(model.KindMPV))
	assert.Equal(t, "audio renderer", rendered(model.KindMPA))
	assert.Empty(t, rendered(model.KindH264), "non-current video stays unrendered")
	assert.Empty(t, rendered(model.KindAC3), "non-current audio stays unrendered")

	for _, k := range []model.StreamKind{model.KindPSI, model.KindTIF, model.KindEPG} {
		out := f.table.Output(k)
		require.NotNil(t, out)
		_, ok := graph.PeerNode(out).(*memgraph.SectionSink)
		assert.True(t, ok, "%s feeds a section sink", k)
	}
	assert.Equal(t, "subtitle decoder", graph.PeerNode(f.table.Output(model.KindSUB)).Name())
}

func TestBuild_RebuildAlwaysCreatesOnlyActiveKinds(t *testing.T) {
	f := newFixture(t, memgraph.TunerOptions{DirectTransport: true})
	f.cfg.Rebuild = model.PolicyAlways

	sel := Selection{Video: model.KindH264, Audio: model.KindAC3, AudioKinds: []model.StreamKind{model.KindAC3, model.KindMPA}}
	_, err := f.assembler().Build(context.Background(), sel)
	require.NoError(t, err)

	assert.NotNil(t, f.table.Output(model.KindH264))
	assert.Nil(t, f.table.Output(model.KindMPV))
	assert.Nil(t, f.table.Output(model.KindHEVC))
	assert.NotNil(t, f.table.Output(model.KindAC3))
	assert.NotNil(t, f.table.Output(model.KindMPA))
	assert.Nil(t, f.table.Output(model.KindEAC3))
	assert.NotNil(t, f.table.Output(model.KindPSI))
}

func TestBuild_WhenSwitchingKeepsAllAudio(t *testing.T) {
	f := newFixture(t, memgraph.TunerOptions{DirectTransport: true})
	f.cfg.Rebuild = model.PolicyWhenSwitching

	_, err := f.assembler().Build(context.Background(), defaultSelection)
	require.NoError(t, err)

	assert.Nil(t, f.table.Output(model.KindH264))
	for _, k := range []model.StreamKind{model.KindMPA, model.KindAC3, model.KindEAC3, model.KindADTS, model.KindLATM} {
		assert.NotNil(t, f.table.Output(k), "%s", k)
	}
}

func TestBuild_SubtitlePassThrough(t *testing.T) {
	f := newFixture(t, memgraph.TunerOptions{DirectTransport: true})
	var inserted *memgraph.Node
	f.deps.PassThrough = PassThroughFunc(func(ctx context.Context, rt graph.Runtime, out graph.Pin) (graph.Pin, error) {
		inserted = memgraph.NewPassThrough("text pass-through")
		if err := rt.AddNode(ctx, inserted, inserted.Name()); err != nil {
			return nil, err
		}
		if err := rt.ConnectDirect(ctx, out, inserted.Pin("in"), nil); err != nil {
			return nil, err
		}
		return inserted.Pin("out"), nil
	})

	_, err := f.assembler().Build(context.Background(), defaultSelection)
	require.NoError(t, err)

	require.NotNil(t, inserted)
	assert.Same(t, inserted, graph.PeerNode(f.table.Output(model.KindSUB)))
	assert.Equal(t, "text renderer", graph.PeerNode(inserted.Pin("out")).Name())
}

func TestBuild_SubtitlePassThroughFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, memgraph.TunerOptions{DirectTransport: true})
	f.deps.PassThrough = PassThroughFunc(func(context.Context, graph.Runtime, graph.Pin) (graph.Pin, error) {
		return nil, errors.New("pass-through unavailable")
	})

	_, err := f.assembler().Build(context.Background(), defaultSelection)
	require.NoError(t, err)
	assert.Nil(t, f.table.Output(model.KindSUB).ConnectedTo())
}

func TestBuild_MissingDemodulatorSharesTelemetry(t *testing.T) {
	f := newFixture(t, memgraph.TunerOptions{DirectTransport: true, NoDemodulator: true})

	p, err := f.assembler().Build(context.Background(), defaultSelection)
	require.NoError(t, err)
	assert.Nil(t, p.Controls.Demodulator)
	assert.True(t, p.Controls.SharedSource())
	assert.Same(t, f.tuner.Frequency, p.Controls.DemodStats)
}

func TestBuild_AutoDemodulate(t *testing.T) {
	f := newFixture(t, memgraph.TunerOptions{DirectTransport: true, AutoDemodulate: true})

	_, err := f.assembler().Build(context.Background(), defaultSelection)
	require.NoError(t, err)
	assert.Contains(t, f.tuner.Demodulator.Calls(), "auto_demodulate")

	f = newFixture(t, memgraph.TunerOptions{DirectTransport: true, AutoDemodulate: true})
	f.tuner.Demodulator.Fail("auto_demodulate", graph.ErrUnexpected)
	_, err = f.assembler().Build(context.Background(), defaultSelection)
	require.NoError(t, err, "auto demodulation failure is not fatal")
}

func TestBuild_StageErrors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *fixture)
		stage    Stage
		diag     string
		sentinel error
	}{
		{
			name: "no network provider",
			setup: func(f *fixture) {
				f.cfg.NetworkProvider = "ATSC Network Provider"
			},
			stage:    StageNetworkProvider,
			diag:     DiagNoNetworkProvider,
			sentinel: graph.ErrResolutionFailure,
		},
		{
			name: "tuner not found",
			setup: func(f *fixture) {
				f.cfg.Tuner = "@device:pnp:missing"
			},
			stage:    StageTuner,
			diag:     DiagCreateTuner,
			sentinel: graph.ErrResolutionFailure,
		},
		{
			name: "tuner blacklisted",
			setup: func(f *fixture) {
				f.deps.Blacklist = []*registry.Descriptor{{ID: tunerID, Name: tunerFriend, Merit: registry.MeritDoNotUse}}
			},
			stage:    StageTuner,
			diag:     DiagCreateTuner,
			sentinel: graph.ErrResolutionFailure,
		},
		{
			name: "no telemetry",
			setup: func(f *fixture) {
				f.tuner = memgraph.NewTuner("tuner", memgraph.TunerOptions{DirectTransport: true, NoFrequency: true, NoDemodulator: true})
			},
			stage:    StageTopology,
			diag:     DiagNoStatistics,
			sentinel: graph.ErrNoTelemetrySource,
		},
		{
			name: "no frequency control",
			setup: func(f *fixture) {
				f.tuner = memgraph.NewTuner("tuner", memgraph.TunerOptions{DirectTransport: true, NoFrequency: true})
			},
			stage:    StageTopology,
			diag:     DiagNoStatistics,
			sentinel: graph.ErrNotFound,
		},
		{
			name: "demultiplexer",
			setup: func(f *fixture) {
				f.deps.Demux = func(context.Context) (graph.Demultiplexer, error) {
					return nil, graph.ErrUnexpected
				}
			},
			stage:    StageDemultiplexer,
			diag:     DiagDemultiplexer,
			sentinel: graph.ErrUnexpected,
		},
		{
			name:     "no receiver",
			setup:    func(f *fixture) { f.tuner = memgraph.NewTuner("tuner", memgraph.TunerOptions{}) },
			stage:    StageReceiver,
			diag:     DiagCreateReceiver,
			sentinel: graph.ErrResolutionFailure,
		},
		{
			name: "receiver cannot feed demux",
			setup: func(f *fixture) {
				f.tuner = memgraph.NewTuner("tuner", memgraph.TunerOptions{})
				f.devices.Register(media.CategoryReceiver,
					registry.Device{DisplayName: "@device:pnp:receiver0"},
					func() graph.Node { return memgraph.NewTransform("receiver", nil, nil) })
			},
			stage:    StageConnectReceiver,
			diag:     DiagConnectTunerReceiver,
			sentinel: graph.ErrConnectionFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, memgraph.TunerOptions{DirectTransport: true})
			tt.setup(f)
			before := testutil.ToFloat64(metrics.AssemblyTotal.WithLabelValues("failure", string(tt.stage)))

			p, err := f.assembler().Build(context.Background(), defaultSelection)
			require.Error(t, err)
			assert.Nil(t, p)

			var se *StageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.stage, se.Stage)
			assert.Equal(t, tt.diag, se.Diagnostic)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Empty(t, f.g.Nodes(), "failed builds remove what they added")
			assert.Equal(t, before+1, testutil.ToFloat64(metrics.AssemblyTotal.WithLabelValues("failure", string(tt.stage))))
		})
	}
}

func TestBuild_ConcurrentBuildRejected(t *testing.T) {
	f := newFixture(t, memgraph.TunerOptions{DirectTransport: true})
	entered := make(chan struct{})
	release := make(chan struct{})
	f.deps.Demux = func(context.Context) (graph.Demultiplexer, error) {
		close(entered)
		<-release
		return f.demux, nil
	}
	a := f.assembler()

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = a.Build(context.Background(), defaultSelection)
	}()

	<-entered
	assert.True(t, a.Busy())
	_, err := a.Build(context.Background(), defaultSelection)
	assert.ErrorIs(t, err, graph.ErrInvalidState)

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.False(t, a.Busy())
}
