// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package switcher

import (
	"context"
	"sync"
	"testing"

	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/graph/memgraph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/media"
	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
	"github.com/ManuGH/dvbgraph/internal/pipeline/runstate"
	"github.com/ManuGH/dvbgraph/internal/pipeline/streams"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pcm = media.MediaType{Capability: media.Capability{Major: media.MajorAudio, Minor: media.MinorPCM}}

type rig struct {
	g     *memgraph.Graph
	demux *memgraph.Demux
	table *streams.Table
	decs  map[model.StreamKind]*memgraph.Node
	sink  *memgraph.Node
	ctl   *Controller
}

// newRig builds demux -> decoder for each audio kind with current feeding the sink.
func newRig(t *testing.T, current model.StreamKind, kinds ...model.StreamKind) *rig {
	t.Helper()
	ctx := context.Background()
	r := &rig{
		g:     memgraph.New(),
		demux: memgraph.NewDemux("demux", nil),
		table: streams.DefaultCatalog(model.NetworkDVB, media.Geometry{}),
		decs:  make(map[model.StreamKind]*memgraph.Node),
		sink:  memgraph.NewSink("audio renderer", media.MediaType{Capability: media.Capability{Major: media.MajorAudio}}),
	}
	require.NoError(t, r.g.AddNode(ctx, r.demux, "demux"))
	require.NoError(t, r.g.AddNode(ctx, r.sink, "audio renderer"))
	for _, k := range kinds {
		out, err := r.table.Resolve(ctx, k, r.demux)
		require.NoError(t, err)
		d, _ := r.table.Get(k)
		dec := memgraph.NewTransform("dec-"+string(k), []media.MediaType{d.MediaType}, []media.MediaType{pcm})
		require.NoError(t, r.g.AddNode(ctx, dec, dec.Name()))
		require.NoError(t, r.g.ConnectDirect(ctx, out, dec.Pin("in"), nil))
		r.decs[k] = dec
	}
	require.NoError(t, r.g.ConnectDirect(ctx, r.decs[current].Pin("out"), r.sink.Pin("in"), nil))
	r.ctl = New(r.g, r.table, runstate.New(r.g, runstate.Options{}), Options{})
	r.ctl.Attach(r.demux)
	r.g.ResetCalls()
	return r
}

func (r *rig) feeding() graph.Pin {
	return r.sink.Pin("in").ConnectedTo()
}

func (r *rig) state(t *testing.T) model.RunState {
	st, err := r.g.State(context.Background(), 0)
	require.NoError(t, err)
	return st
}

func TestSwitchStream_StoppedFallback(t *testing.T) {
	r := newRig(t, model.KindMPA, model.KindMPA, model.KindAC3)

	require.NoError(t, r.ctl.SwitchStream(context.Background(), model.KindMPA, model.KindAC3))

	assert.Same(t, r.decs[model.KindAC3].Pin("out"), r.feeding())
	assert.Nil(t, r.decs[model.KindMPA].Pin("out").ConnectedTo())
	assert.Equal(t, []string{
		"disconnect dec-MPA.out",
		"disconnect audio renderer.in",
		"connect dec-AC3.out -> audio renderer.in",
	}, r.g.Calls())
	assert.Zero(t, r.demux.Retyped("ac3"), "stopped pipelines are not retyped")
}

func TestSwitchStream_RoundTripRestoresTopology(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, model.KindMPA, model.KindMPA, model.KindAC3)
	before := r.g.Topology()
	original := r.feeding()

	require.NoError(t, r.ctl.SwitchStream(ctx, model.KindMPA, model.KindAC3))
	require.NoError(t, r.ctl.SwitchStream(ctx, model.KindAC3, model.KindMPA))

	assert.Same(t, original, r.feeding())
	assert.Equal(t, before, r.g.Topology())
}

func TestSwitchStream_RunningWithoutDynamicStopsAndLeavesStopped(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, model.KindMPA, model.KindMPA, model.KindAC3)
	require.NoError(t, r.g.Run(ctx))
	r.g.ResetCalls()

	require.NoError(t, r.ctl.SwitchStream(ctx, model.KindMPA, model.KindAC3))

	assert.Equal(t, model.RunStopped, r.state(t))
	assert.Same(t, r.decs[model.KindAC3].Pin("out"), r.feeding())
	assert.Equal(t, []string{
		"state STOPPED",
		"disconnect dec-MPA.out",
		"disconnect audio renderer.in",
		"connect dec-AC3.out -> audio renderer.in",
	}, r.g.Calls())
	assert.Equal(t, 1, r.demux.Retyped("ac3"), "audio output retyped while running")
}

func TestSwitchStream_DynamicReroute(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, model.KindMPA, model.KindMPA, model.KindAC3)
	r.decs[model.KindMPA].Pin("out").SetDynamic(true)
	r.decs[model.KindAC3].Pin("out").SetDynamic(true)
	r.sink.Pin("in").SetDynamic(true)
	require.NoError(t, r.g.Run(ctx))
	r.g.ResetCalls()

	require.NoError(t, r.ctl.SwitchStream(ctx, model.KindMPA, model.KindAC3))

	assert.Equal(t, model.RunRunning, r.state(t))
	assert.Equal(t, []string{"reconnect dec-AC3.out -> audio renderer.in"}, r.g.Calls())
	assert.Same(t, r.decs[model.KindAC3].Pin("out"), r.feeding())
	assert.False(t, r.decs[model.KindMPA].Pin("out").Blocked())
}

func TestSwitchStream_DynamicFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, model.KindMPA, model.KindMPA, model.KindAC3)
	for _, p := range []*memgraph.Pin{r.decs[model.KindMPA].Pin("out"), r.decs[model.KindAC3].Pin("out"), r.sink.Pin("in")} {
		p.SetDynamic(true)
	}
	r.g.SetFaults(memgraph.Faults{Reconnect: func(_, _ graph.Pin) error { return graph.ErrCannotConnect }})
	require.NoError(t, r.g.Run(ctx))

	require.NoError(t, r.ctl.SwitchStream(ctx, model.KindMPA, model.KindAC3))
	assert.Same(t, r.decs[model.KindAC3].Pin("out"), r.feeding())
	assert.Equal(t, model.RunRunning, r.state(t), "dynamic pins rewire without stopping")
}

func TestSwitchStream_TerminalFailure(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, model.KindMPA, model.KindMPA, model.KindAC3)
	require.NoError(t, r.g.Run(ctx))
	r.g.SetFaults(memgraph.Faults{Connect: func(_, _ graph.Pin) error { return graph.ErrCannotConnect }})

	err := r.ctl.SwitchStream(ctx, model.KindMPA, model.KindAC3)

	require.ErrorIs(t, err, graph.ErrUnexpectedReconnectFailure)
	assert.ErrorIs(t, err, graph.ErrCannotConnect)
	assert.Equal(t, "unexpected_reconnect_failure", graph.Class(err))
	assert.Equal(t, model.RunStopped, r.state(t))
	assert.Equal(t, StateIdle, r.ctl.State(model.FamilyAudio))
}

func TestSwitchStream_Preconditions(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, model.KindMPA, model.KindMPA, model.KindAC3)

	assert.ErrorIs(t, r.ctl.SwitchStream(ctx, model.KindMPA, model.KindEAC3), graph.ErrUnknownStream)
	assert.ErrorIs(t, r.ctl.SwitchStream(ctx, model.KindMPA, model.KindMPV), graph.ErrInvalidState)
	assert.ErrorIs(t, r.ctl.SwitchStream(ctx, model.KindSUB, model.KindSUB), graph.ErrInvalidState)
	assert.NoError(t, r.ctl.SwitchStream(ctx, model.KindMPA, model.KindMPA))
	assert.Empty(t, r.g.Calls())

	busy := New(r.g, r.table, runstate.New(r.g, runstate.Options{}), Options{Busy: func() bool { return true }})
	err := busy.SwitchStream(ctx, model.KindMPA, model.KindAC3)
	assert.ErrorIs(t, err, graph.ErrInvalidState)
	assert.ErrorContains(t, err, "assembly in progress")
	assert.Equal(t, StateIdle, busy.State(model.FamilyAudio))
	assert.Empty(t, r.g.Calls())
}

func TestSwitchStream_SinkInputMissing(t *testing.T) {
	r := newRig(t, model.KindMPA, model.KindMPA, model.KindAC3)
	require.NoError(t, r.g.Disconnect(context.Background(), r.decs[model.KindMPA].Pin("out")))

	err := r.ctl.SwitchStream(context.Background(), model.KindMPA, model.KindAC3)
	assert.ErrorIs(t, err, graph.ErrPointer)
}

func TestSwitchStream_ConcurrentSameFamilyRejected(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, model.KindMPA, model.KindMPA, model.KindAC3)

	entered := make(chan struct{})
	release := make(chan struct{})
	r.g.SetFaults(memgraph.Faults{Disconnect: func(graph.Pin) error {
		select {
		case entered <- struct{}{}:
			<-release
		default:
		}
		return nil
	}})

	var wg sync.WaitGroup
	wg.Add(1)
	var first error
	go func() {
		defer wg.Done()
		first = r.ctl.SwitchStream(ctx, model.KindMPA, model.KindAC3)
	}()
	<-entered
	assert.Equal(t, StateSwitching, r.ctl.State(model.FamilyAudio))
	err := r.ctl.SwitchStream(ctx, model.KindAC3, model.KindMPA)
	assert.ErrorIs(t, err, graph.ErrInvalidState)
	close(release)
	wg.Wait()

	require.NoError(t, first)
	assert.Equal(t, StateIdle, r.ctl.State(model.FamilyAudio))
}
