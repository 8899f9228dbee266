// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package runstate

import (
	"context"
	"sync"
	"testing"

	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/graph/memgraph"
	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingFeedback struct {
	mu     sync.Mutex
	events []string
}

func (f *recordingFeedback) Halt(context.Context)   { f.add("halt") }
func (f *recordingFeedback) Resume(context.Context) { f.add("resume") }

func (f *recordingFeedback) add(e string) {
	f.mu.Lock()
	f.events = append(f.events, e)
	f.mu.Unlock()
}

func (f *recordingFeedback) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func TestRequestState_Transitions(t *testing.T) {
	ctx := context.Background()
	g := memgraph.New()
	fb := &recordingFeedback{}
	c := New(g, Options{Feedback: fb})

	require.NoError(t, c.RequestState(ctx, model.RunRunning))
	require.NoError(t, c.RequestState(ctx, model.RunPaused))
	require.NoError(t, c.RequestState(ctx, model.RunStopped))

	assert.Equal(t, []string{"state RUNNING", "state PAUSED", "state STOPPED"}, g.Calls())
	assert.Equal(t, []string{"resume", "halt"}, fb.Events())
}

func TestRequestState_NoOpAtTarget(t *testing.T) {
	g := memgraph.New()
	fb := &recordingFeedback{}
	c := New(g, Options{Feedback: fb})

	require.NoError(t, c.RequestState(context.Background(), model.RunStopped))
	assert.Empty(t, g.Calls())
	assert.Empty(t, fb.Events())
}

func TestRequestState_FailureNotRetried(t *testing.T) {
	ctx := context.Background()
	g := memgraph.New()
	require.NoError(t, g.Run(ctx))
	g.ResetCalls()
	g.SetFaults(memgraph.Faults{Stop: graph.ErrTimeout})
	fb := &recordingFeedback{}
	c := New(g, Options{Feedback: fb})

	err := c.RequestState(ctx, model.RunStopped)
	require.ErrorIs(t, err, graph.ErrTimeout)
	assert.Empty(t, g.Calls())
	assert.Equal(t, []string{"halt"}, fb.Events(), "feedback halts before the stop attempt")

	st, err := c.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RunRunning, st)
}

func TestRequestState_RunFailureKeepsFeedbackHalted(t *testing.T) {
	g := memgraph.New()
	g.SetFaults(memgraph.Faults{Run: graph.ErrUnexpected})
	fb := &recordingFeedback{}
	c := New(g, Options{Feedback: fb})

	assert.ErrorIs(t, c.RequestState(context.Background(), model.RunRunning), graph.ErrUnexpected)
	assert.Empty(t, fb.Events())
}

func TestRequestState_StateQueryFailure(t *testing.T) {
	g := memgraph.New()
	g.SetFaults(memgraph.Faults{State: graph.ErrTimeout})
	c := New(g, Options{})

	assert.ErrorIs(t, c.RequestState(context.Background(), model.RunRunning), graph.ErrTimeout)
	assert.Empty(t, g.Calls())
}

func TestRequestState_UnknownTarget(t *testing.T) {
	c := New(memgraph.New(), Options{})
	assert.ErrorIs(t, c.RequestState(context.Background(), "BOGUS"), graph.ErrInvalidState)
}
