// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package registry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubNode struct{ name string }

func (n stubNode) Name() string    { return n.name }
func (stubNode) Pins() []graph.Pin { return nil }

type fakeModule struct {
	path      string
	busy      atomic.Bool
	closed    atomic.Int32
	closeErr  error
	createErr error
}

func (m *fakeModule) Create(_ context.Context, id uuid.UUID) (graph.Node, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return stubNode{name: m.path + "#" + id.String()}, nil
}

func (m *fakeModule) CanUnload() bool { return !m.busy.Load() }

func (m *fakeModule) Close() error {
	m.closed.Add(1)
	return m.closeErr
}

type fakeLoader struct {
	opened  map[string]*fakeModule
	opens   int
	openErr error
}

func (l *fakeLoader) Open(_ context.Context, path string) (Module, error) {
	if l.openErr != nil {
		return nil, l.openErr
	}
	l.opens++
	m := &fakeModule{path: path}
	if l.opened == nil {
		l.opened = make(map[string]*fakeModule)
	}
	l.opened[path] = m
	return m, nil
}

func TestModuleCache_LoadIsCaseInsensitive(t *testing.T) {
	loader := &fakeLoader{}
	c := NewModuleCache(loader, time.Minute)
	ctx := context.Background()

	a, err := c.Load(ctx, `C:\Filters\Decoder.ax`)
	require.NoError(t, err)
	b, err := c.Load(ctx, `c:\filters\decoder.AX`)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, loader.opens)
	assert.Equal(t, 1, c.Len())
}

func TestModuleCache_SweepNeedsTwoConsecutiveChecks(t *testing.T) {
	loader := &fakeLoader{}
	c := NewModuleCache(loader, time.Minute)
	ctx := context.Background()
	_, err := c.Load(ctx, "mod.ax")
	require.NoError(t, err)
	mod := loader.opened["mod.ax"]

	assert.Equal(t, 0, c.Sweep(), "first idle check only arms")
	_, err = c.Load(ctx, "MOD.ax")
	require.NoError(t, err)
	assert.Equal(t, 0, c.Sweep(), "use resets the counter")

	mod.busy.Store(true)
	assert.Equal(t, 0, c.Sweep())
	mod.busy.Store(false)
	assert.Equal(t, 0, c.Sweep(), "busy check resets the counter")

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int32(1), mod.closed.Load())
}

func TestModuleCache_Create(t *testing.T) {
	loader := &fakeLoader{}
	c := NewModuleCache(loader, time.Minute)
	id := uuid.New()

	n, err := c.Create(context.Background(), "mod.ax", id)
	require.NoError(t, err)
	assert.Equal(t, "mod.ax#"+id.String(), n.Name())

	loader.opened["mod.ax"].createErr = graph.ErrCannotConnect
	_, err = c.Create(context.Background(), "mod.ax", id)
	assert.ErrorIs(t, err, graph.ErrCannotConnect)
}

func TestModuleCache_OpenFailure(t *testing.T) {
	c := NewModuleCache(&fakeLoader{openErr: errors.New("no such file")}, 0)
	_, err := c.Load(context.Background(), "missing.ax")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.ax")
	assert.Equal(t, 0, c.Len())
}

func TestModuleCache_Close(t *testing.T) {
	loader := &fakeLoader{}
	c := NewModuleCache(loader, time.Minute)
	ctx := context.Background()
	_, _ = c.Load(ctx, "a.ax")
	_, _ = c.Load(ctx, "b.ax")
	loader.opened["b.ax"].busy.Store(true)
	loader.opened["b.ax"].closeErr = errors.New("still referenced")

	err := c.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b.ax")
	assert.Equal(t, int32(1), loader.opened["a.ax"].closed.Load())

	_, err = c.Load(ctx, "a.ax")
	assert.ErrorIs(t, err, ErrCacheClosed)
	assert.NoError(t, c.Close())
}

func TestModuleCache_RunStopsWithContext(t *testing.T) {
	loader := &fakeLoader{}
	c := NewModuleCache(loader, 5*time.Millisecond)
	_, err := c.Load(context.Background(), "mod.ax")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
