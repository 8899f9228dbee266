// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/dvbgraph/internal/pipeline/model"
	"github.com/ManuGH/dvbgraph/internal/pipeline/tuning"
)

type mockChecker struct {
	name   string
	status Status
}

func (m mockChecker) Name() string { return m.name }

func (m mockChecker) Check(context.Context) CheckResult {
	return CheckResult{Status: m.status}
}

type statsFunc func(context.Context) (tuning.Stats, error)

func (f statsFunc) Stats(ctx context.Context) (tuning.Stats, error) { return f(ctx) }

type stateFunc func(context.Context) (model.RunState, error)

func (f stateFunc) State(ctx context.Context) (model.RunState, error) { return f(ctx) }

func TestHealth(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(mockChecker{name: "a", status: StatusHealthy})
	m.RegisterChecker(mockChecker{name: "b", status: StatusDegraded})

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
	assert.Nil(t, resp.Checks)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 2)
}

func TestReady(t *testing.T) {
	m := NewManager("v1.0.0")
	assert.True(t, m.Ready(context.Background()).Ready, "no checkers means ready")

	m.RegisterChecker(mockChecker{name: "degraded", status: StatusDegraded})
	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusDegraded, resp.Status)

	m.RegisterChecker(mockChecker{name: "down", status: StatusUnhealthy})
	resp = m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestServeReady(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(mockChecker{name: "down", status: StatusUnhealthy})

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ReadinessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Ready)
	assert.Equal(t, StatusUnhealthy, body.Checks["down"].Status)

	rec = httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "liveness ignores component state")
}

func TestSignalChecker(t *testing.T) {
	tests := []struct {
		name  string
		stats tuning.Stats
		err   error
		want  Status
	}{
		{name: "locked", stats: tuning.Stats{Present: true, Locked: true, Strength: 80}, want: StatusHealthy},
		{name: "present", stats: tuning.Stats{Present: true}, want: StatusDegraded},
		{name: "none", want: StatusUnhealthy},
		{name: "error", err: errors.New("no statistics"), want: StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := SignalChecker{Source: statsFunc(func(context.Context) (tuning.Stats, error) {
				return tt.stats, tt.err
			})}
			assert.Equal(t, tt.want, c.Check(context.Background()).Status)
		})
	}
}

func TestRunStateChecker(t *testing.T) {
	for state, want := range map[model.RunState]Status{
		model.RunRunning: StatusHealthy,
		model.RunPaused:  StatusDegraded,
		model.RunStopped: StatusUnhealthy,
	} {
		c := RunStateChecker{Source: stateFunc(func(context.Context) (model.RunState, error) { return state, nil })}
		assert.Equal(t, want, c.Check(context.Background()).Status, "%s", state)
	}
}
