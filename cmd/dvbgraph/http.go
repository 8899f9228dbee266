// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/ManuGH/dvbgraph/internal/health"
)

const (
	healthRequestLimit = 120
	healthWindow       = time.Minute
)

// newRouter serves metrics and the health endpoints of a held simulation.
func newRouter(checks *health.Manager) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(httprate.Limit(
		healthRequestLimit,
		healthWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(healthWindow.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limit_exceeded"}`))
		}),
	))

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/healthz", checks.ServeHealth)
	r.Get("/readyz", checks.ServeReady)

	return otelhttp.NewHandler(r, "dvbgraph",
		otelhttp.WithTracerProvider(otel.GetTracerProvider()),
		otelhttp.WithFilter(func(req *http.Request) bool { return req.URL.Path != "/metrics" }),
	)
}
