// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registryCandidates = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dvbgraph_registry_candidates",
		Help: "Usable candidates in the last sorted registry view",
	})

	modulesLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dvbgraph_external_modules_loaded",
		Help: "External component modules currently held by the module cache",
	})

	ScanChannelsFound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dvbgraph_scan_channels_found_total",
		Help: "Channels discovered by the PSI scan engine",
	})
)

func SetRegistryCandidates(n int) { registryCandidates.Set(float64(n)) }
func SetModulesLoaded(n int)      { modulesLoaded.Set(float64(n)) }
func AddScanChannelsFound(n int)  { ScanChannelsFound.Add(float64(n)) }
