// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exports Prometheus counters and gauges for the buffer
// cache, frame table, swap manager, and page fault handler. Nothing in the
// rest of the module depends on Prometheus being scraped: every recording
// call here is a cheap atomic increment, safe to leave wired up whether or
// not `gopagerctl serve --metrics-addr` is ever passed.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gopager",
		Subsystem: "buffercache",
		Name:      "hits_total",
		Help:      "Buffer cache lookups that found the sector already resident.",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gopager",
		Subsystem: "buffercache",
		Name:      "misses_total",
		Help:      "Buffer cache lookups that required loading the sector from disk.",
	})

	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gopager",
		Subsystem: "buffercache",
		Name:      "evictions_total",
		Help:      "Slots reclaimed by the clock eviction scan.",
	})

	CacheReadAheadHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gopager",
		Subsystem: "buffercache",
		Name:      "readahead_hits_total",
		Help:      "Sectors loaded into the cache by the read-ahead worker.",
	})

	FrameEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gopager",
		Subsystem: "frame",
		Name:      "evictions_total",
		Help:      "Frame table evictions, labeled by how the victim was resolved.",
	}, []string{"resolution"})

	SwapSlotsInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gopager",
		Subsystem: "swap",
		Name:      "slots_in_use",
		Help:      "Currently allocated 8-sector swap slots.",
	})

	PageFaults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gopager",
		Subsystem: "fault",
		Name:      "total",
		Help:      "Page faults, labeled by how the fault was resolved.",
	}, []string{"resolution"})
)

// Frame eviction / fault resolution label values, centralized so callers
// don't hand-roll label strings at each call site.
const (
	ResolutionSwap           = "swap"
	ResolutionMmapWriteback  = "mmap_writeback"
	ResolutionCleanDrop      = "clean_drop"
	ResolutionResident       = "resident"
	ResolutionSwapIn         = "swap_in"
	ResolutionLazyMmap       = "lazy_mmap"
	ResolutionExecutable     = "executable"
	ResolutionStackGrowth    = "stack_growth"
	ResolutionKilledInvalid  = "killed_invalid"
)

// Serve starts a blocking HTTP server exposing /metrics on addr. Callers
// typically run it in its own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
