/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package metrics exposes compile-cycle measurements as Prometheus
// collectors. Each compiler owns a registry, so several compilers can run
// in one process and tests can read exact values.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ripple"

// Metrics holds the collectors of one compiler.
type Metrics struct {
	Registry *prometheus.Registry

	// phaseDuration measures each compile phase.
	// Labels: phase (invalidate, program, analyze, emit)
	phaseDuration *prometheus.HistogramVec

	generations prometheus.Counter
	affected    prometheus.Counter
	emitted     prometheus.Counter

	// diagnostics counts reported diagnostics.
	// Labels: kind (syntax, resolution, bundle, emit)
	diagnostics *prometheus.CounterVec

	graphFiles prometheus.Gauge
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		phaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "compile",
			Name:      "phase_duration_seconds",
			Help:      "Time spent in each compile phase",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"phase"}),
		generations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compile",
			Name:      "generations_total",
			Help:      "Completed compile cycles",
		}),
		affected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compile",
			Name:      "affected_files_total",
			Help:      "Files reported affected across all cycles",
		}),
		emitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compile",
			Name:      "emitted_files_total",
			Help:      "Source files whose output changed on disk",
		}),
		diagnostics: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compile",
			Name:      "diagnostics_total",
			Help:      "Diagnostics reported, by kind",
		}, []string{"kind"}),
		graphFiles: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "files",
			Help:      "Files known to the dependency graph",
		}),
	}
}

// ObservePhase records the duration of one phase.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	m.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// RecordCycle records the outcome of a completed cycle.
func (m *Metrics) RecordCycle(affected, emitted, graphFiles int, diagnosticKinds []string) {
	m.generations.Inc()
	m.affected.Add(float64(affected))
	m.emitted.Add(float64(emitted))
	m.graphFiles.Set(float64(graphFiles))
	for _, kind := range diagnosticKinds {
		m.diagnostics.WithLabelValues(kind).Inc()
	}
}

// RegisterSourceCache exports parsed-source cache hit and miss counts read
// from stats at scrape time.
func (m *Metrics) RegisterSourceCache(stats func() (hits, misses uint64)) {
	factory := promauto.With(m.Registry)
	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "source_cache",
		Name:      "hits_total",
		Help:      "Parsed-source cache hits",
	}, func() float64 {
		hits, _ := stats()
		return float64(hits)
	})
	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "source_cache",
		Name:      "misses_total",
		Help:      "Parsed-source cache misses",
	}, func() float64 {
		_, misses := stats()
		return float64(misses)
	})
}
