// Copyright 2026 The Append-FS Authors.
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

// Package metrics exposes the small set of Prometheus collectors the
// engine updates. The core never scrapes these itself (that belongs to
// whatever serves /metrics in the adapter process); it only
// increments/sets them.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the engine's collectors. A nil *Registry is not valid;
// use New or NewNoop.
type Registry struct {
	RecordsAppended *prometheus.CounterVec
	RecordsSkipped  prometheus.Counter
	Flushes         prometheus.Counter
	FlushBytes      prometheus.Counter
	FlushRollbacks  prometheus.Counter
	OpenHandles     prometheus.Gauge

	reg *prometheus.Registry
}

// New creates a Registry backed by a fresh prometheus.Registry, registering
// all collectors on it so callers can plug it into an HTTP /metrics
// endpoint if they want one (the adapter's job, not the core's).
func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		RecordsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "appendfs",
			Name:      "records_appended_total",
			Help:      "Metadata log records appended, by record type.",
		}, []string{"type"}),
		RecordsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "appendfs",
			Name:      "records_skipped_crc_total",
			Help:      "Metadata log records skipped during replay due to checksum failure.",
		}),
		Flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "appendfs",
			Name:      "flushes_total",
			Help:      "Write-buffer flushes completed.",
		}),
		FlushBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "appendfs",
			Name:      "flush_bytes_total",
			Help:      "Bytes appended to the data segment across all flushes.",
		}),
		FlushRollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "appendfs",
			Name:      "flush_rollbacks_total",
			Help:      "Flushes rolled back after a log-append failure.",
		}),
		OpenHandles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "appendfs",
			Name:      "open_handles",
			Help:      "Currently open file handles.",
		}),
		reg: reg,
	}
	reg.MustRegister(m.RecordsAppended, m.RecordsSkipped, m.Flushes, m.FlushBytes, m.FlushRollbacks, m.OpenHandles)
	return m
}

// NewNoop creates a Registry whose collectors are real (so call sites
// never nil-check) but registered on a Registry nobody scrapes.
func NewNoop() *Registry { return New() }

// Gatherer exposes the underlying prometheus.Registry for an adapter that
// wants to serve it over HTTP.
func (m *Registry) Gatherer() prometheus.Gatherer { return m.reg }
