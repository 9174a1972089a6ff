// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package prom exports direct dialer lifecycle events to Prometheus.
package prom

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bureau-foundation/webrtcdirect/transport"
)

// NewRegistry returns a fresh Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Handler returns a Prometheus HTTP handler bound to the registry.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// DialObserver implements transport.Observer with Prometheus metrics.
type DialObserver struct {
	transitions    *prometheus.CounterVec
	failures       *prometheus.CounterVec
	connectLatency prometheus.Histogram
}

var _ transport.Observer = (*DialObserver)(nil)

// NewDialObserver registers the dialer metrics on registry.
func NewDialObserver(registry prometheus.Registerer) *DialObserver {
	o := &DialObserver{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webrtcdirect_session_transitions_total",
			Help: "Negotiation session state transitions.",
		}, []string{"from", "to"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webrtcdirect_session_failures_total",
			Help: "Negotiation failures by kind.",
		}, []string{"kind"}),
		connectLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "webrtcdirect_connect_latency_seconds",
			Help:    "Time from entering Connecting to the data channel opening.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	registry.MustRegister(o.transitions, o.failures, o.connectLatency)
	return o
}

func (o *DialObserver) Transition(from, to transport.State) {
	o.transitions.WithLabelValues(from.String(), to.String()).Inc()
}

func (o *DialObserver) Failure(_ transport.State, kind string) {
	o.failures.WithLabelValues(kind).Inc()
}

func (o *DialObserver) Connected(latency time.Duration) {
	o.connectLatency.Observe(latency.Seconds())
}
