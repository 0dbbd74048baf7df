// Copyright (C) 2025 Halcyon AI (oss@halcyonai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package metrics provides Prometheus instrumentation for stream
// sessions. Registration is explicit: callers pass a Registerer, tests
// pass a fresh prometheus.NewRegistry to avoid global state.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StreamMetrics instruments the streaming search client.
type StreamMetrics struct {
	sessionsStarted prometheus.Counter
	turnsFinished   *prometheus.CounterVec
	tokensTotal     prometheus.Counter
	parseFailures   prometheus.Counter
	turnDuration    prometheus.Histogram
}

// New creates and registers the stream metrics on reg.
func New(reg prometheus.Registerer) *StreamMetrics {
	m := &StreamMetrics{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "halcyon",
			Subsystem: "stream",
			Name:      "sessions_started_total",
			Help:      "Streaming search requests issued.",
		}),
		turnsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "halcyon",
			Subsystem: "stream",
			Name:      "turns_finished_total",
			Help:      "Terminal turn outcomes by state.",
		}, []string{"outcome"}),
		tokensTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "halcyon",
			Subsystem: "stream",
			Name:      "tokens_total",
			Help:      "Answer token events received.",
		}),
		parseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "halcyon",
			Subsystem: "stream",
			Name:      "frame_parse_failures_total",
			Help:      "Malformed data frames skipped without aborting the stream.",
		}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "halcyon",
			Subsystem: "stream",
			Name:      "turn_duration_seconds",
			Help:      "Wall-clock duration of one turn, request to terminal state.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 12),
		}),
	}

	reg.MustRegister(
		m.sessionsStarted,
		m.turnsFinished,
		m.tokensTotal,
		m.parseFailures,
		m.turnDuration,
	)
	return m
}

// SessionStarted records one issued request. Nil-safe.
func (m *StreamMetrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
}

// TurnFinished records a terminal outcome and its duration. Nil-safe.
func (m *StreamMetrics) TurnFinished(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.turnsFinished.WithLabelValues(outcome).Inc()
	m.turnDuration.Observe(elapsed.Seconds())
}

// TokenReceived records one answer token event. Nil-safe.
func (m *StreamMetrics) TokenReceived() {
	if m == nil {
		return
	}
	m.tokensTotal.Inc()
}

// ParseFailure records one skipped malformed frame. Nil-safe.
func (m *StreamMetrics) ParseFailure() {
	if m == nil {
		return
	}
	m.parseFailures.Inc()
}
