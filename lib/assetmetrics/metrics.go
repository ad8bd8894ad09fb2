// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package assetmetrics defines the Prometheus collectors for the asset
// store. A nil *Metrics is valid and records nothing, so library code
// and tests can run without a registry.
package assetmetrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bureau_assets"

// Metrics holds the asset store's collectors.
type Metrics struct {
	chunksReceived   prometheus.Counter
	uploadsCompleted prometheus.Counter
	uploadRestarts   prometheus.Counter
	dedupShortcuts   prometheus.Counter
	pagesWritten     prometheus.Counter
	pageBytesWritten prometheus.Counter
	pagesPurged      prometheus.Counter
	responses        *prometheus.CounterVec
	continuations    prometheus.Counter
	bytesServed      prometheus.Counter
}

// New creates the collectors and registers them with registerer.
// Registration panics on duplicate names, matching promauto.
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		chunksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "upload", Name: "chunks_total",
			Help: "Upload chunks accepted.",
		}),
		uploadsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "upload", Name: "completed_total",
			Help: "Uploads assembled and committed.",
		}),
		uploadRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "upload", Name: "restarts_total",
			Help: "In-flight uploads discarded because a chunk declared different parameters.",
		}),
		dedupShortcuts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "upload", Name: "dedup_shortcuts_total",
			Help: "Uploads satisfied by a trusted hash of already stored content.",
		}),
		pagesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pages", Name: "written_total",
			Help: "Content pages written.",
		}),
		pageBytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pages", Name: "written_bytes_total",
			Help: "Bytes of content pages written.",
		}),
		pagesPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pages", Name: "purged_total",
			Help: "Content pages deleted after their hash lost its last path.",
		}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "delivery", Name: "responses_total",
			Help: "Resolved requests by status code.",
		}, []string{"status"}),
		continuations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "delivery", Name: "continuations_total",
			Help: "Continuation token follow-up reads.",
		}),
		bytesServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "delivery", Name: "bytes_total",
			Help: "Body bytes returned by resolve and continuation reads.",
		}),
	}
	registerer.MustRegister(
		m.chunksReceived, m.uploadsCompleted, m.uploadRestarts, m.dedupShortcuts,
		m.pagesWritten, m.pageBytesWritten, m.pagesPurged,
		m.responses, m.continuations, m.bytesServed,
	)
	return m
}

// ChunkReceived records one chunk accepted into an in-flight upload.
func (m *Metrics) ChunkReceived() {
	if m != nil {
		m.chunksReceived.Inc()
	}
}

// UploadCompleted records an upload whose last chunk arrived and was
// committed to the directory.
func (m *Metrics) UploadCompleted() {
	if m != nil {
		m.uploadsCompleted.Inc()
	}
}

// UploadRestarted records a partial upload discarded because a chunk
// declared a different hash, size or chunk size.
func (m *Metrics) UploadRestarted() {
	if m != nil {
		m.uploadRestarts.Inc()
	}
}

// DedupShortcut records a trusted upload bound to existing content
// without assembling it.
func (m *Metrics) DedupShortcut() {
	if m != nil {
		m.dedupShortcuts.Inc()
	}
}

// PageWritten records one content page of size bytes written to the
// page store.
func (m *Metrics) PageWritten(size uint64) {
	if m != nil {
		m.pagesWritten.Inc()
		m.pageBytesWritten.Add(float64(size))
	}
}

// PagesPurged records count pages deleted when a hash lost its last
// path.
func (m *Metrics) PagesPurged(count int) {
	if m != nil {
		m.pagesPurged.Add(float64(count))
	}
}

// Response records a resolved request and the body bytes it carried.
func (m *Metrics) Response(status int, bodyBytes int) {
	if m != nil {
		m.responses.WithLabelValues(strconv.Itoa(status)).Inc()
		m.bytesServed.Add(float64(bodyBytes))
	}
}

// Continuation records one continuation read.
func (m *Metrics) Continuation(bodyBytes int) {
	if m != nil {
		m.continuations.Inc()
		m.bytesServed.Add(float64(bodyBytes))
	}
}
