/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

// Package metrics holds the Prometheus collectors and the tracer shared by
// the chat gateway and the ingestion job.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

// Prometheus metrics
var (
	ChatRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "krishimitra_chat_requests_total",
			Help: "Chat requests by outcome (ok, rejected, failed, stream_error, cancelled)",
		},
		[]string{"outcome"},
	)
	ChatStreamBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "krishimitra_chat_stream_bytes_total",
			Help: "Bytes of completion text forwarded to callers",
		},
	)
	RetrievalDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "krishimitra_retrieval_duration_seconds",
			Help:    "Time spent scoring the corpus for one query",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
	)
	IndexSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "krishimitra_index_chunks",
			Help: "Number of chunks in the most recently loaded snapshot",
		},
	)
	ProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "krishimitra_provider_requests_total",
			Help: "Provider call attempts by operation and outcome (ok, retry, error)",
		},
		[]string{"op", "outcome"},
	)
	QueryCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "krishimitra_query_cache_lookups_total",
			Help: "Query embedding cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)
	IngestedChunks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "krishimitra_ingested_chunks_total",
			Help: "Chunks written by ingestion runs",
		},
	)
)

var tracer = otel.Tracer("krishimitra.ai/rag")

func init() {
	metrics.Registry.MustRegister(ChatRequests, ChatStreamBytes, RetrievalDuration, IndexSize, ProviderRequests, QueryCacheLookups, IngestedChunks)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})
}

// StartSpan starts a span for one pipeline stage.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordError marks the span as failed.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.AddEvent("error", trace.WithAttributes(attribute.String("error.message", err.Error())))
}
