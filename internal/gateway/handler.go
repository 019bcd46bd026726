/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	ctrl "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/krishimitra-ai/krishimitra/internal/completion"
	"github.com/krishimitra-ai/krishimitra/internal/metrics"
	"github.com/krishimitra-ai/krishimitra/internal/provider"
	"github.com/krishimitra-ai/krishimitra/internal/retrieval"
)

// DefaultMaxBodyBytes bounds the chat request body.
const DefaultMaxBodyBytes = 2 << 20

// Handler serves the chat and health endpoints.
type Handler struct {
	Orchestrator *Orchestrator
	Completer    completion.Completer

	// RateLimiter enforces per-client request rate limits. Nil disables it.
	RateLimiter *RateLimiter

	// MaxBodyBytes bounds the request body; 0 means DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// writeError writes the JSON error envelope.
func writeError(w http.ResponseWriter, status int, msg, errType, code string) {
	writeErrorDetail(w, status, ErrorDetail{Message: msg, Type: errType, Code: code})
}

func writeErrorDetail(w http.ResponseWriter, status int, detail ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: detail})
}

// writePipelineError maps a failure before the stream commit point to a
// status and error envelope.
func writePipelineError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	var dimErr *retrieval.DimensionMismatchError
	var perr *provider.Error
	switch {
	case errors.As(err, &verr):
		writeErrorDetail(w, http.StatusBadRequest, ErrorDetail{
			Message: "invalid request", Type: "invalid_request_error", Code: "invalid_request", Fields: verr.Fields,
		})
	case errors.Is(err, errBodyTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error(), "invalid_request_error", "body_too_large")
	case errors.As(err, &dimErr):
		writeError(w, http.StatusInternalServerError, err.Error(), "retrieval_error", "dimension_mismatch")
	case errors.As(err, &perr):
		code := "provider_failed"
		if perr.RateLimited() {
			code = "provider_rate_limited"
		}
		writeError(w, http.StatusBadGateway, perr.Detail(), "provider_error", code)
	default:
		writeError(w, http.StatusInternalServerError, err.Error(), "server_error", "internal_error")
	}
}

// Chat handles POST /chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	log := ctrl.Log.WithName("gateway.chat")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "invalid_request_error", "method_not_allowed")
		return
	}

	if h.RateLimiter != nil && !h.RateLimiter.Allow(ClientKey(r)) {
		metrics.ChatRequests.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "rate_limit_error", "rate_limit_exceeded")
		return
	}

	maxBody := h.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	req, err := decodeChatRequest(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		metrics.ChatRequests.WithLabelValues("rejected").Inc()
		writePipelineError(w, err)
		return
	}

	ctx, span := metrics.StartSpan(r.Context(), "chat")
	defer span.End()

	prepared, err := h.Orchestrator.Prepare(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			metrics.ChatRequests.WithLabelValues("cancelled").Inc()
			log.V(1).Info("client went away before streaming", "error", err.Error())
			return
		}
		var verr *ValidationError
		if errors.As(err, &verr) {
			metrics.ChatRequests.WithLabelValues("rejected").Inc()
		} else {
			metrics.ChatRequests.WithLabelValues("failed").Inc()
			metrics.RecordError(span, err)
			log.Error(err, "chat pipeline failed")
		}
		writePipelineError(w, err)
		return
	}

	events := wantsEvents(r)
	log.Info("audit: chat", "turns", len(req.Turns), "lang", prepared.Lang, "topK", prepared.TopK,
		"retrieved", len(prepared.Retrieved), "events", events)
	span.SetAttributes(attribute.Bool("events", events))

	stream, err := h.Completer.Stream(ctx, prepared.Messages)
	if err != nil {
		metrics.ChatRequests.WithLabelValues("failed").Inc()
		log.Error(err, "failed to open completion stream")
		writePipelineError(w, provider.Wrap("complete", err))
		return
	}
	defer func() { _ = stream.Close() }()

	outcome := forward(ctx, stream, newStreamWriter(w, events))
	metrics.ChatRequests.WithLabelValues(outcome.label).Inc()
	if outcome.err != nil {
		metrics.RecordError(span, outcome.err)
		log.Error(outcome.err, "completion stream failed", "committed", outcome.committed)
	}
	if outcome.label == "failed" {
		writePipelineError(w, outcome.err)
	}
}

type streamOutcome struct {
	label     string // ok, stream_error, failed, cancelled
	committed bool
	err       error
}

// forward copies fragments from s to sw in arrival order. It stops as soon
// as ctx is done or the caller stops accepting writes. A provider failure
// before anything was written is returned with label "failed" so the
// caller can still send a proper error status.
func forward(ctx context.Context, s completion.Stream, sw streamWriter) streamOutcome {
	for s.Next() {
		if ctx.Err() != nil {
			return streamOutcome{label: "cancelled", committed: sw.Committed()}
		}
		text := s.Text()
		if err := sw.Delta(text); err != nil {
			return streamOutcome{label: "cancelled", committed: true}
		}
		metrics.ChatStreamBytes.Add(float64(len(text)))
	}
	if ctx.Err() != nil {
		return streamOutcome{label: "cancelled", committed: sw.Committed()}
	}

	if err := s.Err(); err != nil {
		err = provider.Wrap("complete", err)
		if !sw.Committed() {
			return streamOutcome{label: "failed", err: err}
		}
		_ = sw.Fail(errorText(err))
		return streamOutcome{label: "stream_error", committed: true, err: err}
	}
	_ = sw.Done()
	return streamOutcome{label: "ok", committed: true}
}

func errorText(err error) string {
	var perr *provider.Error
	if errors.As(err, &perr) {
		return perr.Detail()
	}
	return err.Error()
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(HealthResponse{OK: true})
}
