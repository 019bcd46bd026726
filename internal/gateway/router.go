/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	ctrl "sigs.k8s.io/controller-runtime/pkg/log"
)

// RouterOptions configures the HTTP surface around the handler.
type RouterOptions struct {
	// AllowedOrigins lists CORS origins; "*" or empty allows any.
	AllowedOrigins []string
	// Metrics, when set, is served at /metrics.
	Metrics http.Handler
}

// NewRouter registers the chat, health, and metrics routes. The /api
// prefixed paths are aliases kept for browser clients.
func NewRouter(h *Handler, opts RouterOptions) *mux.Router {
	r := mux.NewRouter()

	r.Use(loggingMiddleware)
	r.Use(corsMiddleware(opts.AllowedOrigins))

	for _, prefix := range []string{"", "/api"} {
		r.HandleFunc(prefix+"/chat", h.Chat).Methods(http.MethodPost, http.MethodOptions)
		r.HandleFunc(prefix+"/health", h.Health).Methods(http.MethodGet, http.MethodOptions)
	}
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found", "invalid_request_error", "not_found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "invalid_request_error", "method_not_allowed")
	})
	return r
}

// statusRecorder captures the status for the access log. Unwrap lets
// http.ResponseController reach the underlying flusher.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// loggingMiddleware logs method, path, status, and latency.
func loggingMiddleware(next http.Handler) http.Handler {
	log := ctrl.Log.WithName("gateway.http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		log.V(1).Info("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start).String())
	})
}

// corsMiddleware answers preflight requests and sets CORS headers.
func corsMiddleware(origins []string) mux.MiddlewareFunc {
	allowAny := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAny = true
		}
		allowed[strings.TrimRight(o, "/")] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAny:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
