/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

// Package gateway implements the retrieval-augmented chat endpoint.
//
// A chat request moves through validation, snapshot load, query embedding,
// retrieval, and prompt assembly before any response byte is written. Up to
// that point every failure is reported with an HTTP status and a JSON error
// body. Once the first completion fragment is forwarded the status is fixed
// at 200, and a later failure can only be reported in-band: as a trailing
// "[Error] <message>" marker in plain-text mode, or as an "error" event when
// the caller asked for text/event-stream.
package gateway

import "github.com/krishimitra-ai/krishimitra/internal/completion"

// Turn is one chat message supplied by the caller.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Turns []Turn `json:"turns"`
	Lang  string `json:"lang,omitempty"`
	TopK  *int   `json:"topK,omitempty"`
}

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message string              `json:"message"`
	Type    string              `json:"type"`
	Code    string              `json:"code"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// Event types of the text/event-stream protocol.
const (
	EventDelta = "delta"
	EventError = "error"
	EventDone  = "done"
)

// StreamEvent is one frame of the text/event-stream protocol.
type StreamEvent struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK bool `json:"ok"`
}

// ErrorMarker prefixes an in-band failure in plain-text responses.
const ErrorMarker = "[Error] "

var validRoles = map[string]completion.Role{
	"user":      completion.RoleUser,
	"assistant": completion.RoleAssistant,
	"system":    completion.RoleSystem,
}
