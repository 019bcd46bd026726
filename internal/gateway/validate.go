/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// Bounds for the caller-supplied topK.
const (
	MinTopK = 1
	MaxTopK = 10
)

var errBodyTooLarge = errors.New("request body too large")

// ValidationError describes a malformed chat request, keyed by field path.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// blankQuery rejects an empty last turn. It applies only when the turn will
// be embedded as the retrieval query.
func blankQuery(turns []Turn) error {
	n := len(turns)
	if n == 0 || strings.TrimSpace(turns[n-1].Content) != "" {
		return nil
	}
	verr := &ValidationError{}
	verr.add(fmt.Sprintf("turns[%d].content", n-1), "the last turn must not be empty")
	return verr
}

func (e *ValidationError) empty() bool { return len(e.Fields) == 0 }

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], "; "))
	}
	return "invalid request: " + strings.Join(parts, ", ")
}

// wireRequest accepts "messages" as an alias for "turns" and keeps topK as
// a raw number so non-integers are reported as a field error.
type wireRequest struct {
	Turns    []Turn       `json:"turns"`
	Messages []Turn       `json:"messages"`
	Lang     *string      `json:"lang"`
	TopK     *json.Number `json:"topK"`
}

// decodeChatRequest parses a request body. Malformed JSON and field-level
// problems are both returned as *ValidationError.
func decodeChatRequest(body io.Reader) (ChatRequest, error) {
	var wire wireRequest
	if err := json.NewDecoder(body).Decode(&wire); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return ChatRequest{}, fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, maxErr.Limit)
		}
		verr := &ValidationError{}
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &typeErr) && typeErr.Field != "":
			verr.add(typeErr.Field, fmt.Sprintf("expected %s", typeErr.Type))
		case errors.Is(err, io.EOF):
			verr.add("body", "request body is empty")
		default:
			verr.add("body", "invalid JSON: "+err.Error())
		}
		return ChatRequest{}, verr
	}

	req := ChatRequest{Turns: wire.Turns}
	if req.Turns == nil {
		req.Turns = wire.Messages
	}
	if wire.Lang != nil {
		req.Lang = *wire.Lang
	}

	verr := &ValidationError{}
	if wire.TopK != nil {
		k, err := wire.TopK.Int64()
		if err != nil {
			verr.add("topK", fmt.Sprintf("must be an integer between %d and %d", MinTopK, MaxTopK))
		} else {
			n := int(k)
			req.TopK = &n
		}
	}
	if !verr.empty() {
		return ChatRequest{}, verr
	}
	return req, nil
}

// validate checks the decoded request and fills in defaults.
func validate(req *ChatRequest, defaultLang string, defaultTopK int) error {
	verr := &ValidationError{}

	if len(req.Turns) == 0 {
		verr.add("turns", "at least one turn is required")
	}
	for i, t := range req.Turns {
		if _, ok := validRoles[t.Role]; !ok {
			verr.add(fmt.Sprintf("turns[%d].role", i), `must be one of "user", "assistant", "system"`)
		}
	}

	req.Lang = strings.TrimSpace(req.Lang)
	if req.Lang == "" {
		req.Lang = defaultLang
	} else if len(req.Lang) > 35 {
		verr.add("lang", "must be a language tag of at most 35 characters")
	}

	if req.TopK == nil {
		k := defaultTopK
		req.TopK = &k
	} else if *req.TopK < MinTopK || *req.TopK > MaxTopK {
		verr.add("topK", fmt.Sprintf("must be an integer between %d and %d", MinTopK, MaxTopK))
	}

	if !verr.empty() {
		return verr
	}
	return nil
}
