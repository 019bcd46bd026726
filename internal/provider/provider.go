/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

// Package provider holds what the embedding and completion clients share:
// construction of the OpenAI-compatible SDK client, error classification,
// and the retry policy for provider calls.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"
)

// streamErrorPrefix starts the SDK error for an in-band {"error":...}
// event on a streaming response.
const streamErrorPrefix = "received error while streaming: "

// Config identifies an OpenAI-compatible endpoint.
type Config struct {
	APIKey     string
	BaseURL    string // empty means the public OpenAI endpoint
	HTTPClient *http.Client
}

// NewClient builds an SDK client with SDK-level retries disabled; callers
// retry through Retry so every provider call follows one policy.
func NewClient(cfg Config) (openai.Client, error) {
	if cfg.APIKey == "" {
		return openai.Client{}, errors.New("provider: API key is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return openai.NewClient(opts...), nil
}

// Error wraps a failed provider call.
type Error struct {
	Op         string
	StatusCode int // 0 when the request never got an HTTP response
	Err        error
	// Malformed marks a response that arrived but could not be used.
	Malformed bool
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: provider returned %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether repeating the call may succeed: transport
// failures, timeouts, conflicts, rate limits, and server errors.
func (e *Error) Retryable() bool {
	if e.Malformed || errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
		return false
	}
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusRequestTimeout,
		e.StatusCode == http.StatusConflict,
		e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode >= 500:
		return true
	}
	return false
}

// Detail returns the provider's own error message when it sent one, and
// the wrapped error text otherwise.
func (e *Error) Detail() string {
	var apiErr *openai.Error
	if errors.As(e.Err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	msg := e.Err.Error()
	if body, ok := strings.CutPrefix(msg, streamErrorPrefix); ok {
		if m := gjson.Get(body, "message").String(); m != "" {
			return m
		}
	}
	return msg
}

// RateLimited reports whether the provider rejected the call with 429.
func (e *Error) RateLimited() bool { return e.StatusCode == http.StatusTooManyRequests }

// Wrap classifies an SDK error. A nil err returns nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &Error{Op: op, StatusCode: apiErr.StatusCode, Err: err}
	}
	return &Error{Op: op, Err: err}
}

// Malformed builds a non-retryable provider Error for a malformed response.
func Malformed(op, format string, args ...any) *Error {
	return &Error{Op: op, Err: fmt.Errorf(format, args...), Malformed: true}
}
