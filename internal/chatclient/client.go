/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

// Package chatclient is a Go client for the POST /chat endpoint. It
// understands both response protocols: typed events (requested by
// default) and plain text with a trailing error marker.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/openai/openai-go/packages/ssestream"

	"github.com/krishimitra-ai/krishimitra/internal/gateway"
)

// APIError is a structured rejection received before streaming began.
type APIError struct {
	StatusCode int
	Detail     gateway.ErrorDetail
}

func (e *APIError) Error() string {
	msg := e.Detail.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if len(e.Detail.Fields) > 0 {
		return fmt.Sprintf("chat rejected (%d): %s %v", e.StatusCode, msg, e.Detail.Fields)
	}
	return fmt.Sprintf("chat rejected (%d): %s", e.StatusCode, msg)
}

// StreamError is a failure reported after some text may already have been
// delivered. Partial holds that text.
type StreamError struct {
	Message string
	Partial string
	// Err is the underlying read failure, if any. It is the context error
	// when the caller cancelled.
	Err error
}

func (e *StreamError) Error() string { return "response interrupted: " + e.Message }

func (e *StreamError) Unwrap() error { return e.Err }

// ErrTruncated is wrapped by a StreamError when an event stream ends
// without a done event.
var ErrTruncated = errors.New("stream ended without a done event")

// Client talks to one krishimitra server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	rawText    bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) Option { return func(cl *Client) { cl.httpClient = c } }

// WithRawText requests the plain-text protocol instead of typed events.
func WithRawText() Option { return func(cl *Client) { cl.rawText = true } }

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: http.DefaultClient}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var h gateway.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil || !h.OK {
		return fmt.Errorf("server unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}

// Stream sends one chat request and calls onDelta for each text fragment
// in arrival order. It returns the complete text. A failure after
// streaming began is returned as *StreamError; a rejection before it as
// *APIError.
func (c *Client) Stream(ctx context.Context, chat gateway.ChatRequest, onDelta func(string)) (string, error) {
	if onDelta == nil {
		onDelta = func(string) {}
	}
	body, err := json.Marshal(chat)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.rawText {
		req.Header.Set("Accept", "text/plain")
	} else {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope gateway.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&envelope) == nil {
			apiErr.Detail = envelope.Error
		}
		return "", apiErr
	}

	var text string
	mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mt == "text/event-stream" {
		text, err = readEvents(resp, onDelta)
	} else {
		text, err = readRaw(resp.Body, onDelta)
	}
	var serr *StreamError
	if errors.As(err, &serr) && ctx.Err() != nil {
		serr.Err = ctx.Err()
	}
	return text, err
}

// readEvents decodes typed events until a done or error event.
func readEvents(resp *http.Response, onDelta func(string)) (string, error) {
	var text strings.Builder
	stream := ssestream.NewStream[gateway.StreamEvent](ssestream.NewDecoder(resp), nil)
	defer func() { _ = stream.Close() }()

	for stream.Next() {
		ev := stream.Current()
		switch ev.Type {
		case gateway.EventDelta:
			text.WriteString(ev.Text)
			onDelta(ev.Text)
		case gateway.EventError:
			return text.String(), &StreamError{Message: ev.Message, Partial: text.String()}
		case gateway.EventDone:
			return text.String(), nil
		}
	}
	if err := stream.Err(); err != nil {
		return text.String(), &StreamError{Message: err.Error(), Partial: text.String(), Err: err}
	}
	return text.String(), &StreamError{Message: ErrTruncated.Error(), Partial: text.String(), Err: ErrTruncated}
}

// readRaw forwards plain text, holding back any tail that could be the
// start of the error marker so the marker is never shown as content. A
// rune split across reads is also held back until it is complete.
func readRaw(r io.Reader, onDelta func(string)) (string, error) {
	var text strings.Builder
	var pending string
	buf := make([]byte, 4096)

	emit := func(s string) {
		if s != "" {
			text.WriteString(s)
			onDelta(s)
		}
	}

	for {
		n, err := r.Read(buf)
		if n > 0 {
			pending += string(buf[:n])
			if idx := strings.Index(pending, gateway.ErrorMarker); idx >= 0 {
				emit(pending[:idx])
				rest, _ := io.ReadAll(r)
				msg := pending[idx+len(gateway.ErrorMarker):] + string(rest)
				return text.String(), &StreamError{Message: msg, Partial: text.String()}
			}
			keep := markerPrefixLen(pending)
			if keep == 0 {
				keep = partialRuneLen(pending)
			}
			emit(pending[:len(pending)-keep])
			pending = pending[len(pending)-keep:]
		}
		if errors.Is(err, io.EOF) {
			emit(pending)
			return text.String(), nil
		}
		if err != nil {
			return text.String(), &StreamError{Message: err.Error(), Partial: text.String(), Err: err}
		}
	}
}

// partialRuneLen returns the length of a trailing UTF-8 sequence in s that
// has not fully arrived yet.
func partialRuneLen(s string) int {
	for n := 1; n < utf8.UTFMax && n <= len(s); n++ {
		if utf8.RuneStart(s[len(s)-n]) {
			if utf8.FullRuneInString(s[len(s)-n:]) {
				return 0
			}
			return n
		}
	}
	return 0
}

// markerPrefixLen returns the length of the longest suffix of s that is a
// proper prefix of the error marker.
func markerPrefixLen(s string) int {
	for n := min(len(gateway.ErrorMarker)-1, len(s)); n > 0; n-- {
		if strings.HasSuffix(s, gateway.ErrorMarker[:n]) {
			return n
		}
	}
	return 0
}
