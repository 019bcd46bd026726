/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// streamWriter forwards completion fragments to the caller. Headers are
// committed by the first Delta, Fail, or Done call, never before.
type streamWriter interface {
	Delta(text string) error
	Fail(message string) error
	Done() error
	Committed() bool
}

// wantsEvents reports whether the caller asked for the typed event
// protocol instead of raw text.
func wantsEvents(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mt == "text/event-stream" {
			return true
		}
	}
	return false
}

func newStreamWriter(w http.ResponseWriter, events bool) streamWriter {
	base := lazyWriter{w: w, rc: http.NewResponseController(w)}
	if events {
		base.contentType = "text/event-stream"
		return &eventWriter{lazyWriter: base}
	}
	base.contentType = "text/plain; charset=utf-8"
	return &rawWriter{lazyWriter: base}
}

type lazyWriter struct {
	w           http.ResponseWriter
	rc          *http.ResponseController
	contentType string
	committed   bool
}

func (l *lazyWriter) Committed() bool { return l.committed }

func (l *lazyWriter) commit() {
	if l.committed {
		return
	}
	l.committed = true
	h := l.w.Header()
	h.Set("Content-Type", l.contentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Content-Type-Options", "nosniff")
	if l.contentType == "text/event-stream" {
		h.Set("Connection", "keep-alive")
	}
	l.w.WriteHeader(http.StatusOK)
}

func (l *lazyWriter) write(s string) error {
	l.commit()
	if _, err := fmt.Fprint(l.w, s); err != nil {
		return err
	}
	if err := l.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

// rawWriter writes deltas as bare text and a failure as a trailing marker.
type rawWriter struct {
	lazyWriter
}

func (r *rawWriter) Delta(text string) error { return r.write(text) }

func (r *rawWriter) Fail(message string) error { return r.write(ErrorMarker + message) }

func (r *rawWriter) Done() error {
	r.commit()
	return nil
}

// eventWriter writes one "data: <json>" frame per event.
type eventWriter struct {
	lazyWriter
}

func (e *eventWriter) send(ev StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return e.write(fmt.Sprintf("data: %s\n\n", data))
}

func (e *eventWriter) Delta(text string) error {
	return e.send(StreamEvent{Type: EventDelta, Text: text})
}

func (e *eventWriter) Fail(message string) error {
	return e.send(StreamEvent{Type: EventError, Message: message})
}

func (e *eventWriter) Done() error { return e.send(StreamEvent{Type: EventDone}) }
