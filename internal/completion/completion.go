/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

// Package completion streams chat completions from an OpenAI-compatible
// provider.
package completion

import "context"

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a completion request.
type Message struct {
	Role    Role
	Content string
}

// Completer starts a streamed completion for an ordered message list.
type Completer interface {
	Stream(ctx context.Context, messages []Message) (Stream, error)
}

// Stream yields completion text fragments in order. Next blocks until a
// fragment is available and returns false at the end of the stream or on
// failure; Err distinguishes the two. Close releases the connection and is
// safe to call more than once.
type Stream interface {
	Next() bool
	Text() string
	Err() error
	Close() error
}
