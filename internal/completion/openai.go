/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package completion

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/krishimitra-ai/krishimitra/internal/provider"
)

// Defaults for the chat model.
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.2
)

const opComplete = "complete"

// OpenAIConfig configures an OpenAI-compatible chat client.
type OpenAIConfig struct {
	provider.Config
	Model string
	// Temperature is sent as given; nil selects DefaultTemperature.
	Temperature *float64
}

// OpenAI streams completions from /chat/completions.
type OpenAI struct {
	client      openai.Client
	model       string
	temperature float64
}

// NewOpenAI builds a completer.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	client, err := provider.NewClient(cfg.Config)
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	temperature := DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	return &OpenAI{client: client, model: cfg.Model, temperature: temperature}, nil
}

// Model returns the chat model name.
func (o *OpenAI) Model() string { return o.model }

// Stream implements Completer. Request failures surface from the first
// call to Next, not from Stream itself.
func (o *OpenAI) Stream(ctx context.Context, messages []Message) (Stream, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Temperature: openai.Float(o.temperature),
	}
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case RoleUser:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			return nil, fmt.Errorf("completion: unknown role %q", m.Role)
		}
	}
	return &openAIStream{s: o.client.Chat.Completions.NewStreaming(ctx, params)}, nil
}

type openAIStream struct {
	s      *ssestream.Stream[openai.ChatCompletionChunk]
	text   string
	closed bool
}

func (s *openAIStream) Next() bool {
	for s.s.Next() {
		chunk := s.s.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if text := chunk.Choices[0].Delta.Content; text != "" {
			s.text = text
			return true
		}
	}
	return false
}

func (s *openAIStream) Text() string { return s.text }

func (s *openAIStream) Err() error { return provider.Wrap(opComplete, s.s.Err()) }

func (s *openAIStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.s.Close()
}

var _ Completer = (*OpenAI)(nil)
