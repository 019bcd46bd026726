/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

// Package tui is a terminal chat client. History lives on the client and
// is sent with every turn; replies render as they stream in.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/krishimitra-ai/krishimitra/internal/chatclient"
	"github.com/krishimitra-ai/krishimitra/internal/gateway"
)

// Streamer sends one chat request and reports fragments as they arrive.
// *chatclient.Client satisfies it.
type Streamer interface {
	Stream(ctx context.Context, req gateway.ChatRequest, onDelta func(string)) (string, error)
}

// Options configures the chat session.
type Options struct {
	Assistant string
	Lang      string
	TopK      int // 0 leaves the server default
	Server    string
}

type deltaMsg string

type doneMsg struct {
	text string
	err  error
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	client Streamer
	opts   Options

	input    textinput.Model
	viewport viewport.Model
	ready    bool

	history []gateway.Turn
	// notes holds a rendered failure line per assistant turn index.
	notes map[int]string

	streaming bool
	reply     string
	events    chan tea.Msg
	cancel    context.CancelFunc
	status    string
}

var (
	styleTitle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	styleSubtle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleUser      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	styleAssistant = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	styleFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleBorder    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// New creates the chat model.
func New(client Streamer, opts Options) Model {
	if opts.Assistant == "" {
		opts.Assistant = gateway.DefaultAssistant
	}
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about crops, soil, weather... (Enter to send, Esc to stop, Ctrl+C to quit)"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		client:   client,
		opts:     opts,
		input:    ti,
		viewport: viewport.New(0, 0),
		notes:    map[int]string{},
		status:   "Connected to " + opts.Server,
	}
}

// Run starts the program and blocks until the user quits.
func (m Model) Run(ctx context.Context) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, frame := styleBorder.GetFrameSize()
		m.viewport.Width = max(20, msg.Width-frame)
		m.viewport.Height = max(3, msg.Height-frame*2-3)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case tea.KeyEsc:
			if m.streaming && m.cancel != nil {
				m.cancel()
				m.status = "Stopping..."
			}
			return m, nil
		case tea.KeyEnter:
			if m.streaming {
				return m, nil
			}
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			m.input.Reset()
			return m.send(q)
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case deltaMsg:
		m.reply += string(msg)
		m.refresh()
		return m, waitFor(m.events)

	case doneMsg:
		m.finish(msg)
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// send appends the user turn and starts streaming the reply.
func (m Model) send(q string) (tea.Model, tea.Cmd) {
	m.history = append(m.history, gateway.Turn{Role: "user", Content: q})
	req := gateway.ChatRequest{
		Turns: append([]gateway.Turn(nil), m.history...),
		Lang:  m.opts.Lang,
	}
	if m.opts.TopK > 0 {
		k := m.opts.TopK
		req.TopK = &k
	}

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan tea.Msg, 64)
	client := m.client
	go func() {
		defer close(events)
		text, err := client.Stream(ctx, req, func(s string) {
			select {
			case events <- deltaMsg(s):
			case <-ctx.Done():
			}
		})
		events <- doneMsg{text: text, err: err}
	}()

	m.streaming = true
	m.reply = ""
	m.events = events
	m.cancel = cancel
	m.status = m.opts.Assistant + " is typing..."
	m.refresh()
	return m, waitFor(events)
}

// finish records the reply. A rejected request drops the user turn so it
// can be edited and resent; an interrupted one keeps the partial reply
// with a visible failure note.
func (m *Model) finish(msg doneMsg) {
	m.streaming = false
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.events = nil
	reply := m.reply
	m.reply = ""

	var apiErr *chatclient.APIError
	var streamErr *chatclient.StreamError
	switch {
	case msg.err == nil:
		m.history = append(m.history, gateway.Turn{Role: "assistant", Content: msg.text})
		m.status = "Ready"
	case errors.Is(msg.err, context.Canceled):
		m.history = append(m.history, gateway.Turn{Role: "assistant", Content: reply})
		m.notes[len(m.history)-1] = "[stopped]"
		m.status = "Stopped"
	case errors.As(msg.err, &streamErr):
		m.history = append(m.history, gateway.Turn{Role: "assistant", Content: streamErr.Partial})
		m.notes[len(m.history)-1] = "[response interrupted: " + streamErr.Message + "]"
		m.status = "Last reply is incomplete"
	case errors.As(msg.err, &apiErr):
		m.history = m.history[:len(m.history)-1]
		m.status = "Error: " + apiErr.Error()
	default:
		m.history = m.history[:len(m.history)-1]
		m.status = "Error: " + msg.err.Error()
	}
}

func waitFor(events chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

func (m Model) transcript() string {
	wrap := lipgloss.NewStyle().Width(max(20, m.viewport.Width))
	var b strings.Builder
	for i, t := range m.history {
		if t.Role == "user" {
			b.WriteString(styleUser.Render("You") + "\n")
		} else {
			b.WriteString(styleAssistant.Render(m.opts.Assistant) + "\n")
		}
		b.WriteString(wrap.Render(t.Content) + "\n")
		if note, ok := m.notes[i]; ok {
			b.WriteString(styleFailed.Render(note) + "\n")
		}
		b.WriteString("\n")
	}
	if m.streaming {
		b.WriteString(styleAssistant.Render(m.opts.Assistant) + "\n")
		b.WriteString(wrap.Render(m.reply+"▍") + "\n")
	}
	if b.Len() == 0 {
		return styleSubtle.Render("Namaste! Ask a farming question to begin.")
	}
	return b.String()
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := styleTitle.Render(m.opts.Assistant) + styleSubtle.Render(fmt.Sprintf("  lang=%s", langOrDefault(m.opts.Lang)))
	return header + "\n" +
		styleBorder.Render(m.viewport.View()) + "\n" +
		m.input.View() + "\n" +
		styleSubtle.Render(m.status)
}

func langOrDefault(lang string) string {
	if lang == "" {
		return gateway.DefaultLang
	}
	return lang
}
