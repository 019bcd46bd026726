/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/krishimitra-ai/krishimitra/internal/chatclient"
	"github.com/krishimitra-ai/krishimitra/internal/gateway"
	"github.com/krishimitra-ai/krishimitra/internal/tui"
)

var (
	chatURL     string
	chatLang    string
	chatTopK    int
	chatRaw     bool
	chatMessage string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with a running server from the terminal",
	Long: `Open an interactive chat against a krishimitra server, or send a single
question with --message and print the streamed answer.

Examples:
  # Interactive session in Hindi
  krishimitra chat --lang hi

  # One question, printed to stdout
  krishimitra chat -m "When should I sow wheat?"`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVar(&chatURL, "url", "", "Server URL (defaults to the configured listen address on localhost)")
	chatCmd.Flags().StringVar(&chatLang, "lang", "", "Answer language (server default when empty)")
	chatCmd.Flags().IntVar(&chatTopK, "top-k", 0, "Documents to retrieve (server default when 0)")
	chatCmd.Flags().BoolVar(&chatRaw, "raw", false, "Use the plain-text protocol instead of typed events")
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Send one message and print the answer")
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	url := chatURL
	if url == "" {
		url = localURL(cfg.Server.Addr)
	}
	var opts []chatclient.Option
	if chatRaw {
		opts = append(opts, chatclient.WithRawText())
	}
	client := chatclient.New(url, opts...)

	if chatMessage != "" {
		return ask(cmd, client)
	}

	if err := client.Health(ctx); err != nil {
		ctrl.Log.WithName("chat").Info("server health check failed", "url", url, "error", err.Error())
	}
	return tui.New(client, tui.Options{
		Assistant: cfg.Assistant.Name,
		Lang:      chatLang,
		TopK:      chatTopK,
		Server:    url,
	}).Run(ctx)
}

func ask(cmd *cobra.Command, client *chatclient.Client) error {
	out := cmd.OutOrStdout()
	req := gateway.ChatRequest{
		Turns: []gateway.Turn{{Role: "user", Content: chatMessage}},
		Lang:  chatLang,
	}
	if chatTopK > 0 {
		req.TopK = &chatTopK
	}
	_, err := client.Stream(cmd.Context(), req, func(s string) { fmt.Fprint(out, s) })
	fmt.Fprintln(out)

	var streamErr *chatclient.StreamError
	if errors.As(err, &streamErr) {
		return fmt.Errorf("answer incomplete: %s", streamErr.Message)
	}
	return err
}

// localURL turns a listen address such as ":8787" into a client URL.
func localURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}
