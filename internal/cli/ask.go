// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot query command for the forgechat CLI.
//
// Sends a single prompt through the session core and streams the reply
// to stdout. On a TTY the settled reply is re-rendered as markdown; when
// piped, fragments stream through as plain text.
//
// Examples:
//   forgechat ask "What is a goroutine?"
//   forgechat ask --model llama2-13b-chat "Summarize this"
//   forgechat ask "prompt" | tee answer.txt
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/forgechat/internal/engine"
	"github.com/jeranaias/forgechat/internal/generate"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

var markdownRenderer *glamour.TermRenderer

func init() {
	var err error
	markdownRenderer, err = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(TerminalWidth()),
	)
	if err != nil {
		markdownRenderer = nil
	}
}

// renderMarkdown renders markdown for terminal display, falling back to
// the raw content when the renderer is unavailable.
func renderMarkdown(content string) string {
	if markdownRenderer == nil {
		return content
	}
	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// displayResponse prints a settled reply, markdown-rendered on a TTY.
func displayResponse(response string) {
	if IsStdoutTTY() {
		fmt.Print(renderMarkdown(response))
	} else {
		fmt.Print(response)
	}
}

// =============================================================================
// ASK HANDLER
// =============================================================================

// HandleAsk runs a single generation and exits.
func HandleAsk(rt *Runtime, args Args) error {
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return fmt.Errorf("ask requires a prompt, e.g. forgechat ask \"question\"")
	}

	ctx := context.Background()
	if checker, ok := rt.Engine.(interface{ CheckRunning(context.Context) error }); ok {
		if err := checker.CheckRunning(ctx); err != nil {
			if engine.IsNotRunning(err) {
				return fmt.Errorf("inference server is not reachable at %s", rt.Config.Server.URL)
			}
			return err
		}
	}

	entry := rt.Entry()
	if !entry.AcquireGeneration() {
		return fmt.Errorf("a generation is already in flight for %s", entry.Identity)
	}
	defer entry.ReleaseGeneration()

	if !entry.Limiter.Allow() {
		return fmt.Errorf("rate limited, try again in a moment")
	}

	s := generate.NewSession(rt.Engine, entry.Conv, rt.sessionConfig())

	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := s.Start(genCtx, generate.ModeFresh, query); err != nil {
		return err
	}

	// Stream plain text only when piped; on a TTY the reply is rendered
	// once settled so markdown comes out formatted.
	var echo io.Writer
	if !IsStdoutTTY() {
		echo = os.Stdout
	}

	out, err := drainSession(s, echo)
	outcome := outcomeName(err)

	response := ""
	if err == nil {
		response = out.Result.Text
	}
	if logErr := rt.logSettlement(entry, generate.ModeFresh, query, response, outcome, out); logErr != nil && !rt.Quiet {
		fmt.Fprintln(os.Stderr, warningStyle.Render("transcript write failed: "+logErr.Error()))
	}

	if err != nil {
		return err
	}

	if IsStdoutTTY() {
		displayResponse(out.Result.Text)
	}
	fmt.Println()

	if !rt.Quiet && IsStdoutTTY() {
		fmt.Println(infoStyle.Render(fmt.Sprintf("%d fragments in %s", out.Fragments, out.Elapsed.Round(10*time.Millisecond))))
	}
	return nil
}
