// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file renders the chat layout: header, conversation viewport,
// input area, and status bar.
package chat

import (
	"strings"
	"time"

	"github.com/jeranaias/forgechat/internal/generate"
)

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.theme.InputContainer.Render(m.textarea.View()))
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n")
	b.WriteString(m.theme.HelpLine.Render(m.keys.HelpLine()))
	return b.String()
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("forgechat")
	model := m.cfg.Server.Model
	return m.theme.Header.Render(title + " · " + model)
}

func (m Model) renderStatusBar() string {
	var status string
	switch {
	case m.generating:
		status = m.theme.StatusBusy.Render(m.spin.View() + "generating (" + m.mode.String() + ")")
	case m.statusErr != "":
		status = m.theme.StatusError.Render(m.statusErr)
	case !m.engineUp:
		status = m.theme.StatusError.Render("offline")
	default:
		status = m.theme.StatusIdle.Render("ready")
	}

	if m.cfg.UI.ShowLatency && m.lastLatency > 0 && !m.generating {
		status += m.theme.LatencyNote.Render("  " + m.lastLatency.Round(time.Millisecond).String())
	}
	return m.theme.StatusBar.Render(status)
}

// =============================================================================
// CONVERSATION RENDERING
// =============================================================================

// refreshViewport rebuilds the viewport content from the display
// snapshot plus any in-flight streaming text.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	pairs := m.display.Pairs()

	// While continuing, the last committed pair is the one being
	// extended; its streamed form replaces it below.
	if m.generating && m.mode == generate.ModeContinue && len(pairs) > 0 {
		pairs = pairs[:len(pairs)-1]
	}

	var b strings.Builder
	for _, pair := range pairs {
		m.renderPair(&b, pair.User, pair.Model, false)
	}

	if m.generating {
		user := m.lastPrompt
		if m.mode == generate.ModeContinue {
			user = m.display.LastUserTurn()
		}
		text := m.streamText
		if text == "" {
			text = "..."
		}
		m.renderPair(&b, user, text, true)
	}

	m.viewport.SetContent(b.String())
}

func (m *Model) renderPair(b *strings.Builder, user, model string, streaming bool) {
	if user != "" {
		b.WriteString(m.theme.UserLabel.Render("You"))
		b.WriteString("\n")
		b.WriteString(m.theme.UserText.Render(user))
		b.WriteString("\n\n")
	}
	if model == "" {
		return
	}

	b.WriteString(m.theme.ModelLabel.Render("Model"))
	b.WriteString("\n")
	if streaming {
		b.WriteString(m.theme.Streaming.Render(model))
	} else {
		b.WriteString(m.renderMarkdown(model))
	}
	b.WriteString("\n\n")
}

// renderMarkdown renders settled model turns through glamour, falling
// back to plain text when the renderer is unavailable.
func (m *Model) renderMarkdown(text string) string {
	if m.renderer == nil {
		return m.theme.ModelText.Render(text)
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return m.theme.ModelText.Render(text)
	}
	return strings.TrimRight(out, "\n")
}

// outcomeForError maps a settlement error to its ledger outcome name.
func outcomeForError(err error) string {
	if generate.IsTimeout(err) {
		return "timed_out"
	}
	return "failed"
}
