// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file implements the Bubble Tea update loop.
package chat

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/forgechat/internal/generate"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EngineStatusMsg:
		m.engineUp = msg.Running
		m.window = msg.Window
		if msg.Err != nil {
			m.statusErr = "inference server unreachable"
		}
		return m, nil

	case GenPartialMsg:
		if !m.generating {
			// Settled while the poll was in flight; drop the result.
			return m, nil
		}
		if msg.IsFirst {
			// First fragment proves the server is alive and marks TTFT.
			m.firstAt = time.Now()
			m.engineUp = true
		}
		m.fragments++
		m.buffer.Set(msg.Text)
		return m, pollSessionCmd(m.session, m.started, false)

	case StreamTickMsg:
		if !m.generating {
			return m, nil
		}
		if text, ok := m.buffer.Flush(); ok {
			m.streamText = text
			m.refreshViewport()
		}
		return m, streamTickCmd()

	case GenFinalMsg:
		if text, ok := m.buffer.ForceFlush(); ok {
			m.streamText = text
		}
		logCmd := m.logSettlementCmd("succeeded", msg.Text, msg.Elapsed, m.fragments)
		m.settle(msg.Elapsed)
		m.display = msg.Conv.DeepCopy()
		m.refreshViewport()
		m.viewport.GotoBottom()
		return m, logCmd

	case GenErrorMsg:
		logCmd := m.logSettlementCmd(outcomeForError(msg.Err), "", msg.Elapsed, m.fragments)
		m.settle(msg.Elapsed)
		m.statusErr = msg.Err.Error()
		m.display = m.entry.Conv.DeepCopy()
		m.refreshViewport()
		return m, logCmd

	case GenLoggedMsg:
		if msg.Err != nil {
			m.statusErr = "transcript write failed: " + msg.Err.Error()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.spin, cmd = m.spin.Update(msg)
	cmds = append(cmds, cmd)
	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.generating {
			m.session.Abandon()
			m.cancelMgr.cancel()
			m.entry.ReleaseGeneration()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.generating {
			m.session.Abandon()
			m.settle(0)
			m.statusErr = "generation cancelled"
			m.display = m.entry.Conv.DeepCopy()
			m.refreshViewport()
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		prompt := strings.TrimSpace(m.textarea.Value())
		if prompt == "" || m.generating {
			return m, nil
		}
		m.textarea.Reset()
		cmd := m.startGeneration(generate.ModeFresh, prompt)
		m.refreshViewport()
		m.viewport.GotoBottom()
		return m, cmd

	case key.Matches(msg, m.keys.Continue):
		if m.generating {
			return m, nil
		}
		cmd := m.startGeneration(generate.ModeContinue, "")
		m.refreshViewport()
		return m, cmd

	case key.Matches(msg, m.keys.Retry):
		if m.generating {
			return m, nil
		}
		cmd := m.startGeneration(generate.ModeRetry, "")
		m.refreshViewport()
		return m, cmd

	case key.Matches(msg, m.keys.Clear):
		if m.generating {
			return m, nil
		}
		m.entry = m.reg.Reset(m.entry.Identity)
		m.display = m.entry.Conv.DeepCopy()
		m.statusErr = ""
		m.lastLatency = 0
		m.refreshViewport()
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// resize lays out the viewport and input area for a new terminal size.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.theme.Resize(width, height)

	// Header, input box, status bar, help line.
	chrome := 6
	vpHeight := height - chrome
	if vpHeight < 3 {
		vpHeight = 3
	}

	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.textarea.SetWidth(width - 4)

	if r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	); err == nil {
		m.renderer = r
	}
	m.refreshViewport()
	m.viewport.GotoBottom()
}
