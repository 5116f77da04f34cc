// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file implements streaming render batching. The StreamingBuffer
// holds the latest streamed text and releases it to the view at a capped
// frame rate, so a fast token stream does not force a render per token.
package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// STREAMING BUFFER
// =============================================================================

// StreamingBuffer coalesces streamed text for rendering. Partial results
// overwrite the pending text (each carries the full turn so far); the
// view picks it up on the next tick, at most maxFPS times per second.
//
// Thread-safety: partial results arrive from command goroutines while
// flushes happen on the Bubble Tea loop, so all operations take a mutex.
type StreamingBuffer struct {
	mu        sync.Mutex
	text      string
	dirty     bool
	lastFlush time.Time

	minFlushGap time.Duration
}

// NewStreamingBuffer creates a streaming buffer capped at 30fps.
func NewStreamingBuffer() *StreamingBuffer {
	return NewStreamingBufferWithFPS(30)
}

// NewStreamingBufferWithFPS creates a streaming buffer with a custom
// frame cap. Values outside 1..60 fall back to 30.
func NewStreamingBufferWithFPS(maxFPS int) *StreamingBuffer {
	if maxFPS <= 0 || maxFPS > 60 {
		maxFPS = 30
	}
	return &StreamingBuffer{
		minFlushGap: time.Second / time.Duration(maxFPS),
	}
}

// Set stores the latest streamed text.
func (sb *StreamingBuffer) Set(text string) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.text = text
	sb.dirty = true
}

// Flush returns the pending text if the frame gap has elapsed. The bool
// reports whether the view should re-render.
func (sb *StreamingBuffer) Flush() (string, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if !sb.dirty || time.Since(sb.lastFlush) < sb.minFlushGap {
		return "", false
	}
	sb.dirty = false
	sb.lastFlush = time.Now()
	return sb.text, true
}

// ForceFlush returns the pending text regardless of the frame gap. Used
// at settlement so the last fragment is never held back.
func (sb *StreamingBuffer) ForceFlush() (string, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if !sb.dirty {
		return "", false
	}
	sb.dirty = false
	sb.lastFlush = time.Now()
	return sb.text, true
}

// Reset clears the buffer for a new request.
func (sb *StreamingBuffer) Reset() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.text = ""
	sb.dirty = false
	sb.lastFlush = time.Time{}
}

// =============================================================================
// STREAMING TICK COMMAND
// =============================================================================

// streamTickCmd creates a tea.Cmd that sends StreamTickMsg at ~30fps
// while a generation is in flight.
func streamTickCmd() tea.Cmd {
	return tea.Tick(33*time.Millisecond, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}
