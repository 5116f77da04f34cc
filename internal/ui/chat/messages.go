// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file defines all Bubble Tea message types used by the chat
// interface. Messages are organized into the following categories:
//   - Generation: session start, partial results, settlement
//   - Engine: health checks and status
//   - UI State: streaming ticks and resize events
package chat

import (
	"time"

	"github.com/jeranaias/forgechat/internal/conversation"
)

// =============================================================================
// GENERATION MESSAGES
// =============================================================================

// GenPartialMsg delivers one partial result from the in-flight session.
type GenPartialMsg struct {
	// Text is the streaming model turn so far.
	Text string
	// IsFirst is true for the first fragment of a request.
	IsFirst bool
}

// GenFinalMsg signals successful settlement with the canonical
// conversation.
type GenFinalMsg struct {
	Conv    *conversation.Conversation
	Text    string
	Elapsed time.Duration
}

// GenErrorMsg signals a failed or timed out settlement.
type GenErrorMsg struct {
	Err     error
	Elapsed time.Duration
}

// GenLoggedMsg reports the outcome of the settlement logging, which is
// best-effort and only surfaced in the status line on failure.
type GenLoggedMsg struct {
	Err error
}

// =============================================================================
// ENGINE MESSAGES
// =============================================================================

// EngineStatusMsg reports inference server reachability.
type EngineStatusMsg struct {
	Running bool
	Window  int
	Err     error
}

// =============================================================================
// UI STATE MESSAGES
// =============================================================================

// StreamTickMsg drives the capped-rate flush of the streaming buffer.
type StreamTickMsg struct {
	Time time.Time
}
