// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generate

import (
	"github.com/jeranaias/forgechat/internal/conversation"
)

// =============================================================================
// GENERATION MODES
// =============================================================================

// Mode selects how a session pre-transforms the conversation before the
// inference worker starts.
type Mode int

const (
	// ModeFresh appends the prompt as a new user turn and generates a new
	// model turn from the full history.
	ModeFresh Mode = iota

	// ModeContinue extends the trailing model turn; no new user turn is
	// added and fragments append to the existing text.
	ModeContinue

	// ModeRetry discards the trailing exchange, recovers its user text as
	// the prompt, and regenerates against the truncated history.
	ModeRetry
)

// String returns the mode name for logging.
func (m Mode) String() string {
	switch m {
	case ModeFresh:
		return "fresh"
	case ModeContinue:
		return "continue"
	case ModeRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// transform is the result of a mode's pre-transform step: the prompt the
// worker receives (empty for continue), the text seeding the streaming
// accumulator, and a rollback restoring the canonical conversation to its
// pre-request shape.
type transform struct {
	prompt   string
	base     string
	rollback func(conv *conversation.Conversation)
}

// apply mutates conv according to the mode and returns the transform
// descriptor. Continue and retry require at least one complete exchange.
func (m Mode) apply(conv *conversation.Conversation, prompt string) (transform, error) {
	switch m {
	case ModeContinue:
		if conv.TurnCount() == 0 {
			return transform{}, conversation.ErrNoTurns
		}
		prior := conv.LastModelTurn()
		return transform{
			base: prior,
			rollback: func(c *conversation.Conversation) {
				c.SetLastModelTurn(prior)
			},
		}, nil

	case ModeRetry:
		user, model, err := conv.RemoveLastExchange()
		if err != nil {
			return transform{}, err
		}
		conv.AppendUserTurn(user)
		return transform{
			prompt: conv.LastUserTurn(),
			rollback: func(c *conversation.Conversation) {
				_, _, _ = c.RemoveLastExchange()
				c.AppendExchange(user, model)
			},
		}, nil

	default: // ModeFresh
		conv.AppendUserTurn(prompt)
		return transform{
			prompt: conv.LastUserTurn(),
			rollback: func(c *conversation.Conversation) {
				_, _, _ = c.RemoveLastExchange()
			},
		}, nil
	}
}
