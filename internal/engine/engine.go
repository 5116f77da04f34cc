// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"errors"

	"github.com/jeranaias/forgechat/internal/conversation"
)

// =============================================================================
// SINK
// =============================================================================

// Sink receives text fragments as the engine decodes them. Put may block;
// the engine treats a blocked sink as back-pressure, not failure.
type Sink interface {
	Put(fragment string)
}

// =============================================================================
// SAMPLING OPTIONS
// =============================================================================

// Options are the sampling parameters recognized by the inference server.
type Options struct {
	// MaxNewTokens caps how many new tokens to generate. Must be > 0.
	MaxNewTokens int

	// DoSample enables randomness; false means greedy search.
	DoSample bool

	// TopK limits sampling to the K most probable tokens. 0 disables.
	TopK int

	// TopP is the nucleus sampling probability mass, in [0, 1].
	TopP float64

	// Temperature cools the distribution, in [0, 1]. 0 is greedy.
	Temperature float64

	// Seed forces reproducible generation when non-nil.
	Seed *int64
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if o.MaxNewTokens <= 0 {
		return errors.New("max new tokens must be positive")
	}
	if o.TopK < 0 {
		return errors.New("top-k must be >= 0")
	}
	if o.TopP < 0 || o.TopP > 1 {
		return errors.New("top-p must be in [0, 1]")
	}
	if o.Temperature < 0 || o.Temperature > 1 {
		return errors.New("temperature must be in [0, 1]")
	}
	return nil
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine is the model inference black box.
//
// Both generation calls mutate conv in place: the accumulated (and
// possibly post-processed) model text lands in the trailing model turn,
// and the engine may truncate older exchanges to fit its context window.
// Fragments are pushed to sink in decode order before the call returns.
type Engine interface {
	// GenerateTurn produces a fresh model turn. conv must already end
	// with the (prompt, "") placeholder exchange.
	GenerateTurn(ctx context.Context, prompt string, conv *conversation.Conversation, opts Options, sink Sink) error

	// ContinueTurn extends the trailing model turn. Fragments carry only
	// the newly generated text; the engine appends them to the existing
	// turn in conv.
	ContinueTurn(ctx context.Context, conv *conversation.Conversation, opts Options, sink Sink) error

	// ContextWindowSize reports the model's context window in tokens.
	ContextWindowSize(ctx context.Context) (int, error)
}
