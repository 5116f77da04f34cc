// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"strings"
	"time"

	"github.com/jeranaias/forgechat/internal/conversation"
)

// =============================================================================
// MOCK ENGINE
// =============================================================================

// Mock is a scripted Engine for tests. It emits Fragments in order,
// optionally failing partway, stalling, or post-processing the
// conversation it was handed after the last fragment (to simulate
// server-side truncation the streamed copy never sees).
//
// The zero value emits nothing and succeeds; failure and stall behavior
// activate only when Failure is set or Stall is true.
type Mock struct {
	// Fragments are emitted in order on each call.
	Fragments []string

	// Failure, when set, aborts the call after FailAfter fragments.
	Failure error

	// FailAfter is how many fragments to emit before failing (0 = fail
	// before the first fragment). Ignored unless Failure is set.
	FailAfter int

	// Stall, when true, blocks after StallAfter fragments until the
	// context is cancelled. Simulates a hung inference call.
	Stall bool

	// StallAfter is how many fragments to emit before stalling.
	StallAfter int

	// FragmentDelay is an optional pause before each fragment.
	FragmentDelay time.Duration

	// PostProcess, when set, runs against the conversation handed to
	// the engine after all fragments were emitted.
	PostProcess func(conv *conversation.Conversation)

	// Window is returned by ContextWindowSize.
	Window int

	// Calls records which entry points were invoked, in order.
	Calls []string
}

var _ Engine = (*Mock)(nil)

// NewMock creates a mock that emits the given fragments and succeeds.
func NewMock(fragments ...string) *Mock {
	return &Mock{Fragments: fragments, Window: 4096}
}

// GenerateTurn implements Engine.
func (m *Mock) GenerateTurn(ctx context.Context, prompt string, conv *conversation.Conversation, opts Options, sink Sink) error {
	m.Calls = append(m.Calls, "generate")
	return m.run(ctx, conv, sink, "")
}

// ContinueTurn implements Engine.
func (m *Mock) ContinueTurn(ctx context.Context, conv *conversation.Conversation, opts Options, sink Sink) error {
	m.Calls = append(m.Calls, "continue")
	return m.run(ctx, conv, sink, conv.LastModelTurn())
}

// ContextWindowSize implements Engine.
func (m *Mock) ContextWindowSize(ctx context.Context) (int, error) {
	if m.Window == 0 {
		return 4096, nil
	}
	return m.Window, nil
}

func (m *Mock) run(ctx context.Context, conv *conversation.Conversation, sink Sink, base string) error {
	var acc strings.Builder

	for i, fragment := range m.Fragments {
		if m.Failure != nil && i >= m.FailAfter {
			return m.Failure
		}
		if m.Stall && i >= m.StallAfter {
			<-ctx.Done()
			return ctx.Err()
		}
		if m.FragmentDelay > 0 {
			select {
			case <-time.After(m.FragmentDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		acc.WriteString(fragment)
		if sink != nil {
			sink.Put(fragment)
		}
		conv.SetLastModelTurn(base + acc.String())
	}

	if m.Failure != nil && m.FailAfter >= len(m.Fragments) {
		return m.Failure
	}
	if m.Stall && m.StallAfter >= len(m.Fragments) {
		<-ctx.Done()
		return ctx.Err()
	}

	if m.PostProcess != nil {
		m.PostProcess(conv)
	}
	return nil
}
