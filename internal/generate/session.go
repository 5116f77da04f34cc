// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jeranaias/forgechat/internal/conversation"
	"github.com/jeranaias/forgechat/internal/engine"
	"github.com/jeranaias/forgechat/internal/stream"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrBusy is returned by Start while a generation is already in flight.
	ErrBusy = errors.New("generation already in flight")

	// ErrSettled is returned by Next after the session reached a terminal
	// state.
	ErrSettled = errors.New("session already settled")
)

// GenerationError is the terminal failure surfaced when the inference
// worker raised. The request is not retried automatically.
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string {
	if e.Cause != nil {
		return "generation failed: " + e.Cause.Error()
	}
	return "generation failed"
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// GenerationTimeout is the terminal failure surfaced when no fragment
// arrived within the configured window and the worker reported no error.
// The caller may retry manually.
type GenerationTimeout struct {
	Elapsed time.Duration
}

func (e *GenerationTimeout) Error() string {
	return "generation timed out after " + e.Elapsed.Round(time.Millisecond).String()
}

// IsTimeout reports whether err is a stream timeout.
func IsTimeout(err error) bool {
	var timeout *GenerationTimeout
	return errors.As(err, &timeout)
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds session tuning knobs.
type Config struct {
	// Timeout is the longest gap tolerated between fragments before the
	// session settles as timed out (default: 20s).
	Timeout time.Duration

	// Sampling parameters sent with fresh and retry generations.
	Sampling engine.Options

	// ContinueTokens caps token production for continuations, which extend
	// an existing turn and need less room (default: 128). 0 keeps the
	// Sampling cap.
	ContinueTokens int
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() *Config {
	return &Config{
		Timeout:        20 * time.Second,
		Sampling:       DefaultSampling(),
		ContinueTokens: 128,
	}
}

// DefaultSampling returns the default sampling parameters.
func DefaultSampling() engine.Options {
	return engine.Options{
		MaxNewTokens: 512,
		DoSample:     true,
		TopK:         50,
		TopP:         0.90,
		Temperature:  0.8,
	}
}

// =============================================================================
// SESSION STATE
// =============================================================================

// State is the session lifecycle position. Terminal states are mutually
// exclusive and never re-enter Running.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateSucceeded
	StateFailed
	StateTimedOut
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Result is one incremental or final yield of a generation request.
type Result struct {
	// Conv is the working copy for partial results and the canonical
	// conversation for the final one.
	Conv *conversation.Conversation

	// Text is the trailing model turn at the time of the yield.
	Text string

	// Final marks the settlement yield. It is built from the canonical
	// conversation and always follows every partial result.
	Final bool
}

// =============================================================================
// STREAMING SESSION
// =============================================================================

// Session orchestrates one end-to-end generation request. Create one per
// request, Start it in a mode, then pull Results with Next until the final
// result or a terminal error. A Session is single-use and not safe for
// concurrent use; at most one generation may be in flight per conversation.
type Session struct {
	engine engine.Engine
	conv   *conversation.Conversation
	config *Config

	state   State
	mode    Mode
	copy    *conversation.Conversation
	work    *conversation.Conversation
	base    string
	acc     strings.Builder
	channel *stream.TokenChannel
	worker  *stream.Worker
	cancel  context.CancelFunc
	started time.Time

	rollback func(conv *conversation.Conversation)
}

// NewSession creates an idle session over the canonical conversation.
// A nil config gets defaults; zero-valued config fields are filled in.
func NewSession(eng engine.Engine, conv *conversation.Conversation, config *Config) *Session {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Timeout == 0 {
		config.Timeout = 20 * time.Second
	}
	if config.Sampling.MaxNewTokens == 0 {
		config.Sampling = DefaultSampling()
	}
	return &Session{
		engine: eng,
		conv:   conv,
		config: config,
		state:  StateIdle,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Conversation returns the canonical conversation.
func (s *Session) Conversation() *conversation.Conversation {
	return s.conv
}

// Start applies the mode's pre-transform and launches the inference
// worker. prompt is ignored for ModeContinue and ModeRetry.
func (s *Session) Start(ctx context.Context, mode Mode, prompt string) error {
	if s.state != StateIdle {
		if s.state == StateRunning {
			return ErrBusy
		}
		return ErrSettled
	}

	tr, err := mode.apply(s.conv, prompt)
	if err != nil {
		return err
	}

	// Both copies are taken after the pre-transform so their trailing
	// model turn is exactly the "currently streaming" placeholder. The
	// worker writes only to its own copy: the canonical conversation
	// stays untouched until the session settles, so a worker that
	// outlives a timeout or abandon cannot corrupt a later request.
	s.mode = mode
	s.copy = s.conv.DeepCopy()
	s.work = s.conv.DeepCopy()
	s.base = tr.base
	s.rollback = tr.rollback
	s.acc.Reset()
	s.channel = stream.NewTokenChannel()
	s.started = time.Now()
	s.state = StateRunning

	opts := s.config.Sampling
	if mode == ModeContinue && s.config.ContinueTokens > 0 {
		opts.MaxNewTokens = s.config.ContinueTokens
	}

	workerCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	channel := s.channel
	work := s.work
	eng := s.engine
	promptText := tr.prompt
	s.worker = stream.Submit(func() error {
		defer channel.Close()
		if mode == ModeContinue {
			return eng.ContinueTurn(workerCtx, work, opts, channel)
		}
		return eng.GenerateTurn(workerCtx, promptText, work, opts, channel)
	})

	return nil
}

// Next pulls the next result.
//
// It returns a partial result per fragment, then exactly one final result
// built from the canonical conversation. On worker failure it returns a
// *GenerationError; on a fragment gap longer than the configured timeout
// it returns a *GenerationTimeout. Both are terminal and roll the
// canonical conversation back to its pre-request shape.
func (s *Session) Next() (Result, error) {
	if s.state != StateRunning {
		return Result{}, ErrSettled
	}

	fragment, err := s.channel.Next(s.config.Timeout)
	switch {
	case err == nil:
		s.acc.WriteString(fragment)
		text := s.base + s.acc.String()
		s.copy.SetLastModelTurn(text)
		return Result{Conv: s.copy, Text: text}, nil

	case errors.Is(err, stream.ErrChannelClosed):
		// Producer finished; the channel closes before the worker records
		// its outcome, so Wait rather than poll.
		if workerErr := s.worker.Wait(); workerErr != nil {
			s.settleFailure()
			return Result{}, &GenerationError{Cause: workerErr}
		}
		s.state = StateSucceeded
		s.cancel()
		s.conv.ReplaceTurns(s.work)
		return Result{Conv: s.conv, Text: s.conv.LastModelTurn(), Final: true}, nil

	default:
		// Timeout window elapsed with no fragment. A recorded worker
		// failure settles as Failed; a silent worker settles as TimedOut.
		if workerErr := s.worker.Err(); workerErr != nil {
			s.settleFailure()
			return Result{}, &GenerationError{Cause: workerErr}
		}
		elapsed := time.Since(s.started)
		s.state = StateTimedOut
		s.settleDetached()
		return Result{}, &GenerationTimeout{Elapsed: elapsed}
	}
}

// Abandon cancels an in-flight generation and discards any result that
// materializes afterward. Safe to call in any state.
func (s *Session) Abandon() {
	if s.state != StateRunning {
		return
	}
	s.state = StateFailed
	s.settleDetached()
}

// settleFailure marks the session Failed and restores the canonical
// conversation. The worker has already terminated on this path.
func (s *Session) settleFailure() {
	s.state = StateFailed
	s.cancel()
	s.drain()
	if s.rollback != nil {
		s.rollback(s.conv)
	}
}

// settleDetached restores the canonical conversation immediately and
// leaves a goroutine behind to unblock the worker. The worker only ever
// writes its own working copy, so the rollback need not wait for it;
// callers may start the next request as soon as this returns.
func (s *Session) settleDetached() {
	s.cancel()
	if s.rollback != nil {
		s.rollback(s.conv)
	}
	channel := s.channel
	go func() {
		for {
			if _, err := channel.Next(time.Second); errors.Is(err, stream.ErrChannelClosed) {
				return
			}
		}
	}()
}

// drain discards buffered fragments until end-of-stream. Only called once
// the worker has terminated, so the loop cannot block.
func (s *Session) drain() {
	for {
		_, ok, err := s.channel.TryNext()
		if !ok || err != nil {
			return
		}
	}
}
