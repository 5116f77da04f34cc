// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"time"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrChannelEmpty is returned by Next when no fragment arrived within
	// the timeout window. It is a transient signal: the caller decides
	// whether the producer failed or merely stalled.
	ErrChannelEmpty = errors.New("token channel empty")

	// ErrChannelClosed is returned by Next once the channel is closed and
	// fully drained. It is the end-of-stream marker.
	ErrChannelClosed = errors.New("token channel closed")
)

// =============================================================================
// TOKEN CHANNEL
// =============================================================================

// TokenChannel is a bounded single-producer/single-consumer queue of text
// fragments. Put blocks while the channel is full; Next blocks up to a
// timeout. Fragments are delivered in production order, none dropped or
// duplicated.
type TokenChannel struct {
	ch chan string
}

// NewTokenChannel creates a token channel with capacity 1. The single-slot
// buffer gives the producer one token of slack while keeping hard
// back-pressure from the consumer.
func NewTokenChannel() *TokenChannel {
	return NewTokenChannelSize(1)
}

// NewTokenChannelSize creates a token channel with the given capacity.
// Sizes below 1 are clamped to 1.
func NewTokenChannelSize(size int) *TokenChannel {
	if size < 1 {
		size = 1
	}
	return &TokenChannel{ch: make(chan string, size)}
}

// Put enqueues a fragment, blocking until the consumer makes room.
// Put must not be called after Close.
func (c *TokenChannel) Put(fragment string) {
	c.ch <- fragment
}

// Close marks end-of-stream. Fragments already enqueued remain readable;
// once drained, Next returns ErrChannelClosed.
func (c *TokenChannel) Close() {
	close(c.ch)
}

// Next returns the next fragment, blocking up to timeout. It returns
// ErrChannelEmpty if the window elapses with no fragment, and
// ErrChannelClosed once the stream has ended and all fragments were read.
func (c *TokenChannel) Next(timeout time.Duration) (string, error) {
	// Fast path: a buffered fragment or an already-closed channel should
	// not pay for a timer.
	select {
	case fragment, ok := <-c.ch:
		if !ok {
			return "", ErrChannelClosed
		}
		return fragment, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case fragment, ok := <-c.ch:
		if !ok {
			return "", ErrChannelClosed
		}
		return fragment, nil
	case <-timer.C:
		return "", ErrChannelEmpty
	}
}

// TryNext returns a buffered fragment without blocking. The bool reports
// whether a fragment was available; err is ErrChannelClosed after
// end-of-stream.
func (c *TokenChannel) TryNext() (string, bool, error) {
	select {
	case fragment, ok := <-c.ch:
		if !ok {
			return "", false, ErrChannelClosed
		}
		return fragment, true, nil
	default:
		return "", false, nil
	}
}
