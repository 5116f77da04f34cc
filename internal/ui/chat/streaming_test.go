// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"testing"
	"time"
)

func TestStreamingBufferFlushRespectsFrameGap(t *testing.T) {
	sb := NewStreamingBuffer()

	sb.Set("Hi")
	text, ok := sb.Flush()
	if !ok || text != "Hi" {
		t.Fatalf("first flush = (%q, %v), want (\"Hi\", true)", text, ok)
	}

	// Immediately after a flush the frame gap has not elapsed.
	sb.Set("Hi there")
	if _, ok := sb.Flush(); ok {
		t.Error("flush within the frame gap should be suppressed")
	}

	time.Sleep(40 * time.Millisecond)
	text, ok = sb.Flush()
	if !ok || text != "Hi there" {
		t.Errorf("post-gap flush = (%q, %v), want (\"Hi there\", true)", text, ok)
	}
}

func TestStreamingBufferLatestWins(t *testing.T) {
	sb := NewStreamingBuffer()

	sb.Set("a")
	sb.Set("ab")
	sb.Set("abc")

	text, ok := sb.Flush()
	if !ok || text != "abc" {
		t.Errorf("Flush = (%q, %v), want latest text", text, ok)
	}
}

func TestStreamingBufferCleanFlushReturnsNothing(t *testing.T) {
	sb := NewStreamingBuffer()
	if _, ok := sb.Flush(); ok {
		t.Error("empty buffer should not flush")
	}
	if _, ok := sb.ForceFlush(); ok {
		t.Error("empty buffer should not force-flush")
	}
}

func TestStreamingBufferForceFlushIgnoresFrameGap(t *testing.T) {
	sb := NewStreamingBuffer()

	sb.Set("partial")
	sb.Flush()
	sb.Set("partial done")

	text, ok := sb.ForceFlush()
	if !ok || text != "partial done" {
		t.Errorf("ForceFlush = (%q, %v), want (\"partial done\", true)", text, ok)
	}
}

func TestStreamingBufferReset(t *testing.T) {
	sb := NewStreamingBuffer()
	sb.Set("stale")
	sb.Reset()

	if _, ok := sb.ForceFlush(); ok {
		t.Error("reset buffer should hold nothing")
	}
}

func TestStreamingBufferConcurrentAccess(t *testing.T) {
	sb := NewStreamingBuffer()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			sb.Set("text")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			sb.Flush()
		}
	}()
	wg.Wait()
}

func TestCancelManagerIsIdempotent(t *testing.T) {
	cm := newCancelManager()
	cm.cancel() // no function set

	calls := 0
	cm.set(func() { calls++ })
	cm.cancel()
	cm.cancel()
	if calls != 1 {
		t.Errorf("cancel calls = %d, want 1", calls)
	}
}

func TestCancelManagerSetCancelsPrevious(t *testing.T) {
	cm := newCancelManager()

	firstCancelled := false
	cm.set(func() { firstCancelled = true })
	cm.set(func() {})

	if !firstCancelled {
		t.Error("replacing a cancel function should cancel the previous context")
	}
}
