// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"testing"
	"time"
)

// =============================================================================
// TOKEN CHANNEL TESTS
// =============================================================================

func TestTokenChannelOrdering(t *testing.T) {
	c := NewTokenChannel()

	go func() {
		c.Put("a")
		c.Put("b")
		c.Put("c")
		c.Close()
	}()

	var got []string
	for {
		fragment, err := c.Next(time.Second)
		if errors.Is(err, ErrChannelClosed) {
			break
		}
		if err != nil {
			t.Fatalf("Next returned unexpected error: %v", err)
		}
		got = append(got, fragment)
	}

	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d fragments, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Fragment %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestTokenChannelTimeout(t *testing.T) {
	c := NewTokenChannel()

	start := time.Now()
	_, err := c.Next(20 * time.Millisecond)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrChannelEmpty) {
		t.Fatalf("Expected ErrChannelEmpty, got %v", err)
	}
	if elapsed < 20*time.Millisecond {
		t.Errorf("Next returned before the timeout elapsed (%v)", elapsed)
	}
}

func TestTokenChannelClosedDrains(t *testing.T) {
	c := NewTokenChannel()
	c.Put("last")
	c.Close()

	fragment, err := c.Next(time.Second)
	if err != nil {
		t.Fatalf("Expected buffered fragment after close, got error: %v", err)
	}
	if fragment != "last" {
		t.Errorf("Expected %q, got %q", "last", fragment)
	}

	_, err = c.Next(time.Second)
	if !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("Expected ErrChannelClosed after drain, got %v", err)
	}
}

func TestTokenChannelBackpressure(t *testing.T) {
	c := NewTokenChannel()
	c.Put("fill") // occupies the single slot

	blocked := make(chan struct{})
	go func() {
		c.Put("second") // must block until the consumer drains
		close(blocked)
	}()

	select {
	case <-blocked:
		t.Fatal("Put did not block on a full channel")
	case <-time.After(30 * time.Millisecond):
	}

	if _, err := c.Next(time.Second); err != nil {
		t.Fatalf("Next failed: %v", err)
	}

	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("Put did not unblock after drain")
	}
}

func TestTokenChannelTryNext(t *testing.T) {
	c := NewTokenChannel()

	if _, ok, err := c.TryNext(); ok || err != nil {
		t.Fatalf("Expected empty TryNext, got ok=%v err=%v", ok, err)
	}

	c.Put("x")
	fragment, ok, err := c.TryNext()
	if !ok || err != nil {
		t.Fatalf("Expected fragment, got ok=%v err=%v", ok, err)
	}
	if fragment != "x" {
		t.Errorf("Expected %q, got %q", "x", fragment)
	}

	c.Close()
	if _, ok, err := c.TryNext(); ok || !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("Expected ErrChannelClosed, got ok=%v err=%v", ok, err)
	}
}

// =============================================================================
// WORKER TESTS
// =============================================================================

func TestWorkerSuccess(t *testing.T) {
	w := Submit(func() error { return nil })

	if err := w.Wait(); err != nil {
		t.Fatalf("Expected nil error, got %v", err)
	}
	if !w.Done() {
		t.Error("Done should report true after Wait")
	}
	if err := w.Err(); err != nil {
		t.Errorf("Err should be nil after success, got %v", err)
	}
}

func TestWorkerFailure(t *testing.T) {
	boom := errors.New("boom")
	w := Submit(func() error { return boom })

	if err := w.Wait(); !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}
	if err := w.Err(); !errors.Is(err, boom) {
		t.Errorf("Err should surface the failure, got %v", err)
	}
}

func TestWorkerErrNonBlockingWhileRunning(t *testing.T) {
	release := make(chan struct{})
	w := Submit(func() error {
		<-release
		return errors.New("late failure")
	})

	// Still running: Err must return nil without blocking.
	if w.Done() {
		t.Fatal("Done should be false while the worker is running")
	}
	if err := w.Err(); err != nil {
		t.Fatalf("Err should be nil while running, got %v", err)
	}

	close(release)
	if err := w.Wait(); err == nil {
		t.Fatal("Expected failure after release")
	}
}

func TestWorkerPanicCaptured(t *testing.T) {
	w := Submit(func() error { panic("model exploded") })

	err := w.Wait()
	if err == nil {
		t.Fatal("Expected error from recovered panic")
	}
	if got := err.Error(); got != "generation panicked: model exploded" {
		t.Errorf("Unexpected panic error message: %q", got)
	}
}
