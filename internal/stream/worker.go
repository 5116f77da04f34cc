// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"fmt"
	"sync"
)

// =============================================================================
// GENERATION WORKER
// =============================================================================

// Worker runs exactly one function on its own goroutine and records its
// outcome. Done and Err never block, so a consumer polling a TokenChannel
// can distinguish "producer died" from "producer is slow" without hanging.
//
// A Worker is single-use: create one per generation request and discard it
// after settlement.
type Worker struct {
	mu   sync.Mutex
	done chan struct{}
	err  error
}

// Submit starts fn on a new goroutine and returns immediately. A panic
// inside fn is recovered and reported through Err rather than crashing the
// process; the inference call crossing this boundary is opaque code.
func Submit(fn func() error) *Worker {
	w := &Worker{done: make(chan struct{})}

	go func() {
		defer close(w.done)
		defer func() {
			if r := recover(); r != nil {
				w.mu.Lock()
				w.err = fmt.Errorf("generation panicked: %v", r)
				w.mu.Unlock()
			}
		}()

		if err := fn(); err != nil {
			w.mu.Lock()
			w.err = err
			w.mu.Unlock()
		}
	}()

	return w
}

// Done reports whether the worker has terminated, normally or not.
// Non-blocking.
func (w *Worker) Done() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// Err returns the captured failure once the worker has terminated
// abnormally, else nil. Non-blocking; before termination it always
// returns nil.
func (w *Worker) Err() error {
	if !w.Done() {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Wait blocks until the worker terminates and returns its error.
// Intended for teardown paths and tests, not the streaming hot loop.
func (w *Worker) Wait() error {
	<-w.done
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
