// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package generate drives one streaming model generation from prompt to
// settlement.
//
// A Session owns the canonical conversation for the duration of a single
// request. Starting a session applies the selected mode's pre-transform
// (fresh turn, continuation, or retry), takes two private copies of the
// history, and hands one to an inference worker on its own goroutine;
// the canonical conversation is never touched while a request is in
// flight. The caller then pulls partial results with Next: every
// fragment extends the display copy's trailing model turn, and on
// success the worker's copy, which the engine may have post-processed
// after the last fragment was queued, is committed back onto the
// canonical conversation.
//
// A session settles exactly once, as Succeeded, Failed, or TimedOut. On
// failure or timeout the canonical conversation is rolled back to its
// pre-request shape at settlement, including restoring the exchange a
// retry removed; a worker that outlives its deadline can only scribble
// on its own copy.
package generate
