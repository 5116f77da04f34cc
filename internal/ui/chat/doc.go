// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// The Bubble Tea model drives one generation session at a time: a submit
// key starts a session in the selected mode, the update loop polls it for
// partial results, and a streaming buffer batches fragments so the
// viewport re-renders at a capped frame rate instead of once per token.
// On settlement the transcript logger and telemetry ledger record the
// request.
package chat
