// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package registry tracks one chat session per caller identity.
//
// An entry bundles the identity's canonical conversation, its transcript
// logger, and a request rate limiter. Entries are created on first access
// and live for the process lifetime; resetting an identity replaces its
// conversation but keeps the transcript. A busy flag serializes
// generations per entry, since the generation core requires at most one
// in-flight request per conversation.
package registry
