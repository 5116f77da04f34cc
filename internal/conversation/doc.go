// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation holds the mutable turn history a generation reads
// as context and mutates as output arrives. A Conversation is exclusively
// owned by the session that holds it; callers take a DeepCopy before
// streaming so partial output never corrupts the canonical history.
package conversation
