// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package flaglog appends settled generation requests to per-identity CSV
// transcripts. Each identity gets its own directory under the log root;
// requests from unauthenticated callers land under UNKNOWN. Logging is
// best-effort and happens after settlement, so a write failure never
// affects the generation that produced the record.
package flaglog
