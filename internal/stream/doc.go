// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream provides the handoff substrate between the inference
// worker and the session driver: a bounded token channel with a blocking
// receive timeout, and a single-shot background worker whose failure can
// be inspected without blocking.
//
// The channel is deliberately tiny (capacity 1) so the producer is
// back-pressured by the consumer, and the consumer can poll with a timeout
// to detect a stalled or dead producer instead of hanging forever.
package stream
