// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry records settled generation requests in a local
// SQLite ledger for later inspection. The ledger is an operational aid
// (latency, failure rates, per-identity volume), separate from the
// per-identity CSV transcripts, and every write is best-effort.
package telemetry
