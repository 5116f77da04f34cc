// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small leaf helpers shared across forgechat:
// atomic file writes, numeric formatting, and rune-safe truncation.
//
// Nothing in this package may import other internal packages.
package util
