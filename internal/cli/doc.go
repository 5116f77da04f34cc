// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the forgechat command line interface: argument
// parsing, the one-shot ask command, the interactive chat REPL, session
// listing, and the login prompt used when authentication is enabled.
//
// The TUI is the default surface; everything in this package is the
// non-TUI path sharing the same generation core.
package cli
