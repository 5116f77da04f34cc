// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth verifies caller credentials against a flat credentials
// file.
//
// The file holds alternating lines: a username line followed by its
// credential line. A credential is one of three forms:
//
//	hunter2                         plaintext (legacy files)
//	pbkdf2$120000$<salt>$<hash>     salted PBKDF2-SHA256, hex encoded
//	totp:<base32 secret>            time-based one-time password
//
// Comparison is constant-time for the password forms. Authentication is
// optional at the application level; a missing credentials file means
// every caller is anonymous, not rejected.
package auth
