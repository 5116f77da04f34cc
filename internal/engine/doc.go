// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine defines the contract with the model inference server and
// its HTTP implementation. The engine is a black box to the rest of the
// program: it accepts a conversation history and a token sink, mutates the
// history's trailing model turn in place, and pushes text fragments to the
// sink as they are decoded.
package engine
