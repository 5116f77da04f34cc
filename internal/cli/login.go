// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// login.go - Interactive credential check against the credentials file.
//
// The password is read with terminal echo disabled. Users whose
// credential is a TOTP secret are prompted for the current code instead.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/jeranaias/forgechat/internal/auth"
)

// maxLoginAttempts bounds interactive retries before giving up.
const maxLoginAttempts = 3

// ErrLoginAborted is returned when the user gives up or input ends.
var ErrLoginAborted = errors.New("login aborted")

// Login prompts for a username (unless preset) and a secret, and
// verifies them against the store. Returns the verified identity.
func Login(store *auth.Store, preset string) (string, error) {
	if !IsTTY() {
		return "", fmt.Errorf("authentication is enabled but stdin is not a terminal; use --no-auth or run interactively")
	}

	reader := bufio.NewReader(os.Stdin)

	for attempt := 1; attempt <= maxLoginAttempts; attempt++ {
		username := preset
		if username == "" {
			fmt.Print(promptStyle.Render("Username: "))
			line, err := reader.ReadString('\n')
			if err != nil {
				return "", ErrLoginAborted
			}
			username = strings.TrimSpace(line)
		}
		if username == "" {
			continue
		}

		label := "Password: "
		if store.RequiresTOTP(username) {
			label = "Code: "
		}
		fmt.Print(promptStyle.Render(label))
		secretBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", ErrLoginAborted
		}

		err = store.Verify(username, strings.TrimSpace(string(secretBytes)))
		if err == nil {
			return username, nil
		}

		switch {
		case errors.Is(err, auth.ErrUnknownUser):
			fmt.Fprintln(os.Stderr, errorStyle.Render("unknown user"))
			// A preset username that does not exist will never succeed.
			if preset != "" {
				return "", err
			}
		case errors.Is(err, auth.ErrBadCredentials):
			fmt.Fprintln(os.Stderr, errorStyle.Render("invalid credentials"))
		default:
			return "", err
		}
	}

	return "", ErrLoginAborted
}
