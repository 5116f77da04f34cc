// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"bufio"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/pbkdf2"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrUnknownUser indicates the username has no credentials entry.
	ErrUnknownUser = errors.New("unknown user")

	// ErrBadCredentials indicates the secret did not match. The same
	// error covers wrong passwords and wrong one-time codes.
	ErrBadCredentials = errors.New("invalid credentials")

	// ErrMalformedFile indicates the credentials file could not be parsed.
	ErrMalformedFile = errors.New("malformed credentials file")
)

// =============================================================================
// CREDENTIAL FORMS
// =============================================================================

const (
	pbkdf2Prefix = "pbkdf2$"
	totpPrefix   = "totp:"

	// DefaultIterations is the PBKDF2 round count for new hashes.
	DefaultIterations = 120000

	saltBytes = 16
	keyBytes  = 32
)

type credKind int

const (
	credPlain credKind = iota
	credPBKDF2
	credTOTP
)

type credential struct {
	kind credKind
	// raw is the plaintext password or the base32 TOTP secret.
	raw string
	// PBKDF2 fields.
	iterations int
	salt       []byte
	hash       []byte
}

func parseCredential(line string) (credential, error) {
	switch {
	case strings.HasPrefix(line, pbkdf2Prefix):
		parts := strings.Split(line, "$")
		if len(parts) != 4 {
			return credential{}, fmt.Errorf("%w: bad pbkdf2 entry", ErrMalformedFile)
		}
		iterations, err := strconv.Atoi(parts[1])
		if err != nil || iterations <= 0 {
			return credential{}, fmt.Errorf("%w: bad pbkdf2 iteration count", ErrMalformedFile)
		}
		salt, err := hex.DecodeString(parts[2])
		if err != nil {
			return credential{}, fmt.Errorf("%w: bad pbkdf2 salt", ErrMalformedFile)
		}
		hash, err := hex.DecodeString(parts[3])
		if err != nil {
			return credential{}, fmt.Errorf("%w: bad pbkdf2 hash", ErrMalformedFile)
		}
		return credential{kind: credPBKDF2, iterations: iterations, salt: salt, hash: hash}, nil

	case strings.HasPrefix(line, totpPrefix):
		secret := strings.TrimSpace(strings.TrimPrefix(line, totpPrefix))
		if secret == "" {
			return credential{}, fmt.Errorf("%w: empty totp secret", ErrMalformedFile)
		}
		return credential{kind: credTOTP, raw: secret}, nil

	default:
		return credential{kind: credPlain, raw: line}, nil
	}
}

func (c credential) verify(secret string, now time.Time) bool {
	switch c.kind {
	case credPBKDF2:
		derived := pbkdf2.Key([]byte(secret), c.salt, c.iterations, len(c.hash), sha256.New)
		return subtle.ConstantTimeCompare(derived, c.hash) == 1
	case credTOTP:
		ok, err := totp.ValidateCustom(secret, c.raw, now, totp.ValidateOpts{
			Period: 30,
			Skew:   1,
			Digits: 6,
		})
		return err == nil && ok
	default:
		return subtle.ConstantTimeCompare([]byte(secret), []byte(c.raw)) == 1
	}
}

// =============================================================================
// STORE
// =============================================================================

// Store holds the parsed credentials file. Read-only after load.
type Store struct {
	creds map[string]credential
}

// LoadFile parses a credentials file of alternating username and
// credential lines. Blank lines and lines starting with # are skipped.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	creds := make(map[string]credential)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var pendingUser string
	haveUser := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !haveUser {
			pendingUser = line
			haveUser = true
			continue
		}
		cred, err := parseCredential(line)
		if err != nil {
			return nil, err
		}
		creds[pendingUser] = cred
		haveUser = false
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if haveUser {
		return nil, fmt.Errorf("%w: dangling username %q", ErrMalformedFile, pendingUser)
	}

	return &Store{creds: creds}, nil
}

// Len returns the number of loaded entries.
func (s *Store) Len() int {
	return len(s.creds)
}

// HasUser reports whether username has a credentials entry.
func (s *Store) HasUser(username string) bool {
	_, ok := s.creds[username]
	return ok
}

// RequiresTOTP reports whether username authenticates with a one-time
// code rather than a password.
func (s *Store) RequiresTOTP(username string) bool {
	cred, ok := s.creds[username]
	return ok && cred.kind == credTOTP
}

// Verify checks username's secret (password or one-time code). It
// returns ErrUnknownUser or ErrBadCredentials on rejection.
func (s *Store) Verify(username, secret string) error {
	return s.verifyAt(username, secret, time.Now())
}

func (s *Store) verifyAt(username, secret string, now time.Time) error {
	cred, ok := s.creds[username]
	if !ok {
		return ErrUnknownUser
	}
	if !cred.verify(secret, now) {
		return ErrBadCredentials
	}
	return nil
}

// =============================================================================
// HASHING
// =============================================================================

// HashPassword derives a fresh salted PBKDF2 entry for a password,
// suitable for writing to a credentials file.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := pbkdf2.Key([]byte(password), salt, DefaultIterations, keyBytes, sha256.New)
	return fmt.Sprintf("pbkdf2$%d$%s$%s",
		DefaultIterations, hex.EncodeToString(salt), hex.EncodeToString(hash)), nil
}
