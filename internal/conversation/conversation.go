// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/forgechat/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoTurns is returned by operations that need at least one exchange.
	ErrNoTurns = errors.New("conversation has no turns")

	// ErrUnbalanced indicates the user/model turn slices diverged by more
	// than the in-flight placeholder window.
	ErrUnbalanced = errors.New("conversation turn slices are unbalanced")
)

// =============================================================================
// CONVERSATION
// =============================================================================

// Conversation is an ordered sequence of (user, model) exchanges.
// UserTurns and ModelTurns are parallel-indexed; the last model turn is
// the only mutable element while a generation is in flight. Directly after
// AppendUserTurn the model slice carries an empty placeholder, which is
// the one moment the two slices differ in content but not in length.
type Conversation struct {
	// ID is assigned at creation and stable for the conversation's life.
	ID string

	UserTurns  []string
	ModelTurns []string
}

// Pair is one rendered (user, model) exchange for the UI layer.
type Pair struct {
	User  string
	Model string
}

// New creates an empty conversation with a fresh ID.
func New() *Conversation {
	return &Conversation{ID: uuid.NewString()}
}

// =============================================================================
// TURN OPERATIONS
// =============================================================================

// AppendUserTurn appends a user message together with an empty model
// placeholder, keeping the slices parallel. The prompt is NFC-normalized
// so visually identical input compares equal across terminals.
func (c *Conversation) AppendUserTurn(prompt string) {
	c.UserTurns = append(c.UserTurns, norm.NFC.String(prompt))
	c.ModelTurns = append(c.ModelTurns, "")
}

// SetLastModelTurn replaces the trailing model turn.
// No-op on an empty conversation.
func (c *Conversation) SetLastModelTurn(text string) {
	if len(c.ModelTurns) == 0 {
		return
	}
	c.ModelTurns[len(c.ModelTurns)-1] = text
}

// LastModelTurn returns the trailing model turn, or "" when empty.
func (c *Conversation) LastModelTurn() string {
	if len(c.ModelTurns) == 0 {
		return ""
	}
	return c.ModelTurns[len(c.ModelTurns)-1]
}

// LastUserTurn returns the trailing user turn, or "" when empty.
func (c *Conversation) LastUserTurn() string {
	if len(c.UserTurns) == 0 {
		return ""
	}
	return c.UserTurns[len(c.UserTurns)-1]
}

// RemoveLastExchange pops the trailing (user, model) pair and returns it.
// This is the retry pre-transform: the recovered user text becomes the new
// prompt.
func (c *Conversation) RemoveLastExchange() (user, model string, err error) {
	if len(c.UserTurns) == 0 || len(c.ModelTurns) == 0 {
		return "", "", ErrNoTurns
	}
	user = c.UserTurns[len(c.UserTurns)-1]
	model = c.ModelTurns[len(c.ModelTurns)-1]
	c.UserTurns = c.UserTurns[:len(c.UserTurns)-1]
	c.ModelTurns = c.ModelTurns[:len(c.ModelTurns)-1]
	return user, model, nil
}

// AppendExchange appends a complete (user, model) pair. Used to seed
// few-shot templates and to roll back a failed retry.
func (c *Conversation) AppendExchange(user, model string) {
	c.UserTurns = append(c.UserTurns, user)
	c.ModelTurns = append(c.ModelTurns, model)
}

// TurnCount returns the number of complete exchanges.
func (c *Conversation) TurnCount() int {
	if len(c.UserTurns) < len(c.ModelTurns) {
		return len(c.UserTurns)
	}
	return len(c.ModelTurns)
}

// Validate checks the parallel-slice invariant.
func (c *Conversation) Validate() error {
	if len(c.UserTurns) != len(c.ModelTurns) {
		return ErrUnbalanced
	}
	return nil
}

// =============================================================================
// COPY AND RENDER
// =============================================================================

// DeepCopy returns a value-independent copy sharing no mutable structure
// with the original. The copy keeps the same ID: it represents the same
// logical conversation, observed mid-flight.
func (c *Conversation) DeepCopy() *Conversation {
	cp := &Conversation{
		ID:         c.ID,
		UserTurns:  make([]string, len(c.UserTurns)),
		ModelTurns: make([]string, len(c.ModelTurns)),
	}
	copy(cp.UserTurns, c.UserTurns)
	copy(cp.ModelTurns, c.ModelTurns)
	return cp
}

// ReplaceTurns overwrites this conversation's turns with a copy of the
// other's, keeping the receiver's ID. Used to commit a working copy back
// onto the shared conversation after a generation settles.
func (c *Conversation) ReplaceTurns(other *Conversation) {
	c.UserTurns = make([]string, len(other.UserTurns))
	c.ModelTurns = make([]string, len(other.ModelTurns))
	copy(c.UserTurns, other.UserTurns)
	copy(c.ModelTurns, other.ModelTurns)
}

// Pairs renders the conversation as (user, model) pairs for the UI.
func (c *Conversation) Pairs() []Pair {
	n := len(c.UserTurns)
	if len(c.ModelTurns) < n {
		n = len(c.ModelTurns)
	}
	pairs := make([]Pair, 0, n)
	for i := 0; i < n; i++ {
		pairs = append(pairs, Pair{User: c.UserTurns[i], Model: c.ModelTurns[i]})
	}
	return pairs
}

// Preview returns the first user turn truncated for list displays.
func (c *Conversation) Preview() string {
	for _, turn := range c.UserTurns {
		if turn != "" {
			oneLine := strings.ReplaceAll(turn, "\n", " ")
			return util.TruncateRunes(oneLine, 80)
		}
	}
	return ""
}
