// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConversation(t *testing.T) {
	c := New()

	if c.ID == "" {
		t.Fatal("New conversation must have an ID")
	}
	if c.TurnCount() != 0 {
		t.Errorf("Expected 0 turns, got %d", c.TurnCount())
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Empty conversation should validate: %v", err)
	}
}

func TestAppendUserTurnPlaceholder(t *testing.T) {
	c := New()
	c.AppendUserTurn("Hello")

	// The model placeholder keeps the slices parallel.
	require.Len(t, c.UserTurns, 1)
	require.Len(t, c.ModelTurns, 1)
	assert.Equal(t, "Hello", c.LastUserTurn())
	assert.Equal(t, "", c.LastModelTurn())
	assert.NoError(t, c.Validate())
}

func TestAppendUserTurnNormalizes(t *testing.T) {
	c := New()
	// "e" + combining acute accent must normalize to the precomposed form.
	c.AppendUserTurn("cafe\u0301")
	assert.Equal(t, "caf\u00e9", c.LastUserTurn())
}

func TestSetLastModelTurn(t *testing.T) {
	c := New()
	c.SetLastModelTurn("ignored") // no-op on empty conversation

	c.AppendUserTurn("Hi")
	c.SetLastModelTurn("Hello!")
	assert.Equal(t, "Hello!", c.LastModelTurn())
}

func TestRemoveLastExchange(t *testing.T) {
	c := New()
	_, _, err := c.RemoveLastExchange()
	assert.True(t, errors.Is(err, ErrNoTurns))

	c.AppendUserTurn("Question")
	c.SetLastModelTurn("Answer")

	user, model, err := c.RemoveLastExchange()
	require.NoError(t, err)
	assert.Equal(t, "Question", user)
	assert.Equal(t, "Answer", model)
	assert.Equal(t, 0, c.TurnCount())
}

func TestDeepCopyIsolation(t *testing.T) {
	c := New()
	c.AppendUserTurn("A")
	c.SetLastModelTurn("B")

	cp := c.DeepCopy()
	assert.Equal(t, c.ID, cp.ID)

	cp.SetLastModelTurn("mutated")
	cp.AppendUserTurn("extra")

	// The canonical conversation must be untouched by copy mutation.
	assert.Equal(t, "B", c.LastModelTurn())
	assert.Equal(t, 1, c.TurnCount())
}

func TestPairs(t *testing.T) {
	c := New()
	c.AppendUserTurn("q1")
	c.SetLastModelTurn("a1")
	c.AppendUserTurn("q2")

	pairs := c.Pairs()
	require.Len(t, pairs, 2)
	assert.Equal(t, Pair{User: "q1", Model: "a1"}, pairs[0])
	assert.Equal(t, Pair{User: "q2", Model: ""}, pairs[1])
}

func TestPreview(t *testing.T) {
	c := New()
	assert.Equal(t, "", c.Preview())

	c.AppendUserTurn("line one\nline two")
	assert.Equal(t, "line one line two", c.Preview())
}

// =============================================================================
// TEMPLATE TESTS
// =============================================================================

func TestNewFromTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fewshot.toml")
	content := `
[[exchange]]
user = "What is 2+2?"
model = "4"

[[exchange]]
user = "And 3+3?"
model = "6"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	conv, err := NewFromTemplate(path)
	require.NoError(t, err)
	assert.Equal(t, 2, conv.TurnCount())
	assert.Equal(t, "4", conv.ModelTurns[0])
	assert.NoError(t, conv.Validate())
}

func TestLoadTemplateIncomplete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[exchange]]\nuser = \"only user\"\n"), 0644))

	_, err := LoadTemplate(path)
	assert.Error(t, err)
}

func TestLoadTemplateMissingFile(t *testing.T) {
	_, err := LoadTemplate(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
