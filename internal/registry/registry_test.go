// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/forgechat/internal/conversation"
	"github.com/jeranaias/forgechat/internal/flaglog"
)

func TestGetOrCreateReturnsSameEntry(t *testing.T) {
	r := New(&Config{Logs: flaglog.NewManager(t.TempDir())})

	a := r.GetOrCreate("alice")
	b := r.GetOrCreate("alice")
	assert.Same(t, a, b)
	assert.Same(t, a.Conv, b.Conv)
	assert.Equal(t, 1, r.Len())

	c := r.GetOrCreate("bob")
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, r.Len())
}

func TestAnonymousIdentitiesShareEntry(t *testing.T) {
	r := New(nil)

	a := r.GetOrCreate("")
	b := r.GetOrCreate("  ")
	assert.Same(t, a, b)
	assert.Equal(t, flaglog.AnonymousIdentity, a.Identity)
}

func TestResetReplacesConversationKeepsLogger(t *testing.T) {
	r := New(&Config{Logs: flaglog.NewManager(t.TempDir())})

	before := r.GetOrCreate("alice")
	before.Conv.AppendExchange("Hello", "Hi")
	logger := before.Logger

	after := r.Reset("alice")
	assert.Same(t, before, after)
	assert.Equal(t, 0, after.Conv.TurnCount())
	assert.Same(t, logger, after.Logger)
}

func TestNewConversationSeed(t *testing.T) {
	seed := func() *conversation.Conversation {
		c := conversation.New()
		c.AppendExchange("example question", "example answer")
		return c
	}
	r := New(&Config{NewConversation: seed})

	e := r.GetOrCreate("alice")
	require.Equal(t, 1, e.Conv.TurnCount())
	assert.Equal(t, "example answer", e.Conv.LastModelTurn())

	// Entries must not share the seed conversation.
	other := r.GetOrCreate("bob")
	assert.NotSame(t, e.Conv, other.Conv)
}

func TestAcquireGenerationSerializes(t *testing.T) {
	r := New(nil)
	e := r.GetOrCreate("alice")

	require.True(t, e.AcquireGeneration())
	assert.True(t, e.Busy())
	assert.False(t, e.AcquireGeneration())

	e.ReleaseGeneration()
	assert.False(t, e.Busy())
	assert.True(t, e.AcquireGeneration())
}

func TestLimiterAllowsBurst(t *testing.T) {
	r := New(nil)
	e := r.GetOrCreate("alice")

	// Default burst is 3.
	assert.True(t, e.Limiter.Allow())
	assert.True(t, e.Limiter.Allow())
	assert.True(t, e.Limiter.Allow())
	assert.False(t, e.Limiter.Allow())
}

func TestIdentitiesSorted(t *testing.T) {
	r := New(nil)
	r.GetOrCreate("charlie")
	r.GetOrCreate("alice")
	r.GetOrCreate("bob")

	assert.Equal(t, []string{"alice", "bob", "charlie"}, r.Identities())
}

func TestConcurrentGetOrCreate(t *testing.T) {
	r := New(nil)

	var wg sync.WaitGroup
	entries := make([]*Entry, 16)
	for i := range entries {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entries[i] = r.GetOrCreate("shared")
		}(i)
	}
	wg.Wait()

	for _, e := range entries {
		assert.Same(t, entries[0], e)
	}
	assert.Equal(t, 1, r.Len())
}
