// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "telemetry", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRecordAndRecent(t *testing.T) {
	l := openLedger(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Record(Generation{
			Time:           base.Add(time.Duration(i) * time.Minute),
			Identity:       "alice",
			ConversationID: "conv-1",
			Model:          "llama2-7b-chat",
			Mode:           "fresh",
			Outcome:        "succeeded",
			Fragments:      10 + i,
			Chars:          100,
			TTFT:           150 * time.Millisecond,
			Elapsed:        1200 * time.Millisecond,
		}))
	}

	recent, err := l.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	// Newest first.
	assert.Equal(t, 12, recent[0].Fragments)
	assert.Equal(t, 11, recent[1].Fragments)
	assert.Equal(t, "alice", recent[0].Identity)
	assert.Equal(t, "llama2-7b-chat", recent[0].Model)
	assert.Equal(t, 150*time.Millisecond, recent[0].TTFT)
	assert.Equal(t, 1200*time.Millisecond, recent[0].Elapsed)
	assert.Equal(t, base.Add(2*time.Minute), recent[0].Time)
}

func TestOutcomeCounts(t *testing.T) {
	l := openLedger(t)

	outcomes := []string{"succeeded", "succeeded", "failed", "timed_out"}
	for _, o := range outcomes {
		require.NoError(t, l.Record(Generation{
			Time:           time.Now(),
			Identity:       "alice",
			ConversationID: "conv-1",
			Mode:           "fresh",
			Outcome:        o,
		}))
	}

	counts, err := l.OutcomeCounts()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"succeeded": 2, "failed": 1, "timed_out": 1}, counts)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	l1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l1.Record(Generation{Time: time.Now(), Identity: "a", ConversationID: "c", Mode: "fresh", Outcome: "succeeded"}))
	require.NoError(t, l1.Close())

	l2, err := Open(path)
	require.NoError(t, err)
	defer l2.Close()

	recent, err := l2.Recent(10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}
