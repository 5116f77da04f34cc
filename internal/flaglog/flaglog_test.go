// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package flaglog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestAppendWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alice", "chatlog.csv")
	logger := NewLogger(path)

	rec := Record{
		Time:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Mode:     "fresh",
		Prompt:   "Hello",
		Response: "Hi there!",
		Outcome:  "succeeded",
		Elapsed:  1500 * time.Millisecond,
	}
	require.NoError(t, logger.Append(rec))

	rec.Prompt = "Second"
	rec.Seed = "42"
	require.NoError(t, logger.Append(rec))

	rows := readRows(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"2025-06-01T12:00:00Z", "fresh", "Hello", "Hi there!", "succeeded", "1500", "auto"}, rows[1])
	assert.Equal(t, "42", rows[2][6])
}

func TestAppendQuotesEmbeddedCommasAndNewlines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatlog.csv")
	logger := NewLogger(path)

	require.NoError(t, logger.Append(Record{
		Time:     time.Now(),
		Mode:     "fresh",
		Prompt:   "line one\nline two, with comma",
		Response: `he said "hi"`,
		Outcome:  "succeeded",
	}))

	rows := readRows(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, "line one\nline two, with comma", rows[1][2])
	assert.Equal(t, `he said "hi"`, rows[1][3])
}

func TestManagerReusesLoggers(t *testing.T) {
	m := NewManager(t.TempDir())

	a := m.Logger("alice")
	b := m.Logger("alice")
	assert.Same(t, a, b)

	c := m.Logger("bob")
	assert.NotSame(t, a, c)
}

func TestManagerAnonymousIdentity(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)

	logger := m.Logger("")
	assert.Equal(t, filepath.Join(root, AnonymousIdentity, "chatlog.csv"), logger.Path())
}

func TestSanitizeIdentity(t *testing.T) {
	cases := map[string]string{
		"alice":        "alice",
		"  alice  ":    "alice",
		"":             AnonymousIdentity,
		"a/b\\c":       "a_b_c",
		"..":           AnonymousIdentity,
		"user@example": "user_example",
		"Bob-2.1_x":    "Bob-2.1_x",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeIdentity(in), "input %q", in)
	}
}
