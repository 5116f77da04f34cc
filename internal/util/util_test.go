// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mattn/go-runewidth"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_Basic(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "test.txt")
	data := []byte("hello, world!")

	err := AtomicWriteFile(path, data, 0644)
	if err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != string(data) {
		t.Errorf("Content mismatch: got %q, want %q", string(content), string(data))
	}
}

func TestAtomicWriteFile_Overwrites(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "test.txt")

	if err := AtomicWriteFile(path, []byte("initial"), 0644); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if err := AtomicWriteFile(path, []byte("updated"), 0644); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != "updated" {
		t.Errorf("Content not updated: got %q", string(content))
	}
}

// =============================================================================
// STRING TRUNCATION TESTS
// =============================================================================

func TestTruncateRunes_ASCII(t *testing.T) {
	testCases := []struct {
		input    string
		maxRunes int
		expected string
	}{
		{"hello world", 5, "he..."},
		{"hello", 5, "hello"},
		{"hi", 5, "hi"},
		{"", 5, ""},
		{"hello world", 0, ""},
		{"hello world", 11, "hello world"},
		{"ab", 3, "ab"},
		{"abcd", 3, "abc"}, // When maxRunes <= 3, no ellipsis is added
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			result := TruncateRunes(tc.input, tc.maxRunes)
			if result != tc.expected {
				t.Errorf("TruncateRunes(%q, %d) = %q, want %q",
					tc.input, tc.maxRunes, result, tc.expected)
			}
		})
	}
}

func TestTruncateWidth(t *testing.T) {
	// Note: TruncateWidth keeps the result within maxWidth, counting the
	// "..." suffix, so a truncated result never overflows its column.
	testCases := []struct {
		name     string
		input    string
		maxWidth int
	}{
		{"ascii short", "hello", 10},
		{"ascii exact", "hello", 5},
		{"ascii truncate", "hello world", 8},
		{"cjk truncate", "日本語テスト", 7},
		{"cjk tight", "日本語", 3},
		{"empty", "", 5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := TruncateWidth(tc.input, tc.maxWidth)
			if got := runewidth.StringWidth(result); got > tc.maxWidth {
				t.Errorf("TruncateWidth(%q, %d) = %q with width %d, want <= %d",
					tc.input, tc.maxWidth, result, got, tc.maxWidth)
			}
			if runewidth.StringWidth(tc.input) <= tc.maxWidth && result != tc.input {
				t.Errorf("TruncateWidth(%q, %d) = %q, unexpected truncation",
					tc.input, tc.maxWidth, result)
			}
		})
	}
}

func TestTruncateWidth_ZeroWidth(t *testing.T) {
	if got := TruncateWidth("hello", 0); got != "" {
		t.Errorf("TruncateWidth(%q, 0) = %q, want empty", "hello", got)
	}
}

func TestPadRight(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		width    int
		expected string
	}{
		{"ascii pad", "abc", 6, "abc   "},
		{"ascii exact", "abc", 3, "abc"},
		{"ascii over", "abcdef", 3, "abcdef"},
		{"empty", "", 4, "    "},
		{"cjk pad", "日本", 6, "日本  "}, // 2 CJK chars = 4 width
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := PadRight(tc.input, tc.width)
			if result != tc.expected {
				t.Errorf("PadRight(%q, %d) = %q, want %q",
					tc.input, tc.width, result, tc.expected)
			}
		})
	}
}

// =============================================================================
// CONVERSION TESTS
// =============================================================================

func TestIntToString(t *testing.T) {
	testCases := []struct {
		input    int
		expected string
	}{
		{0, "0"},
		{42, "42"},
		{-7, "-7"},
	}

	for _, tc := range testCases {
		if got := IntToString(tc.input); got != tc.expected {
			t.Errorf("IntToString(%d) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestInt64ToString(t *testing.T) {
	if got := Int64ToString(1<<40 + 1); got != "1099511627777" {
		t.Errorf("Int64ToString = %q, want %q", got, "1099511627777")
	}
}

func TestFloatToString(t *testing.T) {
	testCases := []struct {
		input    float64
		expected string
	}{
		{0.8, "0.80"},
		{0.9, "0.90"},
		{1, "1.00"},
		{0.125, "0.13"},
	}

	for _, tc := range testCases {
		if got := FloatToString(tc.input); got != tc.expected {
			t.Errorf("FloatToString(%v) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestFloatToStringPrec(t *testing.T) {
	testCases := []struct {
		input    float64
		prec     int
		expected string
	}{
		{0.8, 1, "0.8"},
		{0.8, 3, "0.800"},
		{0.125, 2, "0.13"},
		{2, 0, "2"},
	}

	for _, tc := range testCases {
		if got := FloatToStringPrec(tc.input, tc.prec); got != tc.expected {
			t.Errorf("FloatToStringPrec(%v, %d) = %q, want %q",
				tc.input, tc.prec, got, tc.expected)
		}
	}
}
