// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package flaglog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/forgechat/internal/util"
)

// AnonymousIdentity is the directory used for callers with no identity.
const AnonymousIdentity = "UNKNOWN"

// csvHeader is written once when a transcript file is created.
var csvHeader = []string{"timestamp", "mode", "prompt", "response", "outcome", "elapsed_ms", "seed"}

// =============================================================================
// RECORD
// =============================================================================

// Record is one settled generation request.
type Record struct {
	Time     time.Time
	Mode     string
	Prompt   string
	Response string

	// Outcome is the terminal state name: succeeded, failed, or timed_out.
	Outcome string

	Elapsed time.Duration

	// Seed is the decimal seed used, or "auto" when the engine chose.
	Seed string
}

func (r Record) row() []string {
	seed := r.Seed
	if seed == "" {
		seed = "auto"
	}
	return []string{
		r.Time.UTC().Format(time.RFC3339),
		r.Mode,
		r.Prompt,
		r.Response,
		r.Outcome,
		util.Int64ToString(r.Elapsed.Milliseconds()),
		seed,
	}
}

// =============================================================================
// LOGGER
// =============================================================================

// Logger appends records to one identity's transcript file. Safe for
// concurrent use.
type Logger struct {
	mu   sync.Mutex
	path string
}

// NewLogger creates a logger writing to the given CSV path. The file and
// its directory are created on first append.
func NewLogger(path string) *Logger {
	return &Logger{path: path}
}

// Path returns the transcript file path.
func (l *Logger) Path() string {
	return l.path
}

// Append writes one record, creating the file with a header row first if
// needed.
func (l *Logger) Append(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return err
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			return err
		}
	}
	if err := w.Write(rec.row()); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager hands out one Logger per identity, all rooted under a single
// log directory. Safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	root    string
	loggers map[string]*Logger
}

// NewManager creates a manager rooted at dir.
func NewManager(dir string) *Manager {
	return &Manager{
		root:    dir,
		loggers: make(map[string]*Logger),
	}
}

// Logger returns the transcript logger for identity, creating it on first
// access. An empty identity maps to the anonymous transcript.
func (m *Manager) Logger(identity string) *Logger {
	key := SanitizeIdentity(identity)

	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.loggers[key]; ok {
		return l
	}
	l := NewLogger(filepath.Join(m.root, key, "chatlog.csv"))
	m.loggers[key] = l
	return l
}

// SanitizeIdentity maps an identity to a filesystem-safe directory name.
// Empty identities map to AnonymousIdentity.
func SanitizeIdentity(identity string) string {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return AnonymousIdentity
	}
	var b strings.Builder
	for _, r := range identity {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	// "." and ".." would escape the log root.
	if strings.Trim(out, ".") == "" {
		return AnonymousIdentity
	}
	return out
}
