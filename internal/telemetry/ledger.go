// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS generations (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at      TEXT    NOT NULL,
	identity        TEXT    NOT NULL,
	conversation_id TEXT    NOT NULL,
	model           TEXT    NOT NULL DEFAULT '',
	mode            TEXT    NOT NULL,
	outcome         TEXT    NOT NULL,
	fragments       INTEGER NOT NULL,
	chars           INTEGER NOT NULL,
	ttft_ms         INTEGER NOT NULL DEFAULT 0,
	elapsed_ms      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_generations_identity ON generations(identity);
CREATE INDEX IF NOT EXISTS idx_generations_created ON generations(created_at);
`

// =============================================================================
// LEDGER
// =============================================================================

// Generation is one settled request's ledger row.
type Generation struct {
	Time           time.Time
	Identity       string
	ConversationID string
	Model          string
	Mode           string
	Outcome        string
	Fragments      int
	Chars          int
	// TTFT is the time to first fragment; zero when none arrived.
	TTFT    time.Duration
	Elapsed time.Duration
}

// Ledger is a SQLite-backed log of settled generations. Safe for
// concurrent use; database/sql serializes access.
type Ledger struct {
	db *sql.DB
}

// Open creates or opens the ledger database at path, applying the schema.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Serialized writes; the ledger sees low, bursty traffic.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Ledger{db: db}, nil
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record inserts one settled generation.
func (l *Ledger) Record(g Generation) error {
	_, err := l.db.Exec(
		`INSERT INTO generations
		 (created_at, identity, conversation_id, model, mode, outcome, fragments, chars, ttft_ms, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.Time.UTC().Format(time.RFC3339Nano),
		g.Identity,
		g.ConversationID,
		g.Model,
		g.Mode,
		g.Outcome,
		g.Fragments,
		g.Chars,
		g.TTFT.Milliseconds(),
		g.Elapsed.Milliseconds(),
	)
	return err
}

// Recent returns up to limit generations, newest first.
func (l *Ledger) Recent(limit int) ([]Generation, error) {
	rows, err := l.db.Query(
		`SELECT created_at, identity, conversation_id, model, mode, outcome, fragments, chars, ttft_ms, elapsed_ms
		 FROM generations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Generation
	for rows.Next() {
		var g Generation
		var created string
		var ttftMs, elapsedMs int64
		if err := rows.Scan(&created, &g.Identity, &g.ConversationID, &g.Model,
			&g.Mode, &g.Outcome, &g.Fragments, &g.Chars, &ttftMs, &elapsedMs); err != nil {
			return nil, err
		}
		g.Time, _ = time.Parse(time.RFC3339Nano, created)
		g.TTFT = time.Duration(ttftMs) * time.Millisecond
		g.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		out = append(out, g)
	}
	return out, rows.Err()
}

// OutcomeCounts returns settled-request counts keyed by outcome.
func (l *Ledger) OutcomeCounts() (map[string]int, error) {
	rows, err := l.db.Query(`SELECT outcome, COUNT(*) FROM generations GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}
