// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/forgechat/internal/conversation"
	"github.com/jeranaias/forgechat/internal/flaglog"
)

// =============================================================================
// ENTRY
// =============================================================================

// Entry is one identity's session: the canonical conversation, the
// transcript logger, and a request rate limiter.
type Entry struct {
	// Identity is the sanitized caller identity the entry is keyed by.
	Identity string

	Conv    *conversation.Conversation
	Logger  *flaglog.Logger
	Limiter *rate.Limiter

	Created time.Time

	mu       sync.Mutex
	busy     bool
	lastUsed time.Time
}

// AcquireGeneration claims the entry for one generation request. It
// returns false when a request is already in flight; callers must not
// start a second generation against the same conversation.
func (e *Entry) AcquireGeneration() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return false
	}
	e.busy = true
	e.lastUsed = time.Now()
	return true
}

// ReleaseGeneration returns the entry to idle after settlement.
func (e *Entry) ReleaseGeneration() {
	e.mu.Lock()
	e.busy = false
	e.mu.Unlock()
}

// Busy reports whether a generation is in flight.
func (e *Entry) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// LastUsed returns when the entry last started a generation.
func (e *Entry) LastUsed() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastUsed
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds registry construction options.
type Config struct {
	// Logs supplies per-identity transcript loggers. Required.
	Logs *flaglog.Manager

	// NewConversation seeds a fresh conversation for new or reset
	// entries (default: an empty conversation). Used to start every
	// identity from a shared few-shot template.
	NewConversation func() *conversation.Conversation

	// RateLimit caps generation requests per identity
	// (default: one every 2 seconds).
	RateLimit rate.Limit

	// RateBurst is the limiter burst size (default: 3).
	RateBurst int
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry maps caller identities to their session entries. Safe for
// concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry

	logs    *flaglog.Manager
	newConv func() *conversation.Conversation
	limit   rate.Limit
	burst   int
}

// New creates a registry. Zero-valued config fields get defaults.
func New(config *Config) *Registry {
	if config == nil {
		config = &Config{}
	}
	newConv := config.NewConversation
	if newConv == nil {
		newConv = conversation.New
	}
	limit := config.RateLimit
	if limit == 0 {
		limit = rate.Every(2 * time.Second)
	}
	burst := config.RateBurst
	if burst == 0 {
		burst = 3
	}
	return &Registry{
		entries: make(map[string]*Entry),
		logs:    config.Logs,
		newConv: newConv,
		limit:   limit,
		burst:   burst,
	}
}

// GetOrCreate returns the entry for identity, creating it on first
// access. Empty identities share the anonymous entry.
func (r *Registry) GetOrCreate(identity string) *Entry {
	key := flaglog.SanitizeIdentity(identity)

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[key]; ok {
		return e
	}
	e := &Entry{
		Identity: key,
		Conv:     r.newConv(),
		Limiter:  rate.NewLimiter(r.limit, r.burst),
		Created:  time.Now(),
	}
	if r.logs != nil {
		e.Logger = r.logs.Logger(key)
	}
	r.entries[key] = e
	return e
}

// Reset replaces identity's conversation with a fresh one, keeping the
// transcript logger and limiter. Creates the entry if missing.
func (r *Registry) Reset(identity string) *Entry {
	e := r.GetOrCreate(identity)

	r.mu.Lock()
	defer r.mu.Unlock()
	e.Conv = r.newConv()
	return e
}

// Identities returns the known identities in sorted order.
func (r *Registry) Identities() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.entries))
	for k := range r.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of known identities.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
