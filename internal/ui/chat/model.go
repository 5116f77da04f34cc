// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/forgechat/internal/config"
	"github.com/jeranaias/forgechat/internal/conversation"
	"github.com/jeranaias/forgechat/internal/engine"
	"github.com/jeranaias/forgechat/internal/flaglog"
	"github.com/jeranaias/forgechat/internal/generate"
	"github.com/jeranaias/forgechat/internal/registry"
	"github.com/jeranaias/forgechat/internal/telemetry"
	"github.com/jeranaias/forgechat/internal/ui/styles"
	"github.com/jeranaias/forgechat/internal/util"
)

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	cfg   *config.Config
	theme *styles.Theme
	keys  KeyMap

	eng    engine.Engine
	reg    *registry.Registry
	entry  *registry.Entry
	ledger *telemetry.Ledger // nil when telemetry is disabled

	viewport viewport.Model
	textarea textarea.Model
	spin     spinner.Model
	renderer *glamour.TermRenderer

	// display is a stable snapshot of the conversation for rendering;
	// the canonical instance is mutated by the inference worker while a
	// request is in flight.
	display *conversation.Conversation

	session    *generate.Session
	cancelMgr  *cancelManager
	buffer     *StreamingBuffer
	generating bool
	mode       generate.Mode
	started    time.Time
	firstAt    time.Time
	fragments  int
	streamText string
	lastPrompt string

	statusErr   string
	lastLatency time.Duration
	engineUp    bool
	window      int

	ready  bool
	width  int
	height int
}

// New creates the chat model for one caller identity's session entry.
// ledger may be nil.
func New(cfg *config.Config, eng engine.Engine, reg *registry.Registry, entry *registry.Entry, ledger *telemetry.Ledger) Model {
	ta := textarea.New()
	ta.Placeholder = "Send a message..."
	ta.Prompt = "> "
	ta.SetHeight(1)
	ta.ShowLineNumbers = false
	ta.CharLimit = 4000
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		cfg:       cfg,
		theme:     styles.NewTheme(cfg.UI.Theme),
		keys:      DefaultKeyMap(),
		eng:       eng,
		reg:       reg,
		entry:     entry,
		ledger:    ledger,
		textarea:  ta,
		spin:      sp,
		display:   entry.Conv.DeepCopy(),
		cancelMgr: newCancelManager(),
		buffer:    NewStreamingBuffer(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.checkEngineCmd())
}

// =============================================================================
// COMMANDS
// =============================================================================

// checkEngineCmd probes the inference server.
func (m Model) checkEngineCmd() tea.Cmd {
	eng := m.eng
	timeout := m.cfg.RequestTimeout()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		window, err := eng.ContextWindowSize(ctx)
		if err != nil {
			return EngineStatusMsg{Running: false, Err: err}
		}
		return EngineStatusMsg{Running: true, Window: window}
	}
}

// pollSessionCmd pulls the next result from the in-flight session. The
// call blocks up to the stream timeout, which is why it runs as a
// command rather than on the update loop.
func pollSessionCmd(s *generate.Session, started time.Time, first bool) tea.Cmd {
	return func() tea.Msg {
		res, err := s.Next()
		if err != nil {
			return GenErrorMsg{Err: err, Elapsed: time.Since(started)}
		}
		if res.Final {
			return GenFinalMsg{
				Conv:    res.Conv,
				Text:    res.Text,
				Elapsed: time.Since(started),
			}
		}
		return GenPartialMsg{Text: res.Text, IsFirst: first}
	}
}

// logSettlementCmd records a settled request in the transcript and the
// telemetry ledger. Best-effort.
func (m Model) logSettlementCmd(outcome, response string, elapsed time.Duration, fragments int) tea.Cmd {
	entry := m.entry
	ledger := m.ledger
	mode := m.mode.String()
	prompt := m.lastPrompt
	convID := entry.Conv.ID
	model := m.cfg.Server.Model
	seed := ""
	if m.cfg.Generation.Seed != 0 {
		seed = util.Int64ToString(m.cfg.Generation.Seed)
	}
	var ttft time.Duration
	if !m.firstAt.IsZero() {
		ttft = m.firstAt.Sub(m.started)
	}

	return func() tea.Msg {
		var logErr error
		if entry.Logger != nil {
			logErr = entry.Logger.Append(flaglog.Record{
				Time:     time.Now(),
				Mode:     mode,
				Prompt:   prompt,
				Response: response,
				Outcome:  outcome,
				Elapsed:  elapsed,
				Seed:     seed,
			})
		}
		if ledger != nil {
			if err := ledger.Record(telemetry.Generation{
				Time:           time.Now(),
				Identity:       entry.Identity,
				ConversationID: convID,
				Model:          model,
				Mode:           mode,
				Outcome:        outcome,
				Fragments:      fragments,
				Chars:          len(response),
				TTFT:           ttft,
				Elapsed:        elapsed,
			}); err != nil && logErr == nil {
				logErr = err
			}
		}
		return GenLoggedMsg{Err: logErr}
	}
}

// startGeneration begins a session in the given mode. Returns nil with a
// status message set when the request cannot start.
func (m *Model) startGeneration(mode generate.Mode, prompt string) tea.Cmd {
	if m.generating {
		m.statusErr = "a generation is already in flight"
		return nil
	}
	if !m.entry.AcquireGeneration() {
		m.statusErr = "a generation is already in flight"
		return nil
	}
	if !m.entry.Limiter.Allow() {
		m.entry.ReleaseGeneration()
		m.statusErr = "rate limited, give it a moment"
		return nil
	}

	sessionCfg := &generate.Config{
		Timeout:        m.cfg.StreamTimeout(),
		Sampling:       m.cfg.Sampling(),
		ContinueTokens: m.cfg.Generation.ContinueTokens,
	}
	s := generate.NewSession(m.eng, m.entry.Conv, sessionCfg)

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx, mode, prompt); err != nil {
		cancel()
		m.entry.ReleaseGeneration()
		m.statusErr = err.Error()
		return nil
	}
	m.cancelMgr.set(cancel)

	m.session = s
	m.generating = true
	m.mode = mode
	m.started = time.Now()
	m.firstAt = time.Time{}
	m.fragments = 0
	m.streamText = ""
	m.lastPrompt = m.entry.Conv.LastUserTurn()
	m.statusErr = ""
	m.buffer.Reset()

	return tea.Batch(m.spin.Tick, streamTickCmd(), pollSessionCmd(s, m.started, true))
}

// settle tears down in-flight bookkeeping after the session ends.
func (m *Model) settle(elapsed time.Duration) {
	m.generating = false
	m.session = nil
	m.cancelMgr.cancel()
	m.entry.ReleaseGeneration()
	m.lastLatency = elapsed
	m.streamText = ""
	m.buffer.Reset()
}
