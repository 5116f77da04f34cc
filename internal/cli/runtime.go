// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// runtime.go - Shared wiring for CLI command handlers.
//
// Runtime bundles the collaborators every command needs. main.go builds
// one after config load, auth, and engine setup; handlers never reach
// for globals themselves.
package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/forgechat/internal/config"
	"github.com/jeranaias/forgechat/internal/engine"
	"github.com/jeranaias/forgechat/internal/flaglog"
	"github.com/jeranaias/forgechat/internal/generate"
	"github.com/jeranaias/forgechat/internal/registry"
	"github.com/jeranaias/forgechat/internal/telemetry"
	"github.com/jeranaias/forgechat/internal/ui/styles"
	"github.com/jeranaias/forgechat/internal/util"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)

	headerStyle = lipgloss.NewStyle().
			Foreground(styles.Purple).
			Bold(true)
)

// =============================================================================
// RUNTIME
// =============================================================================

// Runtime holds the collaborators CLI commands run against.
type Runtime struct {
	Config   *config.Config
	Engine   engine.Engine
	Registry *registry.Registry
	Ledger   *telemetry.Ledger // nil when telemetry is disabled
	Identity string
	Quiet    bool
	Verbose  bool
}

// Entry returns the session registry entry for the runtime identity.
func (rt *Runtime) Entry() *registry.Entry {
	return rt.Registry.GetOrCreate(rt.Identity)
}

// sessionConfig builds the generation config from the loaded config.
func (rt *Runtime) sessionConfig() *generate.Config {
	return &generate.Config{
		Timeout:        rt.Config.StreamTimeout(),
		Sampling:       rt.Config.Sampling(),
		ContinueTokens: rt.Config.Generation.ContinueTokens,
	}
}

// =============================================================================
// STREAMING HELPERS
// =============================================================================

// streamOutcome is what a drained session settled as.
type streamOutcome struct {
	Result    generate.Result
	Fragments int
	TTFT      time.Duration
	Elapsed   time.Duration
}

// drainSession pulls the session to settlement. When echo is non-nil,
// each partial's delta over the previous partial is written to it as it
// arrives; the final text (which post-processing may shorten) is NOT
// echoed, callers decide how to present it.
func drainSession(s *generate.Session, echo io.Writer) (streamOutcome, error) {
	start := time.Now()
	printed := 0
	out := streamOutcome{}

	for {
		res, err := s.Next()
		if err != nil {
			out.Elapsed = time.Since(start)
			return out, err
		}
		if res.Final {
			out.Result = res
			out.Elapsed = time.Since(start)
			return out, nil
		}

		out.Fragments++
		if out.Fragments == 1 {
			out.TTFT = time.Since(start)
		}
		if len(res.Text) > printed {
			if echo != nil {
				fmt.Fprint(echo, res.Text[printed:])
			}
			printed = len(res.Text)
		}
	}
}

// logSettlement appends the settled request to the CSV transcript and
// the telemetry ledger. Best-effort; failures surface as a warning only.
func (rt *Runtime) logSettlement(entry *registry.Entry, mode generate.Mode, prompt, response, outcome string, out streamOutcome) error {
	seed := ""
	if rt.Config.Generation.Seed != 0 {
		seed = util.Int64ToString(rt.Config.Generation.Seed)
	}

	var logErr error
	if entry.Logger != nil {
		logErr = entry.Logger.Append(flaglog.Record{
			Time:     time.Now(),
			Mode:     mode.String(),
			Prompt:   prompt,
			Response: response,
			Outcome:  outcome,
			Elapsed:  out.Elapsed,
			Seed:     seed,
		})
	}
	if rt.Ledger != nil {
		if err := rt.Ledger.Record(telemetry.Generation{
			Time:           time.Now(),
			Identity:       entry.Identity,
			ConversationID: entry.Conv.ID,
			Model:          rt.Config.Server.Model,
			Mode:           mode.String(),
			Outcome:        outcome,
			Fragments:      out.Fragments,
			Chars:          len(response),
			TTFT:           out.TTFT,
			Elapsed:        out.Elapsed,
		}); err != nil && logErr == nil {
			logErr = err
		}
	}
	return logErr
}

// outcomeName maps a settlement error to its transcript outcome.
func outcomeName(err error) string {
	if err == nil {
		return "succeeded"
	}
	if generate.IsTimeout(err) {
		return "timed_out"
	}
	return "failed"
}
