// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// sessions.go - Recent generation listing from the telemetry ledger.
//
// Examples:
//   forgechat sessions
//   forgechat sessions --limit 50
package cli

import (
	"fmt"
	"time"

	"github.com/jeranaias/forgechat/internal/util"
)

// HandleSessions prints recent settled generations.
func HandleSessions(rt *Runtime, args Args) error {
	if rt.Ledger == nil {
		return fmt.Errorf("telemetry is disabled; enable logging.telemetry_enabled in the config")
	}

	limit := args.Limit
	if limit <= 0 {
		limit = 20
	}

	gens, err := rt.Ledger.Recent(limit)
	if err != nil {
		return fmt.Errorf("reading ledger: %w", err)
	}
	if len(gens) == 0 {
		fmt.Println(infoStyle.Render("no recorded generations"))
		return nil
	}

	// Identities may carry wide runes; pad by display width, not bytes.
	fmt.Println(headerStyle.Render("Recent generations"))
	fmt.Printf("  %s %s %s %s %10s %8s\n",
		util.PadRight("WHEN", 20), util.PadRight("IDENTITY", 12),
		util.PadRight("MODE", 9), util.PadRight("OUTCOME", 10),
		"FRAGMENTS", "TIME")
	for _, g := range gens {
		fmt.Printf("  %s %s %s %s %10s %8s\n",
			util.PadRight(g.Time.Local().Format("2006-01-02 15:04:05"), 20),
			util.PadRight(util.TruncateWidth(g.Identity, 12), 12),
			util.PadRight(g.Mode, 9),
			util.PadRight(g.Outcome, 10),
			util.IntToString(g.Fragments),
			g.Elapsed.Round(10*time.Millisecond))
	}

	counts, err := rt.Ledger.OutcomeCounts()
	if err == nil && len(counts) > 0 {
		fmt.Println()
		fmt.Printf("  %s succeeded=%d failed=%d timed_out=%d\n",
			infoStyle.Render("totals:"),
			counts["succeeded"], counts["failed"], counts["timed_out"])
	}
	return nil
}
