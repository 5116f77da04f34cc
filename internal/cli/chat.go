// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat REPL for the forgechat CLI.
//
// Provides a readline-style loop over the same session core the TUI
// uses. Slash commands drive the continue/retry/clear operations.
//
// Interactive commands:
//   /continue, /o       Extend the last model reply
//   /retry, /r          Regenerate the last model reply
//   /clear, /c          Clear conversation history
//   /status, /s         Show session statistics
//   /history            Show the conversation so far
//   /help, /h           Show available commands
//   /quit, /q           Exit chat
//   Ctrl+C              Cancel the in-flight generation
//   Ctrl+D              Exit chat
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/forgechat/internal/config"
	"github.com/jeranaias/forgechat/internal/engine"
	"github.com/jeranaias/forgechat/internal/generate"
	"github.com/jeranaias/forgechat/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI wraps liner with persistent input history.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI with history loaded from the config dir.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.Dir()
	if err != nil {
		configDir = os.TempDir()
	}

	cli := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	cli.loadHistory()
	return cli
}

func (c *ChatCLI) loadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads one line with history navigation.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// saveHistory persists input history with owner-only permissions.
func (c *ChatCLI) saveHistory() {
	if err := config.EnsureDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and releases the terminal.
func (c *ChatCLI) Close() {
	c.saveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION STATE
// =============================================================================

// chatStats tracks per-REPL counters for /status and the exit summary.
type chatStats struct {
	Started        time.Time
	Requests       int
	Failures       int
	TotalFragments int
	TotalElapsed   time.Duration
}

// cancelHolder hands the in-flight cancel function to the signal
// goroutine.
type cancelHolder struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (h *cancelHolder) set(fn context.CancelFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancel = fn
}

func (h *cancelHolder) fire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel == nil {
		return false
	}
	h.cancel()
	h.cancel = nil
	return true
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChat runs the interactive REPL.
func HandleChat(rt *Runtime, args Args) error {
	ctx := context.Background()
	if checker, ok := rt.Engine.(interface{ CheckRunning(context.Context) error }); ok {
		if err := checker.CheckRunning(ctx); err != nil {
			if engine.IsNotRunning(err) {
				return fmt.Errorf("inference server is not reachable at %s", rt.Config.Server.URL)
			}
			return err
		}
	}

	input := NewChatCLI()
	defer input.Close()

	stats := &chatStats{Started: time.Now()}
	holder := &cancelHolder{}

	// Ctrl+C during a generation cancels it; liner handles Ctrl+C at the
	// prompt itself.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			if holder.fire() {
				fmt.Fprintln(os.Stderr, "\n"+warningStyle.Render("[Cancelled]"))
			}
		}
	}()

	if !rt.Quiet {
		printWelcome(rt)
	}

	for {
		line, err := input.ReadInput(promptStyle.Render("forgechat> "))
		if err != nil {
			// ErrPromptAborted (Ctrl+C) or EOF (Ctrl+D)
			fmt.Println()
			printExitSummary(stats)
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			keepGoing, err := handleSlashCommand(rt, line, stats, holder)
			if err != nil {
				fmt.Fprintln(os.Stderr, errorStyle.Render("[Error] ")+err.Error())
			}
			if !keepGoing {
				printExitSummary(stats)
				return nil
			}
			continue
		}

		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			printExitSummary(stats)
			return nil
		}

		if err := runTurn(rt, generate.ModeFresh, line, stats, holder); err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render("[Error] ")+err.Error())
		}
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

func handleSlashCommand(rt *Runtime, line string, stats *chatStats, holder *cancelHolder) (bool, error) {
	cmd := strings.ToLower(strings.Fields(line)[0])

	switch cmd {
	case "/quit", "/q", "/exit":
		return false, nil

	case "/help", "/h":
		printChatHelp()
		return true, nil

	case "/continue", "/o":
		return true, runTurn(rt, generate.ModeContinue, "", stats, holder)

	case "/retry", "/r":
		return true, runTurn(rt, generate.ModeRetry, "", stats, holder)

	case "/clear", "/c":
		rt.Registry.Reset(rt.Identity)
		fmt.Println(infoStyle.Render("conversation cleared"))
		return true, nil

	case "/status", "/s":
		printStatus(rt, stats)
		return true, nil

	case "/history":
		printHistory(rt)
		return true, nil

	default:
		return true, fmt.Errorf("unknown command %s (try /help)", cmd)
	}
}

// =============================================================================
// TURN PROCESSING
// =============================================================================

// runTurn executes one generation in the given mode and prints the
// reply.
func runTurn(rt *Runtime, mode generate.Mode, prompt string, stats *chatStats, holder *cancelHolder) error {
	entry := rt.Entry()
	if !entry.AcquireGeneration() {
		return fmt.Errorf("a generation is already in flight")
	}
	defer entry.ReleaseGeneration()

	if !entry.Limiter.Allow() {
		return fmt.Errorf("rate limited, give it a moment")
	}

	s := generate.NewSession(rt.Engine, entry.Conv, rt.sessionConfig())

	ctx, cancel := context.WithCancel(context.Background())
	holder.set(cancel)
	defer func() {
		holder.set(nil)
		cancel()
	}()

	if err := s.Start(ctx, mode, prompt); err != nil {
		return err
	}

	loggedPrompt := entry.Conv.LastUserTurn()

	// Markdown mode collects the reply and renders it settled; plain
	// mode streams fragments as they arrive.
	useMarkdown := IsStdoutTTY()
	fmt.Println()

	var out streamOutcome
	var err error
	if useMarkdown {
		out, err = drainSession(s, nil)
	} else {
		out, err = drainSession(s, os.Stdout)
	}

	stats.Requests++
	stats.TotalFragments += out.Fragments
	stats.TotalElapsed += out.Elapsed

	outcome := outcomeName(err)
	response := ""
	if err == nil {
		response = out.Result.Text
	}
	if logErr := rt.logSettlement(entry, mode, loggedPrompt, response, outcome, out); logErr != nil && !rt.Quiet {
		fmt.Fprintln(os.Stderr, warningStyle.Render("transcript write failed: "+logErr.Error()))
	}

	if err != nil {
		stats.Failures++
		return err
	}

	if useMarkdown {
		displayResponse(out.Result.Text)
	}
	fmt.Println()

	if !rt.Quiet {
		fmt.Println(infoStyle.Render(fmt.Sprintf("[%s · %d fragments · %s]",
			mode, out.Fragments, out.Elapsed.Round(10*time.Millisecond))))
		fmt.Println()
	}
	return nil
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printWelcome(rt *Runtime) {
	fmt.Println(headerStyle.Render("forgechat " + Version))
	fmt.Println(infoStyle.Render("model: " + rt.Config.Server.Model + " · server: " + rt.Config.Server.URL))
	fmt.Println(infoStyle.Render("Type /help for commands, Ctrl+D to exit."))
	fmt.Println()
}

func printChatHelp() {
	fmt.Println(headerStyle.Render("Commands"))
	fmt.Println("  /continue, /o   Extend the last model reply")
	fmt.Println("  /retry, /r      Regenerate the last model reply")
	fmt.Println("  /clear, /c      Clear conversation history")
	fmt.Println("  /status, /s     Show session statistics")
	fmt.Println("  /history        Show the conversation so far")
	fmt.Println("  /quit, /q       Exit chat")
	fmt.Println()
}

func printStatus(rt *Runtime, stats *chatStats) {
	entry := rt.Entry()
	sampling := rt.sessionConfig().Sampling
	fmt.Println(headerStyle.Render("Session"))
	fmt.Printf("  identity:   %s\n", entry.Identity)
	fmt.Printf("  turns:      %d\n", entry.Conv.TurnCount())
	fmt.Printf("  requests:   %d (%d failed)\n", stats.Requests, stats.Failures)
	fmt.Printf("  fragments:  %d\n", stats.TotalFragments)
	fmt.Printf("  sampling:   temp=%s top_p=%s max_tokens=%d\n",
		util.FloatToStringPrec(sampling.Temperature, 2),
		util.FloatToString(sampling.TopP),
		sampling.MaxNewTokens)
	fmt.Printf("  uptime:     %s\n", time.Since(stats.Started).Round(time.Second))
	fmt.Println()
}

func printHistory(rt *Runtime) {
	entry := rt.Entry()
	pairs := entry.Conv.Pairs()
	if len(pairs) == 0 {
		fmt.Println(infoStyle.Render("no conversation yet"))
		return
	}
	for _, pair := range pairs {
		fmt.Println(promptStyle.Render("You: ") + pair.User)
		fmt.Println("     " + strings.ReplaceAll(pair.Model, "\n", "\n     "))
		fmt.Println()
	}
}

func printExitSummary(stats *chatStats) {
	if stats.Requests == 0 {
		return
	}
	fmt.Println(infoStyle.Render(fmt.Sprintf("%d requests · %d fragments · %s",
		stats.Requests, stats.TotalFragments, stats.TotalElapsed.Round(time.Second))))
}
