// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// args.go - Argument parsing for the forgechat CLI.
//
// Hand-rolled parsing: global flags first, then the command word, then
// command-specific args. Flags accept both "--flag value" and
// "--flag=value" forms.
package cli

import (
	"fmt"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time).
var (
	Version   = "0.2.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdChat
	CmdSessions
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Model    string // --model NAME, overrides config
	Template string // --template FILE, few-shot conversation seed
	URL      string // --url URL, inference server override
	User     string // --user NAME, identity for auth and transcripts
	NoAuth   bool   // --no-auth, skip the credentials check
	Quiet    bool   // -q, --quiet
	Verbose  bool   // -v, --verbose

	// Command-specific
	Query string // ask: the prompt text
	Limit int    // sessions: --limit N

	// Raw args remaining after flag parsing
	Raw []string
}

const usageText = `forgechat - streaming chat front-end for a local inference server

Usage:
  forgechat                    Start the TUI (default)
  forgechat ask "question"     Ask once, stream the answer, exit
  forgechat chat               Interactive REPL
  forgechat sessions           List recent generations from the ledger
  forgechat version            Print version information

Chat REPL commands:
  /continue                    Extend the last model reply
  /retry                       Regenerate the last model reply
  /clear                       Clear the conversation
  /status                      Show session statistics
  /quit                        Exit (also Ctrl+D)
  Ctrl+C                       Cancel the in-flight generation

Global Flags:
  --model NAME      Override the configured model
  --template FILE   Seed the conversation from a TOML few-shot template
  --url URL         Override the inference server URL
  --user NAME       Identity for authentication and transcripts
  --no-auth         Skip the credentials file check
  -q, --quiet       Minimal output
  -v, --verbose     Debug output

Sessions Flags:
  --limit N         Show the last N generations (default: 20)

Examples:
  forgechat ask "What is a goroutine?"
  forgechat ask --model llama2-13b-chat "Summarize this"
  forgechat chat --template examples/pirate.toml
  forgechat --user alice chat
  forgechat sessions --limit 50

Version: %s
`

// PrintUsage writes the usage text to stdout.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion writes version information to stdout.
func PrintVersion() {
	fmt.Printf("forgechat %s\n", Version)
	fmt.Printf("  commit:  %s\n", GitCommit)
	fmt.Printf("  built:   %s\n", BuildDate)
	fmt.Printf("  go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// =============================================================================
// PARSING
// =============================================================================

// Parse parses argv (without the program name) into a command and args.
func Parse(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, args
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	args.Raw = remaining

	switch cmd {
	case "tui":
		return CmdTUI, args

	case "ask":
		parseAskArgs(&args, remaining)
		return CmdAsk, args

	case "chat":
		return CmdChat, args

	case "session", "sessions":
		parseSessionsArgs(&args, remaining)
		return CmdSessions, args

	case "version", "-v", "--version":
		return CmdVersion, args

	case "help", "-h", "--help":
		return CmdHelp, args

	default:
		// Unknown word: treat the whole line as an ask query. Lets
		// `forgechat "what is X"` work without the command word.
		args.Query = strings.TrimSpace(strings.Join(append([]string{cmd}, remaining...), " "))
		if args.Query != "" {
			return CmdAsk, args
		}
		return CmdTUI, args
	}
}

// parseGlobalFlags extracts global flags and returns the remaining args.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var remaining []string
	var args Args

	i := 0
	for i < len(argv) {
		arg := argv[i]

		// --flag=value form
		if name, value, ok := splitEquals(arg); ok {
			switch name {
			case "model":
				args.Model = value
			case "template":
				args.Template = value
			case "url":
				args.URL = value
			case "user":
				args.User = value
			default:
				remaining = append(remaining, arg)
			}
			i++
			continue
		}

		switch arg {
		case "--model", "-m":
			if i+1 < len(argv) {
				args.Model = argv[i+1]
				i++
			}
		case "--template", "-t":
			if i+1 < len(argv) {
				args.Template = argv[i+1]
				i++
			}
		case "--url":
			if i+1 < len(argv) {
				args.URL = argv[i+1]
				i++
			}
		case "--user", "-u":
			if i+1 < len(argv) {
				args.User = argv[i+1]
				i++
			}
		case "--no-auth":
			args.NoAuth = true
		case "-q", "--quiet":
			args.Quiet = true
		case "-v", "--verbose":
			args.Verbose = true
		default:
			remaining = append(remaining, arg)
		}
		i++
	}

	return remaining, args
}

// parseAskArgs joins the remaining positional args into the query.
func parseAskArgs(args *Args, remaining []string) {
	var words []string
	for _, arg := range remaining {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		words = append(words, arg)
	}
	args.Query = strings.TrimSpace(strings.Join(words, " "))
}

// parseSessionsArgs reads the --limit flag.
func parseSessionsArgs(args *Args, remaining []string) {
	args.Limit = 20
	for i := 0; i < len(remaining); i++ {
		arg := remaining[i]
		if name, value, ok := splitEquals(arg); ok && name == "limit" {
			if n := atoiOrZero(value); n > 0 {
				args.Limit = n
			}
			continue
		}
		if (arg == "--limit" || arg == "-n") && i+1 < len(remaining) {
			if n := atoiOrZero(remaining[i+1]); n > 0 {
				args.Limit = n
			}
			i++
		}
	}
}

// splitEquals splits "--flag=value" into ("flag", "value", true).
func splitEquals(arg string) (name, value string, ok bool) {
	if !strings.HasPrefix(arg, "-") || !strings.Contains(arg, "=") {
		return "", "", false
	}
	parts := strings.SplitN(arg, "=", 2)
	return strings.TrimLeft(parts[0], "-"), parts[1], true
}

func atoiOrZero(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
