// forgechat - streaming chat front-end for a local inference server.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/forgechat/internal/auth"
	"github.com/jeranaias/forgechat/internal/cli"
	"github.com/jeranaias/forgechat/internal/config"
	"github.com/jeranaias/forgechat/internal/conversation"
	"github.com/jeranaias/forgechat/internal/engine"
	"github.com/jeranaias/forgechat/internal/flaglog"
	"github.com/jeranaias/forgechat/internal/registry"
	"github.com/jeranaias/forgechat/internal/telemetry"
	"github.com/jeranaias/forgechat/internal/ui/chat"
)

// Version information (set at build time).
var (
	Version   = "0.2.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse(os.Args[1:])

	switch cmd {
	case cli.CmdVersion:
		cli.PrintVersion()
		return
	case cli.CmdHelp:
		cli.PrintUsage()
		return
	}

	cfg, err := loadConfig(args)
	if err != nil {
		fatalf("config: %v", err)
	}

	identity, err := resolveIdentity(cfg, args)
	if err != nil {
		fatalf("%v", err)
	}

	rt, cleanup, err := buildRuntime(cfg, args, identity)
	if err != nil {
		fatalf("%v", err)
	}
	defer cleanup()

	switch cmd {
	case cli.CmdAsk:
		if err := cli.HandleAsk(rt, args); err != nil {
			fatalf("%v", err)
		}
	case cli.CmdChat:
		if err := cli.HandleChat(rt, args); err != nil {
			fatalf("%v", err)
		}
	case cli.CmdSessions:
		if err := cli.HandleSessions(rt, args); err != nil {
			fatalf("%v", err)
		}
	case cli.CmdTUI:
		if err := runTUI(rt); err != nil {
			fatalf("%v", err)
		}
	}
}

// =============================================================================
// SETUP
// =============================================================================

// loadConfig loads the config file and layers CLI overrides on top.
func loadConfig(args cli.Args) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if args.URL != "" {
		cfg.Server.URL = args.URL
	}
	if args.Model != "" {
		cfg.Server.Model = args.Model
	}
	if args.Template != "" {
		cfg.Generation.TemplatePath = args.Template
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	config.SetGlobal(cfg)
	return cfg, nil
}

// resolveIdentity decides who transcripts are attributed to. With auth
// disabled (or --no-auth) any --user name is taken at face value; with
// auth enabled the credentials file is consulted. A missing credentials
// file downgrades to anonymous rather than locking everyone out.
func resolveIdentity(cfg *config.Config, args cli.Args) (string, error) {
	if args.NoAuth || !cfg.Auth.Enabled {
		if args.User != "" {
			return args.User, nil
		}
		return flaglog.AnonymousIdentity, nil
	}

	credPath, err := cfg.CredentialsPath()
	if err != nil {
		return "", err
	}

	store, err := auth.LoadFile(credPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "warning: credentials file %s not found, continuing unauthenticated\n", credPath)
			return flaglog.AnonymousIdentity, nil
		}
		return "", fmt.Errorf("loading credentials: %w", err)
	}

	identity, err := cli.Login(store, args.User)
	if err != nil {
		return "", err
	}
	return identity, nil
}

// buildRuntime wires the engine client, registry, transcripts, and
// telemetry into the runtime every surface runs against.
func buildRuntime(cfg *config.Config, args cli.Args, identity string) (*cli.Runtime, func(), error) {
	logDir, err := cfg.LogDir()
	if err != nil {
		return nil, nil, err
	}
	logs := flaglog.NewManager(logDir)

	var ledger *telemetry.Ledger
	if cfg.Logging.TelemetryEnabled {
		path, err := cfg.TelemetryPath()
		if err != nil {
			return nil, nil, err
		}
		ledger, err = telemetry.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening telemetry ledger: %w", err)
		}
	}

	reg := registry.New(&registry.Config{
		Logs:            logs,
		NewConversation: conversationSeed(cfg),
	})

	eng := engine.NewClientWithConfig(&engine.ClientConfig{
		BaseURL: cfg.Server.URL,
		Model:   cfg.Server.Model,
		Timeout: cfg.RequestTimeout(),
	})

	rt := &cli.Runtime{
		Config:   cfg,
		Engine:   eng,
		Registry: reg,
		Ledger:   ledger,
		Identity: identity,
		Quiet:    args.Quiet,
		Verbose:  args.Verbose,
	}

	cleanup := func() {
		if ledger != nil {
			ledger.Close()
		}
	}
	return rt, cleanup, nil
}

// conversationSeed returns the factory for new conversations, loading
// the few-shot template once when one is configured.
func conversationSeed(cfg *config.Config) func() *conversation.Conversation {
	path := cfg.Generation.TemplatePath
	if path == "" {
		return conversation.New
	}

	// Probe the template once so a bad path fails loudly at startup
	// instead of silently seeding empty conversations.
	if _, err := conversation.LoadTemplate(path); err != nil {
		fmt.Fprintf(os.Stderr, "warning: template %s unusable (%v), starting conversations empty\n", path, err)
		return conversation.New
	}

	return func() *conversation.Conversation {
		conv, err := conversation.NewFromTemplate(path)
		if err != nil {
			return conversation.New()
		}
		return conv
	}
}

// =============================================================================
// TUI
// =============================================================================

// runTUI starts the Bubble Tea interface with live config reload.
func runTUI(rt *cli.Runtime) error {
	if path, err := config.Path(); err == nil {
		if watcher, err := config.NewWatcher(path, 0, nil); err == nil {
			if err := watcher.Watch(); err == nil {
				defer watcher.Close()
			}
		}
	}

	entry := rt.Registry.GetOrCreate(rt.Identity)
	model := chat.New(rt.Config, rt.Engine, rt.Registry, entry, rt.Ledger)

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", a...)
	os.Exit(1)
}
