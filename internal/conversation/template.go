// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// FEW-SHOT TEMPLATES
// =============================================================================

// Template is a few-shot seed for new conversations: a list of complete
// exchanges the model sees as prior history.
//
// File format (TOML):
//
//	[[exchange]]
//	user  = "What is 2+2?"
//	model = "4"
type Template struct {
	Exchanges []TemplateExchange `toml:"exchange"`
}

// TemplateExchange is one seeded (user, model) pair.
type TemplateExchange struct {
	User  string `toml:"user"`
	Model string `toml:"model"`
}

// LoadTemplate parses a few-shot template file.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}

	var tpl Template
	if err := toml.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	for i, ex := range tpl.Exchanges {
		if ex.User == "" || ex.Model == "" {
			return nil, fmt.Errorf("template exchange %d is incomplete", i)
		}
	}

	return &tpl, nil
}

// NewFromTemplate creates a conversation pre-seeded with the template's
// exchanges.
func NewFromTemplate(path string) (*Conversation, error) {
	tpl, err := LoadTemplate(path)
	if err != nil {
		return nil, err
	}

	conv := New()
	for _, ex := range tpl.Exchanges {
		conv.AppendExchange(ex.User, ex.Model)
	}
	return conv, nil
}
