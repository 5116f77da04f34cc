// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

// Wire types for the local inference server's line-delimited JSON
// streaming protocol.

// generateRequest is the body of POST /api/generate and /api/continue.
type generateRequest struct {
	Model    string        `json:"model"`
	Prompt   string        `json:"prompt,omitempty"`
	History  []historyTurn `json:"history"`
	Options  *wireOptions  `json:"options,omitempty"`
	Continue bool          `json:"continue,omitempty"`
	Stream   bool          `json:"stream"`
}

// historyTurn is one (user, model) exchange on the wire.
type historyTurn struct {
	User  string `json:"user"`
	Model string `json:"model"`
}

// wireOptions mirrors Options with the server's field names.
type wireOptions struct {
	MaxNewTokens int     `json:"max_new_tokens"`
	DoSample     bool    `json:"do_sample"`
	TopK         int     `json:"top_k"`
	TopP         float64 `json:"top_p"`
	Temperature  float64 `json:"temperature"`
	Seed         *int64  `json:"seed,omitempty"`
}

// streamChunk is one line of the streaming response.
type streamChunk struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`

	// Final-chunk fields.
	FinalText      string `json:"final_text,omitempty"`
	DroppedTurns   int    `json:"dropped_turns,omitempty"`
	DoneReason     string `json:"done_reason,omitempty"`
	EvalCount      int    `json:"eval_count,omitempty"`
	EvalDurationNs int64  `json:"eval_duration,omitempty"`
}

// serverError is the JSON error body for non-200 responses.
type serverError struct {
	Error string `json:"error"`
}

// infoResponse is the body of GET /api/info.
type infoResponse struct {
	Model         string `json:"model"`
	ContextWindow int    `json:"context_window"`
}

func toWireOptions(o Options) *wireOptions {
	return &wireOptions{
		MaxNewTokens: o.MaxNewTokens,
		DoSample:     o.DoSample,
		TopK:         o.TopK,
		TopP:         o.TopP,
		Temperature:  o.Temperature,
		Seed:         o.Seed,
	}
}

func toHistory(userTurns, modelTurns []string) []historyTurn {
	n := len(userTurns)
	if len(modelTurns) < n {
		n = len(modelTurns)
	}
	turns := make([]historyTurn, 0, n)
	for i := 0; i < n; i++ {
		turns = append(turns, historyTurn{User: userTurns[i], Model: modelTurns[i]})
	}
	return turns
}
