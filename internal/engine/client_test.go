// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/forgechat/internal/conversation"
)

// collectSink records fragments in order.
type collectSink struct {
	fragments []string
}

func (s *collectSink) Put(fragment string) {
	s.fragments = append(s.fragments, fragment)
}

func newStreamServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, line := range lines {
			_, _ = w.Write([]byte(line + "\n"))
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}))
}

func TestClientGenerateTurn(t *testing.T) {
	srv := newStreamServer(t, []string{
		`{"content":"Hi"}`,
		`{"content":" there"}`,
		`{"content":"!","done":true}`,
	})
	defer srv.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	conv := conversation.New()
	conv.AppendUserTurn("Hello")

	sink := &collectSink{}
	err := client.GenerateTurn(context.Background(), "Hello", conv, Options{MaxNewTokens: 32}, sink)
	require.NoError(t, err)

	assert.Equal(t, []string{"Hi", " there", "!"}, sink.fragments)
	assert.Equal(t, "Hi there!", conv.LastModelTurn())
}

func TestClientGenerateTurnFinalText(t *testing.T) {
	// The server may post-process the settled text; the conversation must
	// reflect the final form, not the raw accumulation.
	srv := newStreamServer(t, []string{
		`{"content":"raw "}`,
		`{"content":"text"}`,
		`{"done":true,"final_text":"polished text","done_reason":"stop"}`,
	})
	defer srv.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	conv := conversation.New()
	conv.AppendUserTurn("q")

	sink := &collectSink{}
	err := client.GenerateTurn(context.Background(), "q", conv, Options{MaxNewTokens: 32}, sink)
	require.NoError(t, err)

	assert.Equal(t, []string{"raw ", "text"}, sink.fragments)
	assert.Equal(t, "polished text", conv.LastModelTurn())
}

func TestClientGenerateTurnDroppedTurns(t *testing.T) {
	srv := newStreamServer(t, []string{
		`{"content":"ok","done":true,"dropped_turns":1}`,
	})
	defer srv.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	conv := conversation.New()
	conv.AppendExchange("old q", "old a")
	conv.AppendUserTurn("new q")

	err := client.GenerateTurn(context.Background(), "new q", conv, Options{MaxNewTokens: 32}, &collectSink{})
	require.NoError(t, err)

	// Oldest exchange truncated for context-window fit.
	assert.Equal(t, 1, conv.TurnCount())
	assert.Equal(t, "new q", conv.LastUserTurn())
	assert.Equal(t, "ok", conv.LastModelTurn())
}

func TestClientContinueTurnAppends(t *testing.T) {
	srv := newStreamServer(t, []string{
		`{"content":" there","done":true}`,
	})
	defer srv.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	conv := conversation.New()
	conv.AppendUserTurn("Hello")
	conv.SetLastModelTurn("Hi")

	sink := &collectSink{}
	err := client.ContinueTurn(context.Background(), conv, Options{MaxNewTokens: 32}, sink)
	require.NoError(t, err)

	// Fragments carry only the new text; the turn keeps the prior prefix.
	assert.Equal(t, []string{" there"}, sink.fragments)
	assert.Equal(t, "Hi there", conv.LastModelTurn())
}

func TestClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model exploded"}`))
	}))
	defer srv.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	conv := conversation.New()
	conv.AppendUserTurn("q")

	err := client.GenerateTurn(context.Background(), "q", conv, Options{MaxNewTokens: 32}, &collectSink{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model exploded")
}

func TestClientModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	conv := conversation.New()
	conv.AppendUserTurn("q")

	err := client.GenerateTurn(context.Background(), "q", conv, Options{MaxNewTokens: 32}, &collectSink{})
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestClientNotRunning(t *testing.T) {
	client := NewClientWithConfig(&ClientConfig{BaseURL: "http://127.0.0.1:1"})
	err := client.CheckRunning(context.Background())
	assert.True(t, IsNotRunning(err), "expected a not-running error, got %v", err)
}

func TestClientContextWindowSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model":"llama2-7b-chat","context_window":4096}`))
	}))
	defer srv.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	size, err := client.ContextWindowSize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4096, size)
}

func TestOptionsValidate(t *testing.T) {
	valid := Options{MaxNewTokens: 512, DoSample: true, TopK: 50, TopP: 0.9, Temperature: 0.8}
	assert.NoError(t, valid.Validate())

	cases := []Options{
		{MaxNewTokens: 0},
		{MaxNewTokens: 16, TopK: -1},
		{MaxNewTokens: 16, TopP: 1.5},
		{MaxNewTokens: 16, Temperature: -0.1},
	}
	for i, opts := range cases {
		if opts.Validate() == nil {
			t.Errorf("Case %d should fail validation: %+v", i, opts)
		}
	}
}
