// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jeranaias/forgechat/internal/conversation"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the inference server client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeModelNotFound
	ErrTypeContextExceeded
	ErrTypeConnection
	ErrTypeInvalidResponse
)

// Sentinel errors for easy checking.
var (
	ErrNotRunning    = &ClientError{Type: ErrTypeNotRunning, Message: "inference server is not running"}
	ErrTimeout       = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrModelNotFound = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found"}
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the inference client.
type ClientConfig struct {
	// BaseURL is the inference server base URL (default: http://127.0.0.1:8750).
	// Uses an explicit IPv4 address to avoid IPv6 resolution issues on Windows.
	BaseURL string

	// Model is the model name sent with every request.
	Model string

	// Timeout for non-streaming requests (default: 30s).
	Timeout time.Duration
}

// DefaultClientConfig returns the default client configuration.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL: "http://127.0.0.1:8750",
		Model:   "llama2-7b-chat",
		Timeout: 30 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is the HTTP implementation of Engine against a local inference
// server speaking line-delimited JSON. Safe for concurrent use, though the
// session layer never runs two generations against one conversation.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
}

var _ Engine = (*Client)(nil)

// NewClient creates a client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultClientConfig())
}

// NewClientWithConfig creates a client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:8750"
	}
	if config.Model == "" {
		config.Model = "llama2-7b-chat"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.config.Model
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckRunning verifies the inference server is reachable.
func (c *Client) CheckRunning(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/info", nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ErrNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeConnection,
			Message: "unexpected status from inference server: " + resp.Status,
		}
	}

	return nil
}

// =============================================================================
// GENERATION
// =============================================================================

// GenerateTurn implements Engine. conv must end with the (prompt, "")
// placeholder; the streamed and post-processed model text replaces the
// placeholder before the call returns.
func (c *Client) GenerateTurn(ctx context.Context, prompt string, conv *conversation.Conversation, opts Options, sink Sink) error {
	reqBody := generateRequest{
		Model:   c.config.Model,
		Prompt:  prompt,
		History: toHistory(conv.UserTurns, conv.ModelTurns),
		Options: toWireOptions(opts),
		Stream:  true,
	}
	return c.streamTurn(ctx, "/api/generate", reqBody, conv, sink, false)
}

// ContinueTurn implements Engine. Fragments carry only newly generated
// text, appended to the existing trailing model turn.
func (c *Client) ContinueTurn(ctx context.Context, conv *conversation.Conversation, opts Options, sink Sink) error {
	reqBody := generateRequest{
		Model:    c.config.Model,
		History:  toHistory(conv.UserTurns, conv.ModelTurns),
		Options:  toWireOptions(opts),
		Continue: true,
		Stream:   true,
	}
	return c.streamTurn(ctx, "/api/continue", reqBody, conv, sink, true)
}

// streamTurn posts the request and applies the streamed response to conv.
func (c *Client) streamTurn(ctx context.Context, path string, reqBody generateRequest, conv *conversation.Conversation, sink Sink, appendMode bool) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	// No client timeout for streaming; lifetime is governed by ctx.
	streamClient := &http.Client{}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := streamClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return ErrTimeout
		}
		return ErrNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrModelNotFound
	}

	if resp.StatusCode != http.StatusOK {
		var srvErr serverError
		if err := json.NewDecoder(resp.Body).Decode(&srvErr); err == nil && srvErr.Error != "" {
			return &ClientError{Type: ErrTypeInvalidResponse, Message: srvErr.Error}
		}
		return &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: "generation request failed: " + resp.Status,
		}
	}

	reader := NewStreamReader(resp.Body)
	return reader.Apply(ctx, conv, sink, appendMode)
}

// ContextWindowSize implements Engine.
func (c *Client) ContextWindowSize(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/info", nil)
	if err != nil {
		return 0, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, ErrTimeout
		}
		return 0, ErrNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: "info request failed: " + resp.Status,
		}
	}

	var info infoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return 0, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}

	return info.ContextWindow, nil
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotRunning checks if an error indicates the server is unreachable.
func IsNotRunning(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeNotRunning
	}
	return false
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeTimeout
	}
	return false
}
