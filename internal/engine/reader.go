// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/jeranaias/forgechat/internal/conversation"
)

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader parses the line-delimited JSON stream of a generation
// response and applies it to a conversation while forwarding fragments to
// a sink.
type StreamReader struct {
	reader *bufio.Reader
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	accumulator strings.Builder
	fragments   int
}

// NewStreamReader creates a stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{reader: bufio.NewReader(r)}
}

// Apply consumes the stream until completion or context cancellation.
//
// For each content chunk the fragment is pushed to sink and the
// accumulated text is written into conv's trailing model turn (appended to
// the prior text in appendMode). The final chunk may carry server-side
// post-processing: a FinalText overriding the accumulation and a count of
// history exchanges dropped for context-window fit, both applied to conv
// before returning.
func (s *StreamReader) Apply(ctx context.Context, conv *conversation.Conversation, sink Sink, appendMode bool) error {
	base := ""
	if appendMode {
		base = conv.LastModelTurn()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		chunk, err := s.readChunk()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return &ClientError{Type: ErrTypeInvalidResponse, Message: "stream read failed", Cause: err}
		}
		if chunk == nil {
			continue
		}

		if chunk.Content != "" {
			s.accumulator.WriteString(chunk.Content)
			s.fragments++
			if sink != nil {
				sink.Put(chunk.Content)
			}
			conv.SetLastModelTurn(base + s.accumulator.String())
		}

		if chunk.Done {
			s.finalize(conv, chunk, base)
			return nil
		}
	}
}

// finalize applies the final chunk's post-processing to the conversation.
func (s *StreamReader) finalize(conv *conversation.Conversation, chunk *streamChunk, base string) {
	if chunk.FinalText != "" {
		conv.SetLastModelTurn(chunk.FinalText)
	}
	for i := 0; i < chunk.DroppedTurns; i++ {
		if len(conv.UserTurns) <= 1 {
			break
		}
		conv.UserTurns = conv.UserTurns[1:]
		conv.ModelTurns = conv.ModelTurns[1:]
	}
}

// readChunk reads and parses a single line from the stream.
func (s *StreamReader) readChunk() (*streamChunk, error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) == 0 {
			return nil, io.EOF
		}
		// Try to process the last line even on EOF.
		if len(line) == 0 {
			return nil, err
		}
	}

	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return nil, nil
	}

	var chunk streamChunk
	if err := json.Unmarshal([]byte(trimmed), &chunk); err != nil {
		// Skip malformed lines.
		return nil, nil
	}

	return &chunk, nil
}

// Accumulated returns all content seen so far.
func (s *StreamReader) Accumulated() string {
	return s.accumulator.String()
}

// FragmentCount returns the number of content fragments received.
func (s *StreamReader) FragmentCount() int {
	return s.fragments
}
