// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package openai provides the chat completions client for OpenAI-compatible APIs.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ============================================================================
// Streaming Constants
// ============================================================================

const (
	// MaxEventSize limits a single SSE event (64KB) to prevent memory
	// issues from malformed streams.
	MaxEventSize = 64 * 1024

	// doneMarker terminates an SSE completion stream.
	doneMarker = "[DONE]"
)

// ============================================================================
// Streaming Types
// ============================================================================

// StreamChunk represents a single chunk from a streaming response.
type StreamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
			Role    string `json:"role"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// GetContent returns the content delta from the chunk.
func (c *StreamChunk) GetContent() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// IsDone returns true if the chunk signals stream completion.
func (c *StreamChunk) IsDone() bool {
	return len(c.Choices) > 0 && c.Choices[0].FinishReason != ""
}

// GetFinishReason returns the finish reason, if any.
func (c *StreamChunk) GetFinishReason() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].FinishReason
	}
	return ""
}

// StreamCallback is called for each chunk as it arrives.
type StreamCallback func(chunk StreamChunk)

// StreamError wraps an error that occurred mid-stream, preserving any
// partial content received before the failure.
type StreamError struct {
	Partial string
	Err     error
}

func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream interrupted after %d bytes: %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream failed: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// ============================================================================
// SSE Reader
// ============================================================================

// SSEReader reads Server-Sent Events from a stream.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates an SSE reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{reader: bufio.NewReader(r)}
}

// ReadEvent reads the next SSE event's data payload.
// Returns io.EOF when the stream ends cleanly.
func (s *SSEReader) ReadEvent() (string, error) {
	var dataLines []string
	size := 0

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF && len(dataLines) > 0 {
				// Stream ended with a pending event.
				return strings.Join(dataLines, "\n"), nil
			}
			return "", err
		}

		line = strings.TrimRight(line, "\r\n")

		// Blank line ends the event.
		if line == "" {
			if len(dataLines) > 0 {
				return strings.Join(dataLines, "\n"), nil
			}
			continue
		}

		// SSE comments start with a colon.
		if strings.HasPrefix(line, ":") {
			continue
		}

		if data, ok := strings.CutPrefix(line, "data:"); ok {
			data = strings.TrimPrefix(data, " ")
			size += len(data)
			// RELIABILITY: Cap event size against malformed streams.
			if size > MaxEventSize {
				return "", fmt.Errorf("sse event exceeds %d bytes", MaxEventSize)
			}
			dataLines = append(dataLines, data)
		}
		// Other fields (event:, id:, retry:) are ignored.
	}
}

// ============================================================================
// Streaming Chat
// ============================================================================

// ChatStream sends a conversation and streams the response, invoking the
// callback for each chunk as it arrives.
//
// STREAMING: The request context governs the stream's lifetime; there is
// no client timeout because a healthy stream may run for minutes.
func (c *Client) ChatStream(ctx context.Context, messages []ChatMessage, callback StreamCallback) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	reqBody := ChatRequest{
		Model:       c.model,
		Messages:    messages,
		Stream:      true,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := sharedStreamingClient.Do(req)
	req.Header.Del("Authorization")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, readErr := readResponse(resp.Body)
		if readErr != nil {
			return fmt.Errorf("stream request failed with status %d", resp.StatusCode)
		}
		return handleErrorResponse(resp.StatusCode, resp.Header, respBody)
	}

	return processStream(ctx, resp.Body, callback)
}

// processStream reads SSE events until [DONE], a finish chunk, or an error.
func processStream(ctx context.Context, body io.Reader, callback StreamCallback) error {
	reader := NewSSEReader(body)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		data, err := reader.ReadEvent()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("stream read failed: %w", err)
		}

		if data == doneMarker {
			return nil
		}

		var chunk StreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// RELIABILITY: Skip malformed chunks rather than aborting
			// a stream that may still carry good data.
			continue
		}

		callback(chunk)

		if chunk.IsDone() {
			return nil
		}
	}
}

// ChatStreamAccumulate streams a response, invoking the callback per chunk,
// and returns the accumulated content. On mid-stream failure the error is a
// *StreamError carrying whatever partial content arrived.
func (c *Client) ChatStreamAccumulate(ctx context.Context, messages []ChatMessage, callback StreamCallback) (string, error) {
	var buf strings.Builder

	err := c.ChatStream(ctx, messages, func(chunk StreamChunk) {
		buf.WriteString(chunk.GetContent())
		if callback != nil {
			callback(chunk)
		}
	})
	if err != nil {
		return buf.String(), &StreamError{Partial: buf.String(), Err: err}
	}
	return buf.String(), nil
}

// ============================================================================
// Stream Accumulator
// ============================================================================

// StreamAccumulator collects streamed chunks into a full response while
// tracking timing statistics.
type StreamAccumulator struct {
	content      strings.Builder
	model        string
	finishReason string
	chunkCount   int
	startTime    time.Time
	firstToken   time.Time
	done         bool
}

// NewStreamAccumulator creates an accumulator; timing starts immediately.
func NewStreamAccumulator() *StreamAccumulator {
	return &StreamAccumulator{startTime: time.Now()}
}

// Add processes a chunk.
func (a *StreamAccumulator) Add(chunk StreamChunk) {
	content := chunk.GetContent()
	if content != "" && a.firstToken.IsZero() {
		a.firstToken = time.Now()
	}
	a.content.WriteString(content)
	a.chunkCount++
	if chunk.Model != "" {
		a.model = chunk.Model
	}
	if reason := chunk.GetFinishReason(); reason != "" {
		a.finishReason = reason
		a.done = true
	}
}

// Callback returns a StreamCallback that feeds this accumulator.
func (a *StreamAccumulator) Callback() StreamCallback {
	return func(chunk StreamChunk) {
		a.Add(chunk)
	}
}

// Content returns the accumulated text.
func (a *StreamAccumulator) Content() string {
	return a.content.String()
}

// IsDone returns true once a finish reason arrived.
func (a *StreamAccumulator) IsDone() bool {
	return a.done
}

// FinishReason returns the finish reason, if received.
func (a *StreamAccumulator) FinishReason() string {
	return a.finishReason
}

// Stats summarizes the stream's timing.
func (a *StreamAccumulator) Stats() StreamStats {
	stats := StreamStats{
		Model:      a.model,
		ChunkCount: a.chunkCount,
		TotalTime:  time.Since(a.startTime),
		// Rough heuristic: ~4 chars per token.
		TokenCount: a.content.Len() / 4,
	}
	if !a.firstToken.IsZero() {
		stats.TimeToFirstToken = a.firstToken.Sub(a.startTime)
	}
	return stats
}

// StreamStats holds timing statistics for a completed stream.
type StreamStats struct {
	Model            string
	ChunkCount       int
	TokenCount       int
	TimeToFirstToken time.Duration
	TotalTime        time.Duration
}

// Format renders the stats as a short display line.
func (s StreamStats) Format() string {
	secs := s.TotalTime.Seconds()
	if secs <= 0 {
		return fmt.Sprintf("%d tokens", s.TokenCount)
	}
	rate := float64(s.TokenCount) / secs
	if s.TotalTime < time.Second {
		return fmt.Sprintf("%dms | %d tokens | %.1f tok/s", s.TotalTime.Milliseconds(), s.TokenCount, rate)
	}
	return fmt.Sprintf("%.1fs | %d tokens | %.1f tok/s", secs, s.TokenCount, rate)
}
