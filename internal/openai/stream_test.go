// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// deltaEvent builds an SSE data line carrying a content delta.
func deltaEvent(content string) string {
	return fmt.Sprintf(`data: {"id":"chatcmpl-test","choices":[{"delta":{"content":%q},"finish_reason":""}]}`+"\n\n", content)
}

func finishEvent() string {
	return `data: {"id":"chatcmpl-test","choices":[{"delta":{},"finish_reason":"stop"}]}` + "\n\n"
}

// streamServer returns a mock server that writes the given SSE payload.
func streamServer(t *testing.T, events ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("Accept header = %q, want text/event-stream", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Error("response writer does not support flushing")
			return
		}
		for _, event := range events {
			io.WriteString(w, event)
			flusher.Flush()
		}
	}))
}

func TestSSEReader_ReadEvent(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "single event",
			input: "data: hello\n\n",
			want:  []string{"hello"},
		},
		{
			name:  "two events",
			input: "data: one\n\ndata: two\n\n",
			want:  []string{"one", "two"},
		},
		{
			name:  "multiline data joined",
			input: "data: first\ndata: second\n\n",
			want:  []string{"first\nsecond"},
		},
		{
			name:  "comments skipped",
			input: ": keep-alive\n\ndata: payload\n\n",
			want:  []string{"payload"},
		},
		{
			name:  "crlf line endings",
			input: "data: windows\r\n\r\n",
			want:  []string{"windows"},
		},
		{
			name:  "no space after colon",
			input: "data:tight\n\n",
			want:  []string{"tight"},
		},
		{
			name:  "pending event at eof",
			input: "data: tail",
			want:  []string{"tail"},
		},
		{
			name:  "non-data fields ignored",
			input: "event: message\nid: 42\ndata: body\n\n",
			want:  []string{"body"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := NewSSEReader(strings.NewReader(tt.input))
			var got []string
			for {
				data, err := reader.ReadEvent()
				if err == io.EOF {
					break
				}
				if err != nil {
					t.Fatalf("ReadEvent() error = %v", err)
				}
				got = append(got, data)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ReadEvent() yielded %d events %q, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("event[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSSEReader_EventSizeCap(t *testing.T) {
	huge := "data: " + strings.Repeat("x", MaxEventSize+1) + "\n\n"
	reader := NewSSEReader(strings.NewReader(huge))
	_, err := reader.ReadEvent()
	if err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("ReadEvent(oversized) error = %v, want size error", err)
	}
}

func TestChatStream_DeliversDeltas(t *testing.T) {
	server := streamServer(t,
		deltaEvent("Hel"),
		deltaEvent("lo!"),
		finishEvent(),
		"data: [DONE]\n\n",
	)
	defer server.Close()

	client := newTestClient(server.URL)
	var deltas []string
	err := client.ChatStream(context.Background(), []ChatMessage{NewUserMessage("Hi")}, func(chunk StreamChunk) {
		deltas = append(deltas, chunk.GetContent())
	})
	if err != nil {
		t.Fatalf("ChatStream() error = %v, want nil", err)
	}

	want := []string{"Hel", "lo!", ""}
	if len(deltas) != len(want) {
		t.Fatalf("received %d deltas %q, want %d", len(deltas), deltas, len(want))
	}
	for i := range want {
		if deltas[i] != want[i] {
			t.Errorf("delta[%d] = %q, want %q", i, deltas[i], want[i])
		}
	}
}

func TestChatStream_StopsAtDoneMarker(t *testing.T) {
	server := streamServer(t,
		deltaEvent("done test"),
		"data: [DONE]\n\n",
		deltaEvent("never delivered"),
	)
	defer server.Close()

	client := newTestClient(server.URL)
	var got string
	err := client.ChatStream(context.Background(), []ChatMessage{NewUserMessage("Hi")}, func(chunk StreamChunk) {
		got += chunk.GetContent()
	})
	if err != nil {
		t.Fatalf("ChatStream() error = %v, want nil", err)
	}
	if got != "done test" {
		t.Errorf("accumulated content = %q, want %q", got, "done test")
	}
}

func TestChatStream_SkipsMalformedChunks(t *testing.T) {
	server := streamServer(t,
		deltaEvent("good"),
		"data: {not json at all\n\n",
		deltaEvent(" data"),
		"data: [DONE]\n\n",
	)
	defer server.Close()

	client := newTestClient(server.URL)
	var got string
	err := client.ChatStream(context.Background(), []ChatMessage{NewUserMessage("Hi")}, func(chunk StreamChunk) {
		got += chunk.GetContent()
	})
	if err != nil {
		t.Fatalf("ChatStream() error = %v, want nil", err)
	}
	if got != "good data" {
		t.Errorf("accumulated content = %q, want %q", got, "good data")
	}
}

func TestChatStream_ErrorStatusMapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "Incorrect API key provided"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.ChatStream(context.Background(), []ChatMessage{NewUserMessage("Hi")}, func(StreamChunk) {})
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("ChatStream() error = %v, want ErrAuthFailed", err)
	}
}

func TestChatStream_NotConfigured(t *testing.T) {
	client := NewClient("")
	err := client.ChatStream(context.Background(), []ChatMessage{NewUserMessage("Hi")}, func(StreamChunk) {})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("ChatStream() error = %v, want ErrNotConfigured", err)
	}
}

func TestChatStream_ContextCanceled(t *testing.T) {
	server := streamServer(t,
		deltaEvent("first"),
		deltaEvent("second"),
		"data: [DONE]\n\n",
	)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := newTestClient(server.URL)
	err := client.ChatStream(ctx, []ChatMessage{NewUserMessage("Hi")}, func(chunk StreamChunk) {
		// Cancel as soon as the first delta lands.
		cancel()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ChatStream() error = %v, want context.Canceled", err)
	}
}

func TestChatStreamAccumulate_Success(t *testing.T) {
	server := streamServer(t,
		deltaEvent("Hello"),
		deltaEvent(", "),
		deltaEvent("world!"),
		finishEvent(),
		"data: [DONE]\n\n",
	)
	defer server.Close()

	client := newTestClient(server.URL)
	var chunks int
	content, err := client.ChatStreamAccumulate(context.Background(), []ChatMessage{NewUserMessage("Hi")}, func(StreamChunk) {
		chunks++
	})
	if err != nil {
		t.Fatalf("ChatStreamAccumulate() error = %v, want nil", err)
	}
	if content != "Hello, world!" {
		t.Errorf("content = %q, want %q", content, "Hello, world!")
	}
	if chunks != 4 {
		t.Errorf("callback invoked %d times, want 4", chunks)
	}
}

func TestChatStreamAccumulate_PartialOnAbruptClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		io.WriteString(w, deltaEvent("partial text"))
		flusher.Flush()

		// Kill the connection mid-stream without finishing the
		// chunked body, producing a read error on the client side.
		hijacker, ok := w.(http.Hijacker)
		if !ok {
			t.Error("response writer does not support hijacking")
			return
		}
		conn, _, err := hijacker.Hijack()
		if err != nil {
			t.Errorf("hijack failed: %v", err)
			return
		}
		conn.Close()
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	content, err := client.ChatStreamAccumulate(context.Background(), []ChatMessage{NewUserMessage("Hi")}, nil)
	if err == nil {
		t.Fatal("ChatStreamAccumulate() error = nil, want stream error")
	}

	var streamErr *StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("error = %T (%v), want *StreamError", err, err)
	}
	if streamErr.Partial != "partial text" {
		t.Errorf("StreamError.Partial = %q, want %q", streamErr.Partial, "partial text")
	}
	if content != "partial text" {
		t.Errorf("returned content = %q, want partial text preserved", content)
	}
}

func TestStreamAccumulator(t *testing.T) {
	acc := NewStreamAccumulator()
	cb := acc.Callback()

	feed := func(data string) {
		var chunk StreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			t.Fatalf("bad test chunk: %v", err)
		}
		cb(chunk)
	}

	feed(`{"model":"gpt-4","choices":[{"delta":{"content":"Hello"},"finish_reason":""}]}`)
	feed(`{"model":"gpt-4","choices":[{"delta":{"content":" world"},"finish_reason":""}]}`)
	feed(`{"model":"gpt-4","choices":[{"delta":{},"finish_reason":"stop"}]}`)

	if got := acc.Content(); got != "Hello world" {
		t.Errorf("Content() = %q, want %q", got, "Hello world")
	}
	if !acc.IsDone() {
		t.Error("IsDone() = false after finish chunk, want true")
	}
	if acc.FinishReason() != "stop" {
		t.Errorf("FinishReason() = %q, want %q", acc.FinishReason(), "stop")
	}

	stats := acc.Stats()
	if stats.ChunkCount != 3 {
		t.Errorf("Stats().ChunkCount = %d, want 3", stats.ChunkCount)
	}
	if stats.Model != "gpt-4" {
		t.Errorf("Stats().Model = %q, want gpt-4", stats.Model)
	}
	if stats.TimeToFirstToken <= 0 {
		t.Errorf("Stats().TimeToFirstToken = %v, want > 0", stats.TimeToFirstToken)
	}
}

func TestStreamStats_Format(t *testing.T) {
	tests := []struct {
		name  string
		stats StreamStats
		want  string
	}{
		{
			name:  "seconds",
			stats: StreamStats{TokenCount: 100, TotalTime: 2 * time.Second},
			want:  "2.0s | 100 tokens | 50.0 tok/s",
		},
		{
			name:  "sub-second",
			stats: StreamStats{TokenCount: 10, TotalTime: 500 * time.Millisecond},
			want:  "500ms | 10 tokens | 20.0 tok/s",
		},
		{
			name:  "zero duration",
			stats: StreamStats{TokenCount: 5},
			want:  "5 tokens",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.stats.Format(); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStreamChunk_Getters(t *testing.T) {
	var empty StreamChunk
	if empty.GetContent() != "" {
		t.Errorf("empty GetContent() = %q, want empty", empty.GetContent())
	}
	if empty.IsDone() {
		t.Error("empty IsDone() = true, want false")
	}
	if empty.GetFinishReason() != "" {
		t.Errorf("empty GetFinishReason() = %q, want empty", empty.GetFinishReason())
	}
}
