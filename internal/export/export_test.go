// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amachino/command-ai/internal/model"
)

// sampleConversation builds a conversation with a system prompt and one
// exchange.
func sampleConversation() *model.Conversation {
	conv := model.NewConversationWithSystem("be brief")
	conv.AddUserMessage("Hi")
	conv.AddAssistantMessage("Hello!")
	return conv
}

func TestTextExporter_Format(t *testing.T) {
	exporter := NewTextExporter(nil)
	out, err := exporter.Export(sampleConversation())
	require.NoError(t, err)

	want := "system: be brief\nuser: Hi\nassistant: Hello!\n"
	require.Equal(t, want, string(out))
}

func TestTextExporter_NilConversation(t *testing.T) {
	exporter := NewTextExporter(nil)
	_, err := exporter.Export(nil)
	require.Error(t, err)
}

func TestParseText_RoundTrip(t *testing.T) {
	conv := model.NewConversationWithSystem("Current time: Sun, Aug 23 2026 02:05 PM UTC\n\nYou are a pirate.")
	conv.AddUserMessage("Tell me a joke")
	conv.AddAssistantMessage("Why did the ship sink?\n\nToo many hands on deck!")
	conv.AddUserMessage("Another")

	exporter := NewTextExporter(nil)
	out, err := exporter.Export(conv)
	require.NoError(t, err)

	parsed, err := ParseText(out)
	require.NoError(t, err)

	require.Equal(t, conv.System(), parsed.System(), "system prompt should round-trip")
	require.Equal(t, conv.Len(), parsed.Len(), "message count should round-trip")
	for i := range conv.Messages {
		require.Equal(t, conv.Messages[i].Role, parsed.Messages[i].Role, "role %d", i)
		require.Equal(t, conv.Messages[i].Content, parsed.Messages[i].Content, "content %d", i)
	}
}

func TestParseText_Empty(t *testing.T) {
	parsed, err := ParseText(nil)
	require.NoError(t, err)
	require.True(t, parsed.IsEmpty())
	require.False(t, parsed.HasSystem())
}

func TestParseText_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no role prefix on first line", "hello there\n"},
		{"system after user", "user: Hi\nsystem: be brief\n"},
		{"duplicate system", "system: one\nsystem: two\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseText([]byte(tt.input))
			require.Error(t, err)
		})
	}
}

func TestParseText_ContinuationLines(t *testing.T) {
	input := "user: first line\nsecond line\n\nfourth line\nassistant: reply\n"
	parsed, err := ParseText([]byte(input))
	require.NoError(t, err)

	require.Equal(t, 2, parsed.Len())
	require.Equal(t, "first line\nsecond line\n\nfourth line", parsed.Messages[0].Content)
	require.Equal(t, "reply", parsed.Messages[1].Content)
}

func TestJSONLExporter(t *testing.T) {
	exporter := NewJSONLExporter(nil)
	out, err := exporter.Export(sampleConversation())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(out), "\n"), "\n")
	require.Len(t, lines, 3)

	var first jsonlMessage
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.Equal(t, "system", first.Role)
	require.Equal(t, "be brief", first.Content)

	var second jsonlMessage
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	require.Equal(t, "user", second.Role)
	require.Equal(t, "Hi", second.Content)
}

func TestJSONExporter(t *testing.T) {
	opts := DefaultOptions()
	opts.SessionID = "sess-1234"
	opts.Model = "gpt-4"

	exporter := NewJSONExporter(opts)
	out, err := exporter.Export(sampleConversation())
	require.NoError(t, err)

	var doc struct {
		SessionID  string `json:"session_id"`
		Model      string `json:"model"`
		ExportedAt string `json:"exported_at"`
		Messages   []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))

	require.Equal(t, "sess-1234", doc.SessionID)
	require.Equal(t, "gpt-4", doc.Model)
	require.NotEmpty(t, doc.ExportedAt)

	require.Len(t, doc.Messages, 3)
	require.Equal(t, "system", doc.Messages[0].Role)
	require.Equal(t, "be brief", doc.Messages[0].Content)
	require.Equal(t, "assistant", doc.Messages[2].Role)
}

// The system line is always present so every transcript has the same shape.
func TestJSONLExporter_EmptySystem(t *testing.T) {
	conv := model.NewConversation()
	conv.AddUserMessage("Hi")

	exporter := NewJSONLExporter(nil)
	out, err := exporter.Export(conv)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(out), "\n"), "\n")
	require.Len(t, lines, 2)
	require.JSONEq(t, `{"role":"system","content":""}`, lines[0])
}

func TestJSONLExporter_NoEscaping(t *testing.T) {
	conv := model.NewConversation()
	conv.AddUserMessage("日本語 & <tags> stay readable")

	exporter := NewJSONLExporter(nil)
	out, err := exporter.Export(conv)
	require.NoError(t, err)

	require.Contains(t, string(out), "日本語 & <tags> stay readable")
	require.NotContains(t, string(out), `<`)
}

func TestMarkdownExporter(t *testing.T) {
	opts := DefaultOptions()
	opts.SessionID = "0194f9a2-5cc2-7a9b-b2dd-36a9e2f5c1b7"
	opts.Model = "gpt-4"

	exporter := NewMarkdownExporter(opts)
	out, err := exporter.Export(sampleConversation())
	require.NoError(t, err)

	md := string(out)
	require.Contains(t, md, "title: Hi")
	require.Contains(t, md, "session: 0194f9a2-5cc2-7a9b-b2dd-36a9e2f5c1b7")
	require.Contains(t, md, "model: gpt-4")
	require.Contains(t, md, "# Hi")
	require.Contains(t, md, "### [System]")
	require.Contains(t, md, "### [You]")
	require.Contains(t, md, "### [Assistant]")
	require.Contains(t, md, "Hello!")
	require.Contains(t, md, "generator: ai")
}

func TestMarkdownExporter_TitleFromFirstUserLine(t *testing.T) {
	conv := model.NewConversation()
	conv.AddUserMessage("Explain SSE\nwith examples please")

	exporter := NewMarkdownExporter(nil)
	out, err := exporter.Export(conv)
	require.NoError(t, err)

	require.Contains(t, string(out), "# Explain SSE\n")
}

func TestMarkdownExporter_EmptyConversation(t *testing.T) {
	exporter := NewMarkdownExporter(nil)
	_, err := exporter.Export(model.NewConversation())
	require.Error(t, err)
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		wantExt string
		wantErr bool
	}{
		{"txt", "txt", ".txt", false},
		{"text alias", "text", ".txt", false},
		{"jsonl", "jsonl", ".jsonl", false},
		{"md", "md", ".md", false},
		{"markdown alias", "markdown", ".md", false},
		{"json", "json", ".json", false},
		{"case insensitive", "MD", ".md", false},
		{"unknown", "pdf", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter, err := ForFormat(tt.format, nil)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantExt, exporter.FileExtension())
		})
	}
}

func TestExportToFile(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.OutputDir = dir

	path, err := ExportToFile(sampleConversation(), NewTextExporter(opts), opts)
	require.NoError(t, err)

	require.Equal(t, dir, filepath.Dir(path))
	require.True(t, strings.HasSuffix(path, ".txt"), "path %q should end in .txt", path)

	name := strings.TrimSuffix(filepath.Base(path), ".txt")
	require.Len(t, name, 14, "filename %q should be a YYYYMMDDHHMMSS timestamp", name)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "system: be brief\nuser: Hi\nassistant: Hello!\n", string(content))
}

func TestExportToPath_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	require.NoError(t, os.WriteFile(path, []byte("old contents"), 0644))

	require.NoError(t, ExportToPath(sampleConversation(), NewTextExporter(nil), path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(content), "old contents")
	require.Contains(t, string(content), "assistant: Hello!")
}

func TestExportToPath_UnwritableDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not enforced on Windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("running as root, permissions not enforced")
	}

	dir := filepath.Join(t.TempDir(), "readonly")
	require.NoError(t, os.MkdirAll(dir, 0555))

	err := ExportToPath(sampleConversation(), NewTextExporter(nil), filepath.Join(dir, "log.txt"))
	require.Error(t, err)
}
