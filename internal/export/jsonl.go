// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/amachino/command-ai/internal/model"
)

// =============================================================================
// JSONL EXPORTER
// =============================================================================

// JSONLExporter exports conversations as JSON Lines: one {"role","content"}
// object per line, the system message first. The system line is written even
// when empty so every transcript has the same shape.
type JSONLExporter struct {
	// Options are accepted for consistency with other exporters; JSONL
	// always includes the complete conversation.
	options *Options
}

// NewJSONLExporter creates a new JSONL exporter.
func NewJSONLExporter(opts *Options) *JSONLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONLExporter{options: opts}
}

// jsonlMessage is the wire format of one transcript line.
type jsonlMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Export converts a conversation to JSONL.
func (e *JSONLExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// UNICODE: Keep multibyte text and HTML characters readable instead of
	// \u-escaping them.
	enc.SetEscapeHTML(false)

	if err := enc.Encode(jsonlMessage{Role: model.RoleSystem.String(), Content: conv.System()}); err != nil {
		return nil, fmt.Errorf("encode system line: %w", err)
	}
	for _, msg := range conv.Messages {
		if err := enc.Encode(jsonlMessage{Role: msg.Role.String(), Content: msg.Content}); err != nil {
			return nil, fmt.Errorf("encode message: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// FileExtension returns the file extension for JSONL.
func (e *JSONLExporter) FileExtension() string {
	return ".jsonl"
}

// MimeType returns the MIME type for JSONL.
func (e *JSONLExporter) MimeType() string {
	return "application/jsonl"
}
