// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/amachino/command-ai/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports a conversation as a single JSON document with
// session metadata. JSONL is line-oriented for appending and scanning;
// the JSON form carries the whole session as one value for tools that
// want structured input.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// jsonDocument is the exported document layout.
type jsonDocument struct {
	SessionID  string          `json:"session_id,omitempty"`
	Model      string          `json:"model,omitempty"`
	ExportedAt string          `json:"exported_at"`
	Messages   []model.Message `json:"messages"`
}

// Export converts a conversation to an indented JSON document, system
// message first.
func (e *JSONExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}

	doc := jsonDocument{
		SessionID:  e.options.SessionID,
		Model:      e.options.Model,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Messages:   conv.Render(),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal conversation: %w", err)
	}
	return append(data, '\n'), nil
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
