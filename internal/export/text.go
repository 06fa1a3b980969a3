// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"

	"github.com/amachino/command-ai/internal/model"
)

// =============================================================================
// TEXT EXPORTER
// =============================================================================

// TextExporter exports conversations as role-prefixed plain text, one
// "role: content" record per message. This is the /save format.
type TextExporter struct {
	// Options are accepted for consistency with other exporters; plain
	// text has no metadata to include.
	options *Options
}

// NewTextExporter creates a new plain text exporter.
func NewTextExporter(opts *Options) *TextExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &TextExporter{options: opts}
}

// Export converts a conversation to role-prefixed plain text.
func (e *TextExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}
	return []byte(conv.ToText()), nil
}

// FileExtension returns the file extension for plain text.
func (e *TextExporter) FileExtension() string {
	return ".txt"
}

// MimeType returns the MIME type for plain text.
func (e *TextExporter) MimeType() string {
	return "text/plain; charset=utf-8"
}

// =============================================================================
// TEXT PARSER
// =============================================================================

// ParseText parses role-prefixed plain text back into a conversation,
// inverting Export. Lines without a role prefix continue the previous
// message's content, so multiline messages round-trip.
//
// The format is ambiguous only when message content itself contains a line
// starting with a role prefix; such a line is absorbed into the preceding
// message on parse.
func ParseText(data []byte) (*model.Conversation, error) {
	conv := model.NewConversation()

	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return conv, nil
	}

	var (
		curRole  model.Role
		curLines []string
		open     bool
	)

	flush := func() error {
		if !open {
			return nil
		}
		content := strings.Join(curLines, "\n")
		if curRole == model.RoleSystem {
			if conv.HasSystem() || !conv.IsEmpty() {
				return fmt.Errorf("system message must be unique and first")
			}
			conv.SetSystem(content)
		} else {
			conv.Append(curRole, content)
		}
		open = false
		return nil
	}

	for i, line := range strings.Split(text, "\n") {
		if role, content, ok := splitRoleLine(line); ok {
			if err := flush(); err != nil {
				return nil, err
			}
			curRole = role
			curLines = []string{content}
			open = true
			continue
		}
		if !open {
			return nil, fmt.Errorf("line %d: expected a role prefix", i+1)
		}
		curLines = append(curLines, line)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return conv, nil
}

// splitRoleLine splits a "role: content" line. Returns false when the line
// does not start a new message.
func splitRoleLine(line string) (model.Role, string, bool) {
	idx := strings.Index(line, ": ")
	if idx <= 0 {
		return "", "", false
	}
	role, ok := model.ParseRole(line[:idx])
	if !ok {
		return "", "", false
	}
	return role, line[idx+2:], true
}
