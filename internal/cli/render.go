// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// render.go - Markdown rendering for batched replies.
//
// USABILITY: Markdown rendering for readable replies on a TTY. Streamed
// replies print raw as chunks arrive; only complete replies go through
// the renderer.

package cli

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

// markdownRenderer is initialized once at startup. If initialization
// fails it stays nil and output falls back to plain text.
var markdownRenderer *glamour.TermRenderer

func init() {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(DefaultTerminalWidth),
	)
	if err == nil {
		markdownRenderer = renderer
	}
}

// renderMarkdown converts markdown to styled terminal output.
// Returns the content unchanged if rendering is unavailable.
func renderMarkdown(content string) string {
	if markdownRenderer == nil {
		return content
	}
	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// displayReply prints a complete reply: markdown-rendered on a TTY,
// plain text when piped.
func displayReply(content string) {
	if IsStdoutTTY() {
		fmt.Print(renderMarkdown(content))
		return
	}
	fmt.Println(content)
}
