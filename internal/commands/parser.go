// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the command table for the chat loop.
package commands

import (
	"strings"
	"unicode"
)

// =============================================================================
// DISPATCH
// =============================================================================

// Input is the classification of one line read from the terminal.
type Input struct {
	// Kind tells the loop what to do with the line.
	Kind Kind

	// Command is the matched table entry. Nil for prompts and blank lines.
	Command *Command

	// Args are the tokens after the command name. Quoted arguments keep
	// their spaces ("/save 'my notes.txt'").
	Args []string

	// Raw is the trimmed line as typed. For KindPrompt this is the text
	// sent to the completion API.
	Raw string
}

// Dispatch classifies a line of user input against the command table.
//
// Matching is case-sensitive: the first token of a slash line must equal a
// command name or alias exactly. A slash line whose first token is not in
// the table is a prompt, not an error, so a question that happens to start
// with "/" still reaches the API unchanged. Bare aliases ("exit", "quit")
// match only when they are the entire line, so sentences containing those
// words read as prompts.
func (r *Registry) Dispatch(line string) Input {
	line = strings.TrimSpace(line)
	if line == "" {
		return Input{Kind: KindEmpty}
	}

	if !strings.HasPrefix(line, "/") {
		if cmd, ok := r.bare[line]; ok {
			return Input{Kind: cmd.Kind, Command: cmd, Raw: line}
		}
		return Input{Kind: KindPrompt, Raw: line}
	}

	tokens := splitArgs(line)
	if len(tokens) == 0 {
		return Input{Kind: KindPrompt, Raw: line}
	}
	cmd, ok := r.slash[tokens[0]]
	if !ok {
		return Input{Kind: KindPrompt, Raw: line}
	}
	return Input{Kind: cmd.Kind, Command: cmd, Args: tokens[1:], Raw: line}
}

// =============================================================================
// ARGUMENT SPLITTING
// =============================================================================

// splitArgs splits a command line into whitespace-separated tokens.
// Single and double quotes group spaces into one token, and a backslash
// inside quotes escapes the quote characters themselves.
func splitArgs(line string) []string {
	var tokens []string
	var current strings.Builder
	var quote rune // active quote character, 0 outside quotes

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case quote == 0 && (ch == '\'' || ch == '"'):
			quote = ch

		case quote != 0 && ch == quote:
			quote = 0

		case quote != 0 && ch == '\\' && i+1 < len(runes):
			next := runes[i+1]
			if next == '\'' || next == '"' || next == '\\' {
				current.WriteRune(next)
				i++
			} else {
				current.WriteRune(ch)
			}

		case quote == 0 && unicode.IsSpace(ch):
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}

		default:
			current.WriteRune(ch)
		}
	}

	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}
