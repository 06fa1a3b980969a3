// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the command table for the chat loop.
package commands

import (
	"sort"
	"strings"
)

// =============================================================================
// COMMAND KINDS
// =============================================================================

// Kind identifies what a line of user input asks the chat loop to do.
//
// Dispatch classifies every line into exactly one Kind, so the loop can
// switch over a closed set instead of comparing strings at the call site.
type Kind int

const (
	// KindPrompt is any line that is not a recognized command. It is sent
	// to the completion API as a user message.
	KindPrompt Kind = iota

	// KindEmpty is a blank line. The loop ignores it.
	KindEmpty

	KindHelp    // print the command table
	KindExit    // leave the program
	KindLog     // print the conversation so far
	KindSave    // write the transcript to a text file
	KindExport  // write the transcript in a chosen format
	KindClear   // drop all messages except the system context
	KindForget  // remove the most recent message
	KindContext // show the pinned system context
)

// String returns a short name for the kind, used in tests and diagnostics.
func (k Kind) String() string {
	switch k {
	case KindPrompt:
		return "prompt"
	case KindEmpty:
		return "empty"
	case KindHelp:
		return "help"
	case KindExit:
		return "exit"
	case KindLog:
		return "log"
	case KindSave:
		return "save"
	case KindExport:
		return "export"
	case KindClear:
		return "clear"
	case KindForget:
		return "forget"
	case KindContext:
		return "context"
	default:
		return "unknown"
	}
}

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Command describes one entry in the fixed command table.
type Command struct {
	// Kind is the dispatch tag the chat loop switches on.
	Kind Kind

	// Name is the primary command token (e.g., "/help").
	Name string

	// Aliases are alternative tokens. Tokens without a leading slash
	// match only when they are the entire line (e.g., bare "exit").
	Aliases []string

	// Description is shown by /help.
	Description string

	// Usage shows argument syntax for commands that take arguments.
	Usage string
}

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds the fixed command table.
//
// Matching is case-sensitive and exact: "/Help" is not a command. An
// unrecognized slash line is treated as a prompt, never as an error.
type Registry struct {
	ordered []*Command
	slash   map[string]*Command
	bare    map[string]*Command
}

// NewRegistry creates a registry populated with the built-in commands.
func NewRegistry() *Registry {
	r := &Registry{
		slash: make(map[string]*Command),
		bare:  make(map[string]*Command),
	}
	r.registerBuiltins()
	return r
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd *Command) {
	r.ordered = append(r.ordered, cmd)
	r.slash[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		if strings.HasPrefix(alias, "/") {
			r.slash[alias] = cmd
		} else {
			r.bare[alias] = cmd
		}
	}
}

// Get retrieves a command by its slash token (name or slash alias).
// Returns nil when the token is not in the table.
func (r *Registry) Get(token string) *Command {
	return r.slash[token]
}

// All returns the commands in registration order, for help display.
func (r *Registry) All() []*Command {
	cmds := make([]*Command, len(r.ordered))
	copy(cmds, r.ordered)
	return cmds
}

// Complete returns the slash tokens starting with the given prefix,
// sorted, for line-editor tab completion. A bare "/" matches every
// command token.
func (r *Registry) Complete(prefix string) []string {
	if !strings.HasPrefix(prefix, "/") {
		return nil
	}
	var matches []string
	for token := range r.slash {
		if strings.HasPrefix(token, prefix) {
			matches = append(matches, token)
		}
	}
	sort.Strings(matches)
	return matches
}

// =============================================================================
// BUILT-IN COMMANDS
// =============================================================================

func (r *Registry) registerBuiltins() {
	r.Register(&Command{
		Kind:        KindHelp,
		Name:        "/help",
		Description: "view available commands",
	})

	r.Register(&Command{
		Kind:        KindExit,
		Name:        "/exit",
		Aliases:     []string{"/quit", "exit", "quit"},
		Description: "exit the program",
	})

	r.Register(&Command{
		Kind:        KindLog,
		Name:        "/log",
		Description: "view the current conversation log",
	})

	r.Register(&Command{
		Kind:        KindSave,
		Name:        "/save",
		Usage:       "/save [path]",
		Description: "save the conversation log to a file",
	})

	r.Register(&Command{
		Kind:        KindExport,
		Name:        "/export",
		Usage:       "/export [format]",
		Description: "export the conversation log (txt, jsonl, md, json)",
	})

	r.Register(&Command{
		Kind:        KindClear,
		Name:        "/clear",
		Description: "clear all the conversation log",
	})

	r.Register(&Command{
		Kind:        KindForget,
		Name:        "/forget",
		Description: "cancel the previous message",
	})

	r.Register(&Command{
		Kind:        KindContext,
		Name:        "/context",
		Description: "show the current chat context",
	})
}
