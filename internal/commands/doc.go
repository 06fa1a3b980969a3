// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the command table for the chat loop.
//
// Every line of user input is classified by Dispatch into exactly one
// Kind: a built-in command, a blank line, or a prompt for the completion
// API. Matching is case-sensitive and exact against a fixed table, and an
// unrecognized slash line is treated as a prompt rather than an error.
//
// # Key Types
//
//   - Registry: the fixed table of built-in commands
//   - Kind: closed set of dispatch tags the chat loop switches over
//   - Input: one classified line (kind, matched command, arguments)
//
// # Built-in Commands
//
//   - /help: view available commands
//   - /exit: exit the program (aliases /quit, bare exit and quit)
//   - /log: view the current conversation log
//   - /save: save the conversation log to a text file
//   - /export: export the conversation log as txt, jsonl, md, or json
//   - /clear: clear all the conversation log
//   - /forget: cancel the previous message
//   - /context: show the current chat context
//
// # Usage
//
// Classify a line and switch on the result:
//
//	registry := commands.NewRegistry()
//	in := registry.Dispatch(line)
//	switch in.Kind {
//	case commands.KindPrompt:
//	    // send in.Raw to the completion API
//	case commands.KindSave:
//	    // write the transcript; in.Args may name the path
//	}
//
// Tab completion for a line editor:
//
//	matches := registry.Complete("/e")
//	// Returns ["/exit", "/export"]
package commands
