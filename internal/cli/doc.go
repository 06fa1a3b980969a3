// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the ai command-line interface.
//
// The package owns flag parsing, configuration resolution, and the
// interactive read-eval-print loop. Each input line is classified by the
// commands package and either handled locally (/help, /log, /save,
// /export, /clear, /forget, /context) or sent to the completion API as a
// prompt.
//
// # Key Types
//
//   - Args: Parsed command-line arguments, applied over the config file
//   - ChatSession: State for one interactive conversation
//   - ChatCLI: Line editor with persistent history and tab completion
//
// # Usage
//
// The entry point parses flags, resolves configuration, and runs the
// loop until the user exits:
//
//	func main() {
//		os.Exit(cli.Run())
//	}
//
// # Exit Codes
//
//	0  completed normally
//	1  unclassified error
//	2  flag syntax error
//	3  invalid or missing configuration
//	4  authentication failure
//	5  network failure
//
// Failures inside the chat loop (a dropped connection, a rate limit, an
// unwritable save path) are printed and the loop continues; exit codes
// apply to startup failures only.
package cli
