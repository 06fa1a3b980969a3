// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export provides conversation export functionality for ai.
//
// Four formats are supported:
//
//   - Plain text (.txt): role-prefixed lines, the /save format, with a
//     parser that inverts it for round-tripping
//   - JSONL (.jsonl): one {"role","content"} object per line, system first
//   - Markdown (.md): document with session metadata and per-message headings
//   - JSON (.json): one document with session metadata and the message list
//
// # Key Types
//
//   - Exporter: common interface over all formats
//   - Options: output directory and metadata settings
//
// # Usage
//
// Export a conversation to a timestamped file:
//
//	exporter, err := export.ForFormat("md", opts)
//	if err != nil {
//	    return err
//	}
//	path, err := export.ExportToFile(conv, exporter, opts)
//
// Writes go through an atomic temp-file rename so an interrupted export
// never leaves a truncated transcript.
package export
