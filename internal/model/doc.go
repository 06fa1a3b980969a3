// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for the conversation log.
//
// This package defines the core domain types used throughout the application
// for representing the chat session: the ordered conversation log, its
// messages, and per-reply generation statistics.
//
// # Key Types
//
//   - Conversation: ordered log of messages with pinned system context
//   - Message: single turn with role, content, and timestamp
//   - Role: message role enumeration (system, user, assistant)
//   - Statistics: timing and token counts for one generation
//
// # Usage
//
// Create a log and record an exchange:
//
//	conv := model.NewConversation()
//	conv.AddUserMessage("Hello!")
//	conv.AddAssistantMessage("Hi, how can I help?")
//
// Serialize for display or save:
//
//	text := conv.ToText()
package model
