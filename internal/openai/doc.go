// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package openai implements the chat completions client used for replies.
//
// The client speaks the OpenAI chat completions protocol, which many
// gateways implement, so a single base URL override retargets the whole
// program. Both buffered and streaming (SSE) completions are supported.
//
// # Key Types
//
//   - Client: HTTP client for the chat completions endpoint
//   - ChatMessage: chat message in API wire format
//   - ChatResponse: full response from a buffered completion
//   - StreamChunk: single delta from a streaming completion
//   - StreamAccumulator: collects chunks and timing statistics
//
// # Usage
//
// Create a client and send a conversation:
//
//	client := openai.NewClient(apiKey).WithModel("gpt-4")
//	resp, err := client.Chat(ctx, []openai.ChatMessage{
//	    openai.NewUserMessage("Hello"),
//	})
//
// # Error Handling
//
// API failures map onto sentinel errors (ErrAuthFailed, ErrRateLimited,
// ErrInvalidRequest, ...) so callers can classify them with errors.Is.
// The client never retries; the caller decides whether to resend.
//
// # Security
//
// API keys are never logged. APIKeyMasked exposes only a prefix and a
// hash fingerprint for display. All requests use TLS 1.2+.
package openai
