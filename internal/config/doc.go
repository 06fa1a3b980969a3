// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for ai.
//
// Settings use TOML, with sensible defaults, environment variable
// overrides, and validation. The API credential is environment-only and
// never touches the config file.
//
// # Key Types
//
//   - Config: main configuration structure
//   - ChatConfig: completion parameters (model, max_tokens, temperature)
//   - APIConfig: endpoint configuration (base URL, credential)
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (OPENAI_API_KEY, OPENAI_BASE_URL, AI_MODEL)
//   - ~/.ai/config.toml
//   - Built-in defaults
//
// Command-line flags are applied on top by the CLI layer.
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    // fatal startup error
//	}
//
// Access settings:
//
//	model := cfg.Chat.Model
//	temperature := cfg.Chat.Temperature
//
// The chat context file (~/.ai/context.txt) is loaded separately with
// LoadContext and becomes the conversation's system prompt.
package config
