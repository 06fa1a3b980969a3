// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for ai.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// contextTimeFormat renders the current-time header of the chat context,
// e.g. "Sun, Aug 23 2026 02:15 PM UTC".
const contextTimeFormat = "Mon, Jan 02 2006 03:04 PM MST"

// LoadContext reads the chat context file and returns the system prompt
// for the session.
//
// A missing or empty file yields an empty prompt and no error: context is
// optional, and the conversation then starts with no system message. When
// the file has content, the prompt is prefixed with a current-time header
// so the model knows when "now" is.
func LoadContext(path string) (string, error) {
	return loadContextAt(path, time.Now())
}

func loadContextAt(path string, now time.Time) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read context file: %w", err)
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return "", nil
	}

	header := "Current time: " + now.Format(contextTimeFormat)
	return header + "\n\n" + content, nil
}
