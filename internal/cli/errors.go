// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Exit codes and error classification for the ai CLI.
//
// RELIABILITY: Errors inside the chat loop are reported and recovered in
// place; the loop never exits on them. The exit codes here apply to
// startup failures only.

package cli

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/amachino/command-ai/internal/config"
	"github.com/amachino/command-ai/internal/openai"
)

// Exit codes returned to the shell.
const (
	ExitSuccess      = 0 // Completed normally
	ExitGeneralError = 1 // Unclassified failure
	ExitUsageError   = 2 // Flag syntax error (unknown flag, bad value)
	ExitConfigError  = 3 // Invalid or missing configuration
	ExitAuthError    = 4 // API key rejected
	ExitNetworkError = 5 // Endpoint unreachable
)

// UsageError reports a command-line syntax problem.
type UsageError struct {
	Flag   string // Offending flag or argument, if known
	Reason string
}

func (e *UsageError) Error() string {
	if e.Flag != "" {
		return fmt.Sprintf("%s: %s", e.Flag, e.Reason)
	}
	return e.Reason
}

// NewUsageError creates a UsageError for the given flag.
func NewUsageError(flag, reason string) *UsageError {
	return &UsageError{Flag: flag, Reason: reason}
}

// GetExitCode maps an error to its shell exit code.
//
// Classification is by error type, not message text, so wrapped errors
// from any layer classify the same way.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return ExitUsageError
	}

	// Config validation failures classify as config errors whether the
	// bad value came from the TOML file, the environment, or a flag.
	var validationErr config.ValidationError
	var validateErrs config.ValidateErrors
	if errors.As(err, &validationErr) || errors.As(err, &validateErrs) {
		return ExitConfigError
	}
	if errors.Is(err, openai.ErrNotConfigured) {
		return ExitConfigError
	}

	if errors.Is(err, openai.ErrAuthFailed) {
		return ExitAuthError
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ExitNetworkError
	}

	return ExitGeneralError
}

// DisplayError prints an error to stderr in the CLI's standard format.
func DisplayError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
}
