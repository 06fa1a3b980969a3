// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Centralized lipgloss styles for the ai CLI.
//
// USABILITY: One style table for every printer in this package, so the
// prompt, notices, and errors stay visually consistent.
//
// Color handling:
// - Colors are automatically disabled for non-TTY output (piped, redirected)
// - Respects NO_COLOR environment variable (https://no-color.org/)
// - Supports FORCE_COLOR environment variable to override detection

package cli

import "github.com/charmbracelet/lipgloss"

func init() {
	// Resolve the color profile before any style renders, so NO_COLOR
	// and piped output degrade to plain text.
	lipgloss.SetColorProfile(GetColorProfile())
}

var (
	// promptStyle colors the ">>> " input prompt.
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")). // Blue
			Bold(true)

	// welcomeStyle is used for the banner and the goodbye line.
	welcomeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")). // Purple
			Bold(true)

	// infoStyle is for secondary notices such as "empty".
	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")) // Gray

	// commandStyle highlights command names and file paths.
	commandStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")) // Green

	// warnStyle is for non-fatal conditions such as a cancelled reply.
	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // Amber

	// errorStyle prefixes recovered errors.
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true)

	// transcriptStyle renders the /log output.
	transcriptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")) // Bright cyan

	// statsStyle renders the per-reply timing line.
	statsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")). // Dim gray
			Italic(true)

	// summaryHeaderStyle titles the exit summary block.
	summaryHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")). // Blue
				Bold(true)
)
