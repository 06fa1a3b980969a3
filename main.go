// ai - chat with an OpenAI model from your terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"os"

	"github.com/amachino/command-ai/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
