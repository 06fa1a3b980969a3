// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Flag parsing and entry point for the ai CLI.
//
// CLI: Flags mirror the completion parameters so one-off overrides never
// require editing the config file.
package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/amachino/command-ai/internal/config"
)

// Version information (set at build time via -ldflags)
var (
	Version   = "0.4.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const usageText = `ai %s - chat with an OpenAI model from your terminal

USAGE:
    ai [flags]

FLAGS:
    -m, --model <name>        Completion model (default "gpt-4")
    -M, --max_tokens <n>      Response length cap in tokens (default 1000)
    -t, --temperature <f>     Sampling temperature, 0.0 to 2.0 (default 1.0)
        --context <path>      Context file (default ~/.ai/context.txt)
        --config <path>       Config file (default ~/.ai/config.toml)
        --no-stream           Print replies whole instead of streaming
        --version             Show version information
    -h, --help                Show this help

ENVIRONMENT:
    OPENAI_API_KEY     API credential (required; a .env file is also read)
    OPENAI_BASE_URL    Alternate API endpoint
    AI_MODEL           Model override

Once a session is running, type /help to list the chat commands.
`

// PrintUsage prints command-line help to stdout.
func PrintUsage() {
	printUsage(os.Stdout)
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("ai %s\n", Version)
	fmt.Printf("  commit: %s\n", GitCommit)
	fmt.Printf("  built:  %s\n", BuildDate)
}

// ============================================================================
// Argument Parsing
// ============================================================================

// Args holds parsed command-line arguments.
//
// The *Set booleans record whether a flag appeared at all: "-t 0" is a
// meaningful override and must not be confused with the zero value.
type Args struct {
	Model          string
	MaxTokens      int
	Temperature    float64
	ModelSet       bool
	MaxTokensSet   bool
	TemperatureSet bool

	ContextPath string
	ConfigPath  string
	NoStream    bool

	ShowVersion bool
	ShowHelp    bool
}

// ParseArgs parses command-line arguments.
// Both "--flag value" and "--flag=value" forms are accepted.
func ParseArgs(argv []string) (Args, error) {
	var args Args

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		name, inline, hasInline := splitFlag(arg)

		// value returns the flag's argument, consuming the next token
		// unless an inline "=value" was given.
		value := func() (string, error) {
			if hasInline {
				return inline, nil
			}
			i++
			if i >= len(argv) {
				return "", NewUsageError(name, "missing value")
			}
			return argv[i], nil
		}

		switch name {
		case "-m", "--model":
			v, err := value()
			if err != nil {
				return args, err
			}
			args.Model = v
			args.ModelSet = true

		case "-M", "--max_tokens":
			v, err := value()
			if err != nil {
				return args, err
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return args, NewUsageError(name, fmt.Sprintf("invalid int value %q", v))
			}
			args.MaxTokens = n
			args.MaxTokensSet = true

		case "-t", "--temperature":
			v, err := value()
			if err != nil {
				return args, err
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return args, NewUsageError(name, fmt.Sprintf("invalid float value %q", v))
			}
			args.Temperature = f
			args.TemperatureSet = true

		case "--context":
			v, err := value()
			if err != nil {
				return args, err
			}
			args.ContextPath = v

		case "--config":
			v, err := value()
			if err != nil {
				return args, err
			}
			args.ConfigPath = v

		case "--no-stream":
			args.NoStream = true

		case "--version":
			args.ShowVersion = true

		case "-h", "--help":
			args.ShowHelp = true

		default:
			if strings.HasPrefix(arg, "-") {
				return args, NewUsageError(arg, "unknown flag")
			}
			return args, NewUsageError(arg, "unexpected argument")
		}
	}

	return args, nil
}

// splitFlag splits "--flag=value" into its name and inline value.
func splitFlag(arg string) (name, value string, hasValue bool) {
	if !strings.HasPrefix(arg, "-") {
		return arg, "", false
	}
	if idx := strings.Index(arg, "="); idx >= 0 {
		return arg[:idx], arg[idx+1:], true
	}
	return arg, "", false
}

// Apply overlays explicitly-set flags onto the configuration.
// Flags are the final layer: defaults, then config file, then
// environment, then these.
func (a Args) Apply(cfg *config.Config) {
	if a.ModelSet {
		cfg.Chat.Model = a.Model
	}
	if a.MaxTokensSet {
		cfg.Chat.MaxTokens = a.MaxTokens
	}
	if a.TemperatureSet {
		cfg.Chat.Temperature = a.Temperature
	}
	if a.NoStream {
		cfg.Chat.Stream = false
	}
}

// ============================================================================
// Entry Point
// ============================================================================

// Run parses flags, loads configuration, and starts the chat loop.
// It returns the process exit code.
func Run() int {
	args, err := ParseArgs(os.Args[1:])
	if err != nil {
		DisplayError(err)
		fmt.Fprintln(os.Stderr)
		printUsage(os.Stderr)
		return GetExitCode(err)
	}

	if args.ShowHelp {
		PrintUsage()
		return ExitSuccess
	}
	if args.ShowVersion {
		PrintVersion()
		return ExitSuccess
	}

	var cfg *config.Config
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		DisplayError(err)
		return GetExitCode(err)
	}

	// Flags can introduce out-of-range values, so validate again after
	// applying them.
	args.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		DisplayError(err)
		return GetExitCode(err)
	}

	if err := RunChat(cfg, args); err != nil {
		DisplayError(err)
		return GetExitCode(err)
	}
	return ExitSuccess
}
