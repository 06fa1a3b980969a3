// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat REPL for the ai CLI.
//
// USABILITY: Line editing, persistent history, and slash-command tab
// completion via liner.
// RELIABILITY: API failures are reported and the loop continues; only
// /exit, Ctrl+C at the prompt, or Ctrl+D end the session.

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/peterh/liner"

	"github.com/amachino/command-ai/internal/commands"
	"github.com/amachino/command-ai/internal/config"
	"github.com/amachino/command-ai/internal/export"
	"github.com/amachino/command-ai/internal/model"
	"github.com/amachino/command-ai/internal/openai"
	"github.com/amachino/command-ai/internal/util"
)

// ============================================================================
// Line Editor
// ============================================================================

// ChatCLI wraps liner with persistent history and slash-command
// completion.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a line editor with history loaded from the config
// directory. Ctrl+C at the prompt aborts input instead of killing the
// process, so the loop can print its exit summary.
func NewChatCLI(registry *commands.Registry) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) []string {
		return registry.Complete(prefix)
	})

	historyFile, err := config.HistoryPath()
	if err != nil {
		historyFile = filepath.Join(os.TempDir(), "ai_history")
	}

	cli := &ChatCLI{line: line, historyFile: historyFile}
	cli.loadHistory()
	return cli
}

func (c *ChatCLI) loadHistory() {
	f, err := os.Open(c.historyFile)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = c.line.ReadHistory(f)
}

// SaveHistory persists the input history.
// SECURITY: History may contain sensitive prompts; written 0600.
func (c *ChatCLI) SaveHistory() error {
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = c.line.WriteHistory(f)
	return err
}

// ReadInput reads one line, recording non-blank input in history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	_ = c.SaveHistory()
	_ = c.line.Close()
}

// ============================================================================
// Chat Session
// ============================================================================

// ChatSession holds the state for one interactive conversation.
type ChatSession struct {
	Conv     *model.Conversation
	Client   *openai.Client
	Config   *config.Config
	Registry *commands.Registry

	// Stream selects live token output; when false, replies arrive
	// complete and are rendered as markdown on a TTY.
	Stream bool

	SessionID string
	StartTime time.Time

	// Counters for the exit summary
	Queries     int
	TotalTokens int

	Input *ChatCLI

	// CancelFunc aborts the in-flight completion, if any.
	CancelFunc context.CancelFunc
}

// NewChatSession builds a session from the resolved configuration.
//
// The context file seeds the conversation's system message. A missing
// file means the conversation starts empty; a file that exists but
// cannot be read is a startup error.
func NewChatSession(cfg *config.Config, args Args) (*ChatSession, error) {
	client := openai.NewClient(cfg.API.Key).
		WithModel(cfg.Chat.Model).
		WithMaxTokens(cfg.Chat.MaxTokens).
		WithTemperature(cfg.Chat.Temperature)
	if cfg.API.BaseURL != "" {
		client = client.WithBaseURL(cfg.API.BaseURL)
	}

	ctxPath := args.ContextPath
	if ctxPath == "" {
		p, err := config.ContextPath()
		if err != nil {
			return nil, err
		}
		ctxPath = p
	}
	systemPrompt, err := config.LoadContext(ctxPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load context file: %w", err)
	}

	conv := model.NewConversation()
	if systemPrompt != "" {
		conv.SetSystem(systemPrompt)
	}

	registry := commands.NewRegistry()

	return &ChatSession{
		Conv:      conv,
		Client:    client,
		Config:    cfg,
		Registry:  registry,
		Stream:    cfg.Chat.Stream,
		SessionID: uuid.NewString(),
		StartTime: time.Now(),
		Input:     NewChatCLI(registry),
	}, nil
}

// ============================================================================
// Chat Loop
// ============================================================================

// RunChat starts the interactive loop and blocks until the user exits.
func RunChat(cfg *config.Config, args Args) error {
	if !cfg.HasAPIKey() {
		return fmt.Errorf("%w: set OPENAI_API_KEY or add it to a .env file", openai.ErrNotConfigured)
	}
	// USABILITY: Warn early on a malformed key; the API is the real
	// authority, and compatible gateways may use other key formats.
	if cfg.API.BaseURL == "" && !openai.ValidateAPIKey(cfg.API.Key) {
		fmt.Fprintf(os.Stderr, "%s\n", warnStyle.Render("Warning: OPENAI_API_KEY does not look like an OpenAI secret key."))
	}

	session, err := NewChatSession(cfg, args)
	if err != nil {
		return err
	}
	defer session.Input.Close()

	// Skip the banner when input is piped; only the replies matter then.
	if IsTTY() {
		session.printBanner()
	}

	// Ctrl+C during a reply cancels the request and returns to the
	// prompt; Ctrl+C at the prompt surfaces as ErrPromptAborted from
	// liner and ends the session.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			if cancel := session.CancelFunc; cancel != nil {
				cancel()
			}
		}
	}()

	for {
		input, err := session.Input.ReadInput(promptStyle.Render(">>> "))
		if err != nil {
			// Ctrl+C at the prompt or Ctrl+D (EOF)
			fmt.Println()
			session.printExitSummary()
			return nil
		}

		in := session.Registry.Dispatch(input)
		if in.Kind == commands.KindExit {
			session.printExitSummary()
			return nil
		}
		session.handleInput(in)
	}
}

// handleInput executes one classified input line. Errors are reported
// here and never propagate; the loop always returns to the prompt.
func (s *ChatSession) handleInput(in commands.Input) {
	switch in.Kind {
	case commands.KindEmpty:
		// Blank line, nothing to do.

	case commands.KindHelp:
		s.printHelp()

	case commands.KindLog:
		s.printLog()

	case commands.KindSave:
		if err := s.saveTranscript(in.Args); err != nil {
			DisplayError(err)
		}

	case commands.KindExport:
		if err := s.exportTranscript(in.Args); err != nil {
			DisplayError(err)
		}

	case commands.KindClear:
		s.Conv.Clear()
		fmt.Printf("\n%s\n\n", commandStyle.Render("cleared"))

	case commands.KindForget:
		s.forget()

	case commands.KindContext:
		s.printContext()

	case commands.KindPrompt:
		if err := s.processPrompt(in.Raw); err != nil {
			DisplayError(err)
		}
	}
}

// ============================================================================
// Prompt Processing
// ============================================================================

// processPrompt sends the conversation to the completion API and appends
// the reply.
//
// The user message is appended before the call and stays in the log even
// when the call fails, so a retry or a /forget is always possible. Only
// a successful completion appends an assistant message.
func (s *ChatSession) processPrompt(prompt string) error {
	s.Conv.AddUserMessage(prompt)

	ctx, cancel := context.WithCancel(context.Background())
	s.CancelFunc = cancel
	defer func() {
		s.CancelFunc = nil
		cancel()
	}()

	fmt.Println()

	var reply, statsLine string
	var err error
	if s.Stream {
		reply, statsLine, err = s.streamReply(ctx)
	} else {
		reply, statsLine, err = s.batchReply(ctx)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Printf("\n%s\n\n", warnStyle.Render("cancelled"))
			return nil
		}
		return err
	}

	s.Conv.AddAssistantMessage(strings.TrimSpace(reply))
	s.Queries++

	fmt.Printf("\n%s\n\n", statsStyle.Render(statsLine))
	return nil
}

// streamReply streams the completion to stdout as chunks arrive and
// returns the accumulated text plus a stats line. A mid-stream failure
// surfaces as a *openai.StreamError naming how much output was lost.
func (s *ChatSession) streamReply(ctx context.Context) (string, string, error) {
	acc := openai.NewStreamAccumulator()
	started := false

	reply, err := s.Client.ChatStreamAccumulate(ctx, s.Conv.ToChatMessages(), func(chunk openai.StreamChunk) {
		acc.Add(chunk)

		content := chunk.GetContent()
		if content == "" {
			return
		}
		// Models sometimes open with whitespace-only padding chunks;
		// hold output until the first real text arrives.
		if !started && strings.TrimSpace(content) == "" {
			return
		}
		started = true
		fmt.Print(content)
	})
	if err != nil {
		return "", "", err
	}

	stats := acc.Stats()
	s.TotalTokens += stats.TokenCount
	return reply, stats.Format(), nil
}

// batchReply waits for the complete response, then renders it.
func (s *ChatSession) batchReply(ctx context.Context) (string, string, error) {
	stats := model.NewStatistics()

	resp, err := s.Client.Chat(ctx, s.Conv.ToChatMessages())
	if err != nil {
		return "", "", err
	}
	stats.RecordFirstToken()
	stats.Finalize(resp.Usage.CompletionTokens)

	reply := resp.GetContent()
	displayReply(strings.TrimSpace(reply))

	s.TotalTokens += resp.Usage.TotalTokens
	return reply, stats.Format(), nil
}

// ============================================================================
// Command Handlers
// ============================================================================

// printLog shows the conversation transcript, the pinned system context
// first when one is loaded.
func (s *ChatSession) printLog() {
	text := s.Conv.ToText()
	if strings.TrimSpace(text) == "" {
		fmt.Printf("\n%s\n\n", infoStyle.Render("empty"))
		return
	}
	fmt.Printf("\n%s\n\n", transcriptStyle.Render(strings.TrimRight(text, "\n")))
}

// saveTranscript writes the conversation as plain text. With no argument
// the file lands in the log directory under a timestamped name.
func (s *ChatSession) saveTranscript(args []string) error {
	opts := s.exportOptions()
	exporter := export.NewTextExporter(opts)

	var path string
	if len(args) > 0 {
		path = args[0]
		if err := export.ExportToPath(s.Conv, exporter, path); err != nil {
			return err
		}
	} else {
		p, err := export.ExportToFile(s.Conv, exporter, opts)
		if err != nil {
			return err
		}
		path = p
	}

	fmt.Printf("\nsaved: %s\n\n", commandStyle.Render(path))
	return nil
}

// exportTranscript writes the conversation in the requested format.
// Defaults to JSONL, which round-trips cleanly into other tools.
func (s *ChatSession) exportTranscript(args []string) error {
	format := "jsonl"
	if len(args) > 0 {
		format = args[0]
	}

	opts := s.exportOptions()
	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		return err
	}

	path, err := export.ExportToFile(s.Conv, exporter, opts)
	if err != nil {
		return err
	}

	fmt.Printf("\nsaved: %s\n\n", commandStyle.Render(path))
	return nil
}

// exportOptions builds export options carrying this session's metadata.
func (s *ChatSession) exportOptions() *export.Options {
	opts := export.DefaultOptions()
	if dir, err := config.LogDir(); err == nil {
		opts.OutputDir = dir
	}
	opts.SessionID = s.SessionID
	opts.Model = s.Client.Model()
	return opts
}

// forget removes the most recent message and echoes the one now last,
// so the user sees where the conversation stands. Removing from an
// empty log is reported, not fatal.
func (s *ChatSession) forget() {
	if _, err := s.Conv.RemoveLast(); err != nil {
		fmt.Printf("\n%s\n\n", infoStyle.Render("nothing to forget"))
		return
	}
	if last := s.Conv.LastMessage(); last != nil {
		fmt.Printf("\n%s\n\n", last.Content)
	}
}

// printContext shows the pinned system message, if any.
func (s *ChatSession) printContext() {
	if !s.Conv.HasSystem() {
		fmt.Printf("\n%s\n\n", infoStyle.Render("no context loaded"))
		return
	}
	fmt.Printf("\n%s\n\n", s.Conv.System())
}

// printHelp lists the built-in commands in registration order.
func (s *ChatSession) printHelp() {
	fmt.Println()
	for _, cmd := range s.Registry.All() {
		token := cmd.Name
		if cmd.Usage != "" {
			token = cmd.Usage
		}
		for _, alias := range cmd.Aliases {
			if strings.HasPrefix(alias, "/") {
				token += ", " + alias
			}
		}
		fmt.Printf("%s - %s\n",
			commandStyle.Render(fmt.Sprintf("%-22s", token)),
			cmd.Description)
	}
	fmt.Println()
}

// ============================================================================
// Banner and Exit Summary
// ============================================================================

// printBanner shows the session parameters and the help hint.
func (s *ChatSession) printBanner() {
	fmt.Println()
	fmt.Printf("%s %s\n", infoStyle.Render("Model:"), commandStyle.Render(s.Client.Model()))
	if s.Conv.HasSystem() {
		fmt.Printf("%s %s\n", infoStyle.Render("Context:"), commandStyle.Render("loaded"))
	}
	if !s.Stream {
		fmt.Printf("%s %s\n", infoStyle.Render("Streaming:"), warnStyle.Render("off"))
	}
	fmt.Println()
	fmt.Println(infoStyle.Render(`Type "/help" to see available commands.`))
	fmt.Println()
}

// printExitSummary prints session statistics and says goodbye.
// The statistics block only appears when at least one query completed.
func (s *ChatSession) printExitSummary() {
	if s.Queries > 0 {
		width := GetTerminalWidth()
		elapsed := time.Since(s.StartTime).Round(time.Second)

		fmt.Println()
		fmt.Println(summaryHeaderStyle.Render("Session Summary"))
		fmt.Printf("  %s %s\n", infoStyle.Render("Session:"),
			util.TruncateWidth(s.SessionID, width-12))
		fmt.Printf("  %s %d\n", infoStyle.Render("Queries:"), s.Queries)
		fmt.Printf("  %s %s\n", infoStyle.Render("Tokens:"), formatNumber(s.TotalTokens))
		fmt.Printf("  %s %s\n", infoStyle.Render("Duration:"), elapsed)
	}
	fmt.Printf("\n%s\n\n", welcomeStyle.Render("Goodbye!"))
}

// formatNumber renders n with thousands separators, e.g. 12345 becomes
// "12,345".
func formatNumber(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
