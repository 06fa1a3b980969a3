// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for the conversation log.
package model

import (
	"errors"
	"strings"

	"github.com/amachino/command-ai/internal/openai"
)

// ErrEmptyLog is returned by RemoveLast when there is nothing to remove.
// The pinned system message does not count: a log holding only system
// context is empty for removal purposes.
var ErrEmptyLog = errors.New("conversation log is empty")

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is the ordered, in-memory log of exchanged messages.
// Insertion order is significant: it defines the turn order sent to the
// completion API.
//
// The system context is pinned in its own field rather than stored in
// Messages. Render and ToText emit it first, so the log observably has at
// most one system message, always first, and Clear/RemoveLast cannot
// disturb it.
type Conversation struct {
	// SystemPrompt is the pinned system context, loaded once at startup
	// from the context file. Empty when no context is loaded.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Messages holds the user/assistant turns in insertion order.
	Messages []*Message `json:"messages"`
}

// NewConversation creates a new, empty conversation.
func NewConversation() *Conversation {
	return &Conversation{
		Messages: make([]*Message, 0),
	}
}

// NewConversationWithSystem creates a conversation seeded with pinned
// system context.
func NewConversationWithSystem(content string) *Conversation {
	conv := NewConversation()
	conv.SystemPrompt = content
	return conv
}

// =============================================================================
// SYSTEM CONTEXT
// =============================================================================

// SetSystem pins (or replaces) the system context.
func (c *Conversation) SetSystem(content string) {
	c.SystemPrompt = content
}

// System returns the pinned system context, or "" when none is loaded.
func (c *Conversation) System() string {
	return c.SystemPrompt
}

// HasSystem returns true when system context is pinned.
func (c *Conversation) HasSystem() bool {
	return c.SystemPrompt != ""
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// Append adds a message with the given role to the end of the log.
func (c *Conversation) Append(role Role, content string) *Message {
	msg := NewMessage(role, content)
	c.Messages = append(c.Messages, msg)
	return msg
}

// AddUserMessage appends a user message.
func (c *Conversation) AddUserMessage(content string) *Message {
	return c.Append(RoleUser, content)
}

// AddAssistantMessage appends an assistant message.
func (c *Conversation) AddAssistantMessage(content string) *Message {
	return c.Append(RoleAssistant, content)
}

// RemoveLast removes and returns the most recently appended message.
// It returns ErrEmptyLog, leaving the log unchanged, when no removable
// message exists (the pinned system context is never removable).
func (c *Conversation) RemoveLast() (*Message, error) {
	if len(c.Messages) == 0 {
		return nil, ErrEmptyLog
	}
	last := c.Messages[len(c.Messages)-1]
	c.Messages = c.Messages[:len(c.Messages)-1]
	return last, nil
}

// Clear removes all messages. The pinned system context survives.
// Clear always succeeds.
func (c *Conversation) Clear() {
	c.Messages = make([]*Message, 0)
}

// LastMessage returns the most recent message, or nil when the log holds
// no user/assistant turns.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// Len returns the number of messages, excluding the pinned system context.
func (c *Conversation) Len() int {
	return len(c.Messages)
}

// IsEmpty returns true when the log holds no user/assistant turns.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// =============================================================================
// RENDERING
// =============================================================================

// Render returns the full message sequence in insertion order, the pinned
// system message first when present. The returned slice is a fresh copy;
// callers may iterate it any number of times without affecting the log.
func (c *Conversation) Render() []Message {
	out := make([]Message, 0, len(c.Messages)+1)
	if c.SystemPrompt != "" {
		out = append(out, Message{Role: RoleSystem, Content: c.SystemPrompt})
	}
	for _, msg := range c.Messages {
		out = append(out, *msg)
	}
	return out
}

// ToChatMessages converts the conversation to the chat completions wire
// format, system message first. Messages with empty content are skipped.
func (c *Conversation) ToChatMessages() []openai.ChatMessage {
	rendered := c.Render()
	messages := make([]openai.ChatMessage, 0, len(rendered))
	for _, msg := range rendered {
		if msg.Content == "" {
			continue
		}
		messages = append(messages, openai.ChatMessage{
			Role:    msg.Role.String(),
			Content: msg.Content,
		})
	}
	return messages
}

// ToText serializes the log as role-prefixed lines, one message per line
// block, system context first. The output is stable: repeated calls with no
// intervening mutation return identical text.
func (c *Conversation) ToText() string {
	var b strings.Builder
	for _, msg := range c.Render() {
		b.WriteString(msg.Role.String())
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// =============================================================================
// TOKEN TRACKING
// =============================================================================

// EstimateTokens estimates the total token count of the conversation,
// including the pinned system context and ~4 tokens of per-message
// structure overhead.
func (c *Conversation) EstimateTokens() int {
	total := 0
	if c.SystemPrompt != "" {
		total += (len(c.SystemPrompt) + 3) / 4
	}
	for _, msg := range c.Messages {
		total += msg.EstimateTokens()
		total += 4
	}
	return total
}
