// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package openai provides the chat completions client for OpenAI-compatible APIs.
package openai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ============================================================================
// Constants
// ============================================================================

const (
	// DefaultBaseURL is the OpenAI API endpoint. Override with WithBaseURL
	// (or OPENAI_BASE_URL) to target any compatible gateway.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultTimeout for non-streaming API requests.
	DefaultTimeout = 60 * time.Second

	// DefaultModel used when the caller does not pick one.
	DefaultModel = "gpt-4"

	// DefaultMaxTokens caps completion length unless overridden.
	DefaultMaxTokens = 1000

	// DefaultTemperature is the sampling temperature (valid range 0-2).
	DefaultTemperature = 1.0

	// MaxResponseSize limits response body size (10MB) to prevent memory
	// exhaustion from malformed or malicious responses.
	MaxResponseSize = 10 * 1024 * 1024

	// userAgent identifies this client to the API.
	userAgent = "command-ai/1.0"
)

// ============================================================================
// Shared HTTP Clients
// ============================================================================

// PERFORMANCE: Shared HTTP clients enable connection pooling and reuse.
// Creating new clients per request wastes TCP connections and TLS handshakes.
var (
	// sharedHTTPClient is used for standard (non-streaming) requests.
	sharedHTTPClient = &http.Client{
		Timeout: DefaultTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}

	// sharedStreamingClient is used for SSE streaming requests.
	// No timeout because streams are long-lived; cancellation comes
	// from the request context instead.
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
)

// ============================================================================
// Error Types
// ============================================================================

var (
	// ErrNotConfigured indicates no API key is available.
	ErrNotConfigured = errors.New("api key not configured")

	// ErrAuthFailed indicates the API key was rejected.
	ErrAuthFailed = errors.New("authentication failed: invalid api key")

	// ErrRateLimited indicates the API rate limit was hit.
	ErrRateLimited = errors.New("rate limited by api")

	// ErrModelNotFound indicates the requested model doesn't exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrInvalidRequest indicates the API rejected the request as malformed.
	ErrInvalidRequest = errors.New("invalid request rejected by api")

	// ErrInsufficientCredits indicates the account has no quota left.
	ErrInsufficientCredits = errors.New("insufficient api credits")
)

// APIError represents an error response from the API.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Status  int    `json:"-"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("api error (HTTP %d): %s", e.Status, e.Message)
}

// RateLimitError carries the server-advertised wait before the next attempt.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited by api (retry after %s)", e.RetryAfter)
	}
	return ErrRateLimited.Error()
}

// Is allows errors.Is(err, ErrRateLimited) to match.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// ============================================================================
// Request/Response Types
// ============================================================================

// ChatMessage represents a single message in a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewSystemMessage creates a system-role chat message.
func NewSystemMessage(content string) ChatMessage {
	return ChatMessage{Role: "system", Content: content}
}

// NewUserMessage creates a user-role chat message.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{Role: "user", Content: content}
}

// NewAssistantMessage creates an assistant-role chat message.
func NewAssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: content}
}

// ChatRequest is the request body for the chat completions endpoint.
// Temperature and MaxTokens are always sent explicitly: a temperature of 0
// is a valid, deterministic setting and must not be dropped by omitempty.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Stream      bool          `json:"stream,omitempty"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// ChatResponse is the response from the chat completions endpoint.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// GetContent returns the first choice's content, or empty string.
func (r *ChatResponse) GetContent() string {
	if len(r.Choices) > 0 {
		return r.Choices[0].Message.Content
	}
	return ""
}

// apiErrorResponse is the error envelope returned by the API.
type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// ============================================================================
// Client
// ============================================================================

// Client communicates with an OpenAI-compatible chat completions API.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
}

// NewClient creates an API client with default settings.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:      apiKey,
		baseURL:     DefaultBaseURL,
		model:       DefaultModel,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
		timeout:     DefaultTimeout,
	}
}

// WithBaseURL sets a custom API base URL (for compatible gateways).
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimSuffix(url, "/")
	return c
}

// WithModel sets the model used for completions.
func (c *Client) WithModel(model string) *Client {
	c.model = model
	return c
}

// WithMaxTokens sets the completion token cap.
func (c *Client) WithMaxTokens(maxTokens int) *Client {
	c.maxTokens = maxTokens
	return c
}

// WithTemperature sets the sampling temperature.
func (c *Client) WithTemperature(temperature float64) *Client {
	c.temperature = temperature
	return c
}

// WithTimeout sets the per-request timeout for non-streaming calls.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.timeout = timeout
	return c
}

// IsConfigured returns true if an API key is set.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Model returns the model this client sends completions to.
func (c *Client) Model() string {
	return c.model
}

// APIKeyMasked returns a masked version of the API key for display.
// SECURITY: Never expose the full key; show only a prefix and fingerprint.
func (c *Client) APIKeyMasked() string {
	if c.apiKey == "" {
		return "(not set)"
	}
	if len(c.apiKey) < 8 {
		return "****"
	}
	return fmt.Sprintf("%s...%s", c.apiKey[:6], keyFingerprint(c.apiKey))
}

// keyFingerprint returns a short hash fragment identifying a key without
// revealing it.
func keyFingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", sum[:4])
}

// ValidateAPIKey reports whether the key looks like an OpenAI-style secret
// key. Used only for a startup hint; the API is the real authority.
func ValidateAPIKey(key string) bool {
	return strings.HasPrefix(key, "sk-") && len(key) >= 20
}

// ============================================================================
// Chat Completion
// ============================================================================

// Chat sends a conversation to the API and returns the full response.
// No internal retries: transient failures surface to the caller, which
// reports them and leaves the conversation intact for a manual retry.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage) (*ChatResponse, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	reqBody := ChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	return c.doRequest(ctx, reqBody)
}

// doRequest performs a single chat completion request.
func (c *Client) doRequest(ctx context.Context, reqBody ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := sharedHTTPClient.Do(req)
	// SECURITY: Clear Authorization header reference after use.
	req.Header.Del("Authorization")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := readResponse(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode, resp.Header, respBody)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &chatResp, nil
}

// setHeaders sets the standard request headers.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
}

// readResponse reads a response body with a size cap.
// SECURITY: io.LimitReader prevents memory exhaustion on outsized bodies.
func readResponse(r io.Reader) ([]byte, error) {
	limited := io.LimitReader(r, MaxResponseSize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeds maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse maps HTTP error responses to typed errors.
func handleErrorResponse(statusCode int, header http.Header, body []byte) error {
	var errResp apiErrorResponse
	// Parse failures are fine; fall back to status-only mapping.
	_ = json.Unmarshal(body, &errResp)

	// Quota exhaustion arrives as 429 with a distinct code; detect it
	// before the generic rate-limit mapping.
	if errResp.Error.Code == "insufficient_quota" || errResp.Error.Type == "insufficient_quota" {
		return ErrInsufficientCredits
	}

	switch statusCode {
	case http.StatusBadRequest:
		if errResp.Error.Message != "" {
			return fmt.Errorf("%w: %s", ErrInvalidRequest, errResp.Error.Message)
		}
		return ErrInvalidRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthFailed
	case http.StatusPaymentRequired:
		return ErrInsufficientCredits
	case http.StatusNotFound:
		return ErrModelNotFound
	case http.StatusTooManyRequests:
		if wait := parseRetryAfter(header); wait > 0 {
			return &RateLimitError{RetryAfter: wait}
		}
		return ErrRateLimited
	}

	if errResp.Error.Message != "" {
		return &APIError{
			Code:    errResp.Error.Code,
			Message: errResp.Error.Message,
			Type:    errResp.Error.Type,
			Status:  statusCode,
		}
	}
	return &APIError{
		Message: fmt.Sprintf("unexpected status %d", statusCode),
		Status:  statusCode,
	}
}

// parseRetryAfter extracts the Retry-After header as a duration.
// The header may be delay-seconds or an HTTP date.
func parseRetryAfter(header http.Header) time.Duration {
	value := header.Get("Retry-After")
	if value == "" {
		return 0
	}
	var seconds int
	if _, err := fmt.Sscanf(value, "%d", &seconds); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if wait := time.Until(t); wait > 0 {
			return wait
		}
	}
	return 0
}
