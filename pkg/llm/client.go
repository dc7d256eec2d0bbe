// Package llm provides a minimal client for OpenAI-compatible chat
// completion endpoints (Groq, OpenRouter, local Ollama). The scam
// classifier and the persona generator share this transport; neither
// retries, and callers treat every error as a degraded soft failure.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/decoy-ai/decoyd/pkg/config"
	"github.com/decoy-ai/decoyd/pkg/httputil"
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Client calls one OpenAI-compatible chat completions endpoint.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
}

// NewClient builds a client from config. Returns nil when no provider is
// configured (or a cloud provider has no credential); callers must treat a
// nil client as "capability absent" and use their fallback.
func NewClient(cfg *config.Config) *Client {
	if cfg.LLMProvider == config.ProviderNone {
		return nil
	}
	if cfg.LLMProvider != config.ProviderOllama && cfg.LLMAPIKey == "" {
		return nil
	}

	baseURL := cfg.LLMBaseURL
	if baseURL == "" {
		switch cfg.LLMProvider {
		case config.ProviderGroq:
			baseURL = "https://api.groq.com/openai/v1"
		case config.ProviderOpenRouter:
			baseURL = "https://openrouter.ai/api/v1"
		case config.ProviderOllama:
			baseURL = "http://localhost:11434/v1"
		}
	}

	timeout := cfg.LLMTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		http:    httputil.Client(timeout),
		baseURL: baseURL,
		apiKey:  cfg.LLMAPIKey,
		model:   cfg.LLMModel,
	}
}

// NewClientAt builds a client against an explicit endpoint, used by tests.
func NewClientAt(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		http:    httputil.Client(timeout),
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
	}
}

// Chat sends one completion request and returns the first choice's content,
// trimmed. Any transport, status or shape problem is returned as an error;
// this client never retries.
func (c *Client) Chat(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	jsonBody, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(c.baseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer httputil.DrainAndClose(resp.Body)

	body, err := httputil.ReadResponseBody(resp.Body, httputil.MaxResponseSize)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
