// Package llm provides an OpenAI-compatible chat completion client.
// All supported providers (anthropic, openai, deepseek, siliconflow, ollama)
// speak the OpenAI chat protocol, so a single client covers every backend.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Client is the chat completion client interface.
type Client interface {
	// Complete sends a single-prompt completion request and returns the text.
	Complete(ctx context.Context, prompt string, model string, maxTokens int) (string, error)

	// Warmup sends a lightweight ping request to establish and warm up the connection.
	Warmup(ctx context.Context)
}

// Config represents chat client configuration.
type Config struct {
	Provider    string // anthropic, openai, deepseek, siliconflow, ollama
	APIKey      string
	BaseURL     string
	Model       string  // default model when the caller does not specify one
	Temperature float32 // default: 0.7
	Timeout     int     // Request timeout in seconds (default: 30)
}

type client struct {
	api         *openai.Client
	provider    string
	model       string
	temperature float32
	timeout     int
}

// NewClient creates a new chat completion client.
func NewClient(cfg *Config) (Client, error) {
	if cfg.Provider == "" {
		return nil, fmt.Errorf("LLM provider is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = newHTTPClient()

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.7
	}

	return &client{
		api:         openai.NewClientWithConfig(clientConfig),
		provider:    cfg.Provider,
		model:       cfg.Model,
		temperature: temperature,
		timeout:     timeout,
	}, nil
}

func (c *client) Complete(ctx context.Context, prompt string, model string, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.timeout)*time.Second)
	defer cancel()

	if model == "" {
		model = c.model
	}

	startTime := time.Now()

	req := openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s completion failed: %w", c.provider, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from %s", c.provider)
	}

	slog.Debug("LLM completion received",
		"provider", c.provider,
		"model", model,
		"total_tokens", resp.Usage.TotalTokens,
		"duration_ms", time.Since(startTime).Milliseconds(),
	)

	return resp.Choices[0].Message.Content, nil
}

func (c *client) Warmup(ctx context.Context) {
	warmupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	startTime := time.Now()

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   1,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "Hi"},
		},
	}

	_, err := c.api.CreateChatCompletion(warmupCtx, req)
	if err != nil {
		slog.Warn("LLM warmup ping failed (service will still work, first request may be slower)",
			"provider", c.provider,
			"error", err,
			"duration_ms", time.Since(startTime).Milliseconds(),
		)
		return
	}

	slog.Info("LLM connection warmed up",
		"provider", c.provider,
		"model", c.model,
		"duration_ms", time.Since(startTime).Milliseconds(),
	)
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
