package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Options are the generation parameters sent with every chat request.
type Options struct {
	Temperature float32
	TopP        float32
	MaxTokens   int
}

// DefaultOptions mirrors the defaults of the chat UI.
func DefaultOptions() Options {
	return Options{Temperature: 0.7, TopP: 0.9, MaxTokens: 2000}
}

// Client talks to Ollama through its OpenAI-compatible /v1 endpoint.
type Client struct {
	api   *openai.Client
	model string
	opts  Options
	stats *LLMStats
	log   *slog.Logger
}

// NewClient creates a chat client. baseURL should include the /v1 suffix,
// e.g. http://localhost:11434/v1. Ollama ignores the API key but the
// OpenAI client requires one, so an empty key is replaced.
func NewClient(baseURL, apiKey, model string, opts Options, stats *LLMStats, log *slog.Logger) *Client {
	if apiKey == "" {
		apiKey = "ollama"
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		api:   openai.NewClientWithConfig(cfg),
		model: model,
		opts:  opts,
		stats: stats,
		log:   log,
	}
}

// Model returns the chat model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends a system prompt and a user prompt and returns the
// assistant's reply text. Transient failures are retried with backoff.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.opts.Temperature,
		TopP:        c.opts.TopP,
		MaxTokens:   c.opts.MaxTokens,
	}

	var reply string
	err := Retry(ctx, c.log, "chat", func(ctx context.Context) error {
		start := time.Now()
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if c.stats != nil {
			c.stats.Record(time.Since(start).Milliseconds())
		}
		if err != nil {
			return Classify(fmt.Errorf("ollama chat: %w", err))
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty response from ollama")
		}
		reply = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}
