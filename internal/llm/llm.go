// Package llm lets the dev server answer puzzles with a real model through
// any OpenAI-compatible endpoint (OpenAI, Ollama, vLLM).
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Vendor is reported as the model vendor for answers produced here.
const Vendor = "openai-compatible"

var problemTagRegex = regexp.MustCompile(`(?i)</?\s*problem\b[^>]*>`)

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Ping checks that the endpoint answers and knows the configured model.
func (c *Client) Ping(ctx context.Context) error {
	models, err := c.api.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	for _, m := range models.Models {
		if m.ID == c.model {
			return nil
		}
	}
	return fmt.Errorf("model %q not served by endpoint", c.model)
}

// Answer runs the player's prompt as the system instruction against the
// hidden problem statement and returns the model's text.
func (c *Client) Answer(ctx context.Context, userPrompt, statement string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    buildMessages(userPrompt, statement),
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("LLM returned no choices")
	}

	out := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "model", c.model, "chars", len(out), "tokens", resp.Usage.TotalTokens)
	return out, nil
}

func buildMessages(userPrompt, statement string) []openai.ChatCompletionMessage {
	var sb strings.Builder
	sb.WriteString(sanitize(userPrompt))
	sb.WriteString("\n\nThe problem is given inside <problem> tags. End your reply with the final numeric answer.")

	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: sb.String()},
		{Role: openai.ChatMessageRoleUser, Content: "<problem>\n" + statement + "\n</problem>"},
	}
}

// sanitize removes problem tags so a prompt cannot fake the statement block.
func sanitize(s string) string {
	return problemTagRegex.ReplaceAllString(s, "")
}
