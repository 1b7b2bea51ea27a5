package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"subject-rag/internal/config"
)

// Client calls an openai-compatible chat completion endpoint. There is no
// retry or backoff here; the caller owns timeouts through ctx.
type Client struct {
	cfg config.LLMConfig
}

func New(cfg config.LLMConfig) *Client {
	return &Client{cfg: cfg}
}

// Generate runs a single-turn completion for the prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	llm, err := openai.New(
		openai.WithBaseURL(c.cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(c.cfg.APIKey(), "Bearer ")),
		openai.WithModel(c.cfg.Model),
	)
	if err != nil {
		return "", err
	}

	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	}

	res, err := llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("model %s returned no choices", c.cfg.Model)
	}
	return res.Choices[0].Content, nil
}
