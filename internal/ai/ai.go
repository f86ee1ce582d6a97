// Package ai talks to the external model that writes project summaries. The
// tracker treats it as a black box: it may fail, it must not block anything
// else, and its output is display-only text.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
)

const defaultModel = anthropic.Model("claude-haiku-4-5")

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("ai: API key required")

// Client produces natural-language summaries via the Anthropic API.
type Client struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewClient builds a summarizer client. Returns ErrNoAPIKey when apiKey is
// empty so callers can leave the feature off.
func NewClient(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	m := anthropic.Model(model)
	if model == "" {
		m = defaultModel
	}
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  m,
	}, nil
}

// Summarize sends the prompt and returns the model's text. Transient API
// failures are retried with exponential backoff until the context expires or
// the retry budget runs out.
func (c *Client) Summarize(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(time.Second),
	), 3), ctx)

	var text string
	op := func() error {
		message, err := c.client.Messages.New(ctx, params)
		if err != nil {
			return err
		}
		text = ""
		for _, block := range message.Content {
			if block.Type == "text" {
				text += block.Text
			}
		}
		return nil
	}
	if err := backoff.Retry(op, policy); err != nil {
		return "", fmt.Errorf("ai summary: %w", err)
	}
	return text, nil
}
