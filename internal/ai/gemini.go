// Package ai wraps the external generative-text service.
package ai

import (
	"context"
	"errors"

	"google.golang.org/genai"
)

// Client calls the Gemini API for text completion. It satisfies the service
// layer's TextGenerator interface.
type Client struct {
	client *genai.Client
	model  string
}

func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("missing API key")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	return &Client{client: client, model: model}, nil
}

// Generate sends the prompt and returns the plain-text reply. Cancellation
// and timeouts are the caller's responsibility via ctx.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if text == "" {
		return "", errors.New("empty completion")
	}
	return text, nil
}
