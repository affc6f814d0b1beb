// Package gemini wraps the Generative Language client used for rewriting.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type Client struct {
	client *genai.Client
	model  string
}

func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{client: client, model: model}, nil
}

func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Generate sends one user turn under the given system instruction and asks
// for a JSON response. It returns the concatenated text parts.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response from Gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text in Gemini response")
	}
	return sb.String(), nil
}
