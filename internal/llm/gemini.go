package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiBackend completes prompts against the hosted Gemini API. A missing
// API key leaves the backend in place but every completion fails with
// ErrMissingAPIKey, which the generator reports as "no draft".
type GeminiBackend struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiBackend creates the hosted backend. With an empty apiKey no client
// is constructed and completions fail softly.
func NewGeminiBackend(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiBackend, error) {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	b := &GeminiBackend{model: model, timeout: timeout}
	if apiKey == "" {
		return b, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	b.client = client
	return b, nil
}

// Name identifies the backend in logs.
func (b *GeminiBackend) Name() string { return "gemini" }

// Complete sends the prompt as a single user turn and returns the trimmed
// first candidate text.
func (b *GeminiBackend) Complete(ctx context.Context, prompt string) (string, error) {
	if b.client == nil {
		return "", ErrMissingAPIKey
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: prompt}},
	}}
	resp, err := b.client.Models.GenerateContent(ctx, b.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini response has no candidates")
	}
	return strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text), nil
}
