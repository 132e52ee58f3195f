package asr

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAITranscriber sends audio files to the hosted OpenAI transcription API.
type OpenAITranscriber struct {
	client   *openai.Client
	language string
}

// NewOpenAITranscriber creates the hosted transcriber. With an empty apiKey
// every transcription fails with ErrMissingAPIKey.
func NewOpenAITranscriber(apiKey, language string) *OpenAITranscriber {
	t := &OpenAITranscriber{language: language}
	if apiKey == "" {
		return t
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	t.client = &client
	return t
}

// Engine identifies the transcriber in transcript rows and logs.
func (t *OpenAITranscriber) Engine() string { return "openai" }

// Transcribe uploads the file and returns the transcription text. The API
// reports no confidence score, so 1 is recorded.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, filePath string) (*Result, error) {
	if t.client == nil {
		return nil, ErrMissingAPIKey
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer func() { _ = f.Close() }()

	params := openai.AudioTranscriptionNewParams{
		File:  f,
		Model: openai.AudioModelWhisper1,
	}
	if t.language != "" {
		params.Language = openai.String(t.language)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai transcription: %w", err)
	}

	return &Result{
		Text:               strings.TrimSpace(resp.Text),
		Confidence:         1,
		Language:           t.language,
		LanguageConfidence: 1,
	}, nil
}
