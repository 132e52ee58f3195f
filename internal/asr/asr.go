// Package asr turns audio attachments into text, either through a local
// whisper command line or the hosted OpenAI transcription API. Engines report
// unavailability (missing binary, missing credential) as errors; the caller
// decides whether that means skip or retry.
package asr

import (
	"context"
	"errors"
)

// ErrMissingAPIKey marks the hosted engine configured without its credential.
var ErrMissingAPIKey = errors.New("asr: api key not set")

// Result is one successful transcription. Engines without word-level scoring
// report a confidence of 1.
type Result struct {
	Text               string
	Confidence         float64
	Language           string
	LanguageConfidence float64
}

// Transcriber converts one audio file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, filePath string) (*Result, error)
	Engine() string
}
