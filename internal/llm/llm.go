// Package llm drafts outgoing replies and contact profiles with a language
// model, selected by configuration between a local Ollama endpoint and the
// hosted Gemini API. Backend failures never propagate as errors to callers;
// they collapse to a not-OK Draft so the pipeline treats them as "no draft
// produced" and moves on.
package llm

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrMissingAPIKey marks a hosted backend configured without its credential.
var ErrMissingAPIKey = errors.New("llm: api key not set")

// Draft is the outcome of one generation attempt. OK is false when the
// backend was unavailable or failed; Text is meaningful only when OK.
type Draft struct {
	Text string
	OK   bool
}

// Backend is one way to complete a prompt.
type Backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Generator wraps a backend and absorbs its failures.
type Generator struct {
	backend Backend
	log     *zap.Logger
}

// NewGenerator creates a generator over the given backend.
func NewGenerator(backend Backend, log *zap.Logger) *Generator {
	return &Generator{backend: backend, log: log}
}

// Generate completes a prompt. Any backend error is logged and returned as a
// not-OK draft; callers must not retry on their own.
func (g *Generator) Generate(ctx context.Context, prompt string) Draft {
	text, err := g.backend.Complete(ctx, prompt)
	if err != nil {
		g.log.Warn("llm generation failed",
			zap.String("backend", g.backend.Name()),
			zap.Error(err))
		return Draft{}
	}
	if text == "" {
		return Draft{}
	}
	return Draft{Text: text, OK: true}
}
