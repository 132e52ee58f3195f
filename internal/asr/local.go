package asr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// WhisperCLI runs the local whisper command line, writing a .txt next to the
// input file and reading it back. Cancelling the context kills the subprocess;
// a killed run produces no result.
type WhisperCLI struct {
	bin      string
	model    string
	language string
	timeout  time.Duration
}

// NewWhisperCLI creates a local transcriber.
func NewWhisperCLI(model, language string, timeout time.Duration) *WhisperCLI {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &WhisperCLI{bin: "whisper", model: model, language: language, timeout: timeout}
}

// Engine identifies the transcriber in transcript rows and logs.
func (w *WhisperCLI) Engine() string { return "whisper" }

// Transcribe runs whisper on the file with a hard wall-clock timeout.
func (w *WhisperCLI) Transcribe(ctx context.Context, filePath string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	outDir := filepath.Dir(filePath)
	args := []string{filePath, "--model", w.model, "--output_format", "txt", "--output_dir", outDir}
	if w.language != "" {
		args = append(args, "--language", w.language)
	}

	cmd := exec.CommandContext(ctx, w.bin, args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("whisper cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("whisper run: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	data, err := os.ReadFile(filepath.Join(outDir, base+".txt"))
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}

	return &Result{
		Text:               strings.TrimSpace(string(data)),
		Confidence:         1,
		Language:           w.language,
		LanguageConfidence: 1,
	}, nil
}
