package asr

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWhisper writes a shell script standing in for the whisper binary.
func fakeWhisper(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "whisper")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestWhisperCLIReadsOutputFile(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "note.ogg")
	require.NoError(t, os.WriteFile(audio, []byte("not really audio"), 0o644))

	w := NewWhisperCLI("base", "en", time.Minute)
	w.bin = fakeWhisper(t, `printf ' hello from audio \n' > "$(dirname "$1")/note.txt"`)

	res, err := w.Transcribe(context.Background(), audio)
	require.NoError(t, err)
	assert.Equal(t, "hello from audio", res.Text)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, "en", res.Language)
}

func TestWhisperCLIMissingBinary(t *testing.T) {
	w := NewWhisperCLI("base", "", time.Minute)
	w.bin = filepath.Join(t.TempDir(), "no-such-binary")

	_, err := w.Transcribe(context.Background(), "/tmp/whatever.ogg")
	require.Error(t, err)
}

func TestWhisperCLICancelledKillsRun(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "slow.ogg")
	require.NoError(t, os.WriteFile(audio, []byte("x"), 0o644))

	w := NewWhisperCLI("base", "", time.Minute)
	w.bin = fakeWhisper(t, "sleep 30")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := w.Transcribe(ctx, audio)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenAITranscriberWithoutKeyFailsSoftly(t *testing.T) {
	tr := NewOpenAITranscriber("", "en")
	_, err := tr.Transcribe(context.Background(), "/tmp/whatever.ogg")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
