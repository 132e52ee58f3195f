package daemon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilofice/enel/internal/asr"
	"github.com/wilofice/enel/internal/config"
	"github.com/wilofice/enel/internal/llm"
)

func TestProvideBackendSelectsEngine(t *testing.T) {
	cfg := config.Default()

	cfg.LLM.Engine = "local"
	backend, err := provideBackend(cfg)
	require.NoError(t, err)
	assert.IsType(t, &llm.OllamaBackend{}, backend)

	cfg.LLM.Engine = "gemini"
	backend, err = provideBackend(cfg)
	require.NoError(t, err)
	assert.IsType(t, &llm.GeminiBackend{}, backend)

	cfg.LLM.Engine = "bogus"
	_, err = provideBackend(cfg)
	assert.Error(t, err)
}

func TestProvideTranscriberSelectsEngine(t *testing.T) {
	cfg := config.Default()

	cfg.ASR.Engine = "local"
	tr, err := provideTranscriber(cfg)
	require.NoError(t, err)
	assert.IsType(t, &asr.WhisperCLI{}, tr)

	cfg.ASR.Engine = "openai"
	tr, err = provideTranscriber(cfg)
	require.NoError(t, err)
	assert.IsType(t, &asr.OpenAITranscriber{}, tr)

	cfg.ASR.Engine = "bogus"
	_, err = provideTranscriber(cfg)
	assert.Error(t, err)
}
