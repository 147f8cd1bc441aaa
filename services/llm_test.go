package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms/ollama"

	"github/itish2003/pdfchat/config"
)

func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.FromEnv(func(key string) string { return env[key] })
	require.NoError(t, err)
	return cfg
}

func TestNewEmbedder(t *testing.T) {
	cfg := testConfig(t, map[string]string{"OLLAMA_URL": "http://127.0.0.1:1"})

	embedder, err := NewEmbedder(cfg)
	require.NoError(t, err)
	assert.NotNil(t, embedder)
}

func TestNewChatModel_Providers(t *testing.T) {
	ctx := context.Background()

	t.Run("ollama", func(t *testing.T) {
		cfg := testConfig(t, map[string]string{"OLLAMA_URL": "http://127.0.0.1:1"})
		model, err := NewChatModel(ctx, cfg)
		require.NoError(t, err)
		assert.IsType(t, &ollama.LLM{}, model)
	})

	t.Run("gemini", func(t *testing.T) {
		cfg := testConfig(t, map[string]string{
			"LLM_PROVIDER":   config.ProviderGemini,
			"GEMINI_API_KEY": "test-key",
			"GEMINI_MODEL":   "gemini-test",
		})
		model, err := NewChatModel(ctx, cfg)
		require.NoError(t, err)
		gemini, ok := model.(*GeminiModel)
		require.True(t, ok)
		assert.Equal(t, "gemini-test", gemini.model)
		assert.NotNil(t, gemini.models)
	})

	t.Run("unsupported", func(t *testing.T) {
		cfg := testConfig(t, nil)
		cfg.LLMProvider = "openai"
		_, err := NewChatModel(ctx, cfg)
		assert.ErrorContains(t, err, "unsupported LLM provider")
	})
}
