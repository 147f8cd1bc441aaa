package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"google.golang.org/genai"

	"github/itish2003/pdfchat/config"
)

// NewEmbedder returns an Ollama-backed embedder for cfg.EmbeddingModel.
func NewEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	client, err := ollama.New(
		ollama.WithModel(cfg.EmbeddingModel),
		ollama.WithServerURL(cfg.OllamaURL),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create ollama embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("could not create embedder: %w", err)
	}
	return embedder, nil
}

// NewChatModel returns the language model selected by cfg.LLMProvider.
func NewChatModel(ctx context.Context, cfg *config.Config) (llms.Model, error) {
	log := logrus.WithField("component", "llm")
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		llm, err := ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaURL),
		)
		if err != nil {
			return nil, fmt.Errorf("could not create ollama client: %w", err)
		}
		log.Infof("Using Ollama model %s at %s", cfg.LLMModel, cfg.OllamaURL)
		return llm, nil
	case config.ProviderGemini:
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create gemini client: %w", err)
		}
		log.Infof("Using Gemini model %s", cfg.GeminiModel)
		return NewGeminiModel(client.Models, cfg.GeminiModel), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
	}
}
