package ai

import (
	"context"
	"fmt"

	"cvmatch/internal/config"
	"cvmatch/internal/errors"
)

// Embedder turns a text into a sentence embedding
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	// ModelID names the provider and model behind the vectors
	ModelID() string
}

// NewEmbedder creates the embedder selected by cfg.Provider
func NewEmbedder(cfg config.EmbeddingConfig, logger *errors.Logger) (Embedder, error) {
	logger.Debug("Initializing embedder",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"timeout", cfg.Timeout)

	switch cfg.Provider {
	case config.EmbeddingProviderHuggingFace, "":
		return NewHuggingFaceEmbedder(cfg, logger), nil
	case config.EmbeddingProviderGemini:
		return NewGeminiEmbedder(cfg, logger)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported embedding provider: %s", cfg.Provider), nil)
	}
}
