package cli

import (
	"context"
	"fmt"

	"cvmatch/internal/ai"
	"cvmatch/internal/config"
	"cvmatch/internal/errors"
	"cvmatch/internal/similarity"
)

// newSimilarityService builds the embedder and its cache. The returned
// func releases the cache connection.
func newSimilarityService(ctx context.Context, cfg *config.Config, logger *errors.Logger) (*similarity.Service, similarity.Cache, func() error, error) {
	embedder, err := ai.NewEmbedder(cfg.GetEmbeddingConfig(), logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	cache, closeCache, err := similarity.NewCache(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	return similarity.NewService(embedder, cache, logger), cache, closeCache, nil
}

func closeWithLog(logger *errors.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.LogError(err, "Failed to close "+what)
	}
}
