package similarity

import (
	"context"

	"cvmatch/internal/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Embedder turns a text into a sentence embedding
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Identified is implemented by embedders that can name their model.
// The name is part of every cache key.
type Identified interface {
	ModelID() string
}

// Observer receives cache and scoring events, typically for metrics
type Observer interface {
	RecordCacheLookup(ctx context.Context, hit bool)
	RecordUndefinedSimilarity(ctx context.Context)
}

// Service embeds texts, optionally through a cache, and scores them
type Service struct {
	embedder Embedder
	model    string
	cache    Cache
	observer Observer
	logger   *errors.Logger
}

// NewService creates a similarity service. cache may be nil.
func NewService(embedder Embedder, cache Cache, logger *errors.Logger) *Service {
	s := &Service{embedder: embedder, cache: cache, logger: logger}
	if id, ok := embedder.(Identified); ok {
		s.model = id.ModelID()
	}
	return s
}

// WithObserver sets the observer notified of cache lookups
func (s *Service) WithObserver(observer Observer) *Service {
	s.observer = observer
	return s
}

// Embed returns the embedding of text. Cache failures are logged and the
// embedder is called as if the entry was missing.
func (s *Service) Embed(ctx context.Context, text string) ([]float64, error) {
	if s.cache == nil {
		return s.embedder.Embed(ctx, text)
	}

	key := Key(s.model, text)
	vector, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Embedding cache read failed", "error", err.Error())
	}
	if s.observer != nil {
		s.observer.RecordCacheLookup(ctx, ok)
	}
	if ok {
		return vector, nil
	}

	vector, err = s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, vector); err != nil {
		s.logger.Warn("Embedding cache write failed", "error", err.Error())
	}
	return vector, nil
}

// Similarity returns the cosine similarity of the embeddings of a and b.
// Both texts are embedded concurrently.
func (s *Service) Similarity(ctx context.Context, a, b string) (float64, error) {
	ctx, span := otel.Tracer("cvmatch.similarity").Start(ctx, "similarity.score")
	defer span.End()
	span.SetAttributes(
		attribute.Int("input.a_length", len(a)),
		attribute.Int("input.b_length", len(b)),
	)

	var va, vb []float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		va, err = s.Embed(gctx, a)
		return err
	})
	g.Go(func() error {
		var err error
		vb, err = s.Embed(gctx, b)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return 0, err
	}

	score, err := Cosine(va, vb)
	if err != nil {
		span.RecordError(err)
		if s.observer != nil {
			s.observer.RecordUndefinedSimilarity(ctx)
		}
		return 0, err
	}

	span.SetAttributes(attribute.Float64("similarity.score", score))
	return score, nil
}
