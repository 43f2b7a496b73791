package ai

import (
	"context"
	"time"

	"cvmatch/internal/config"
	appErrors "cvmatch/internal/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"
)

// GeminiEmbedder embeds text with a Gemini embedding model
type GeminiEmbedder struct {
	models         embedAPI
	model          string
	timeout        time.Duration
	circuitBreaker *CircuitBreaker[[]float64]
}

func NewGeminiEmbedder(cfg config.EmbeddingConfig, logger *appErrors.Logger) (*GeminiEmbedder, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, appErrors.NewAIError(appErrors.ErrCodeAIServiceFailed,
			"Failed to create Gemini client", err)
	}
	return newGeminiEmbedder(client.Models, cfg, logger), nil
}

func newGeminiEmbedder(models embedAPI, cfg config.EmbeddingConfig, logger *appErrors.Logger) *GeminiEmbedder {
	model := cfg.Model
	if model == "" {
		model = config.DefaultGeminiEmbedModel
	}
	return &GeminiEmbedder{
		models:         models,
		model:          model,
		timeout:        cfg.Timeout,
		circuitBreaker: NewCircuitBreaker[[]float64]("Embedding-"+geminiService, cfg.CircuitBreaker, logger),
	}
}

// ModelID implements Embedder
func (g *GeminiEmbedder) ModelID() string {
	return config.EmbeddingProviderGemini + "/" + g.model
}

// Embed implements Embedder
func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	ctx, span := otel.Tracer("cvmatch.ai.embedding").Start(ctx, "gemini.embed")
	defer span.End()
	span.SetAttributes(
		attribute.String("ai.model", g.model),
		attribute.Int("input.text_length", len(text)),
	)

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	vector, err := g.circuitBreaker.Execute(func() ([]float64, error) {
		resp, err := g.models.EmbedContent(ctx, g.model, genai.Text(text),
			&genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"})
		if err != nil {
			return nil, err
		}
		if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
			return nil, appErrors.NewServiceUnavailableError(geminiService, 0, "embedding response is empty", nil)
		}

		values := resp.Embeddings[0].Values
		out := make([]float64, len(values))
		for i, v := range values {
			out[i] = float64(v)
		}
		return out, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, toServiceError(geminiService, err)
	}
	return vector, nil
}
