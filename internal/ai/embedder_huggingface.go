package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cvmatch/internal/config"
	appErrors "cvmatch/internal/errors"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const huggingFaceService = "huggingface"

// HuggingFaceEmbedder calls the Inference API feature-extraction pipeline
type HuggingFaceEmbedder struct {
	endpoint       string
	model          string
	token          string
	client         *http.Client
	circuitBreaker *CircuitBreaker[[]float64]
	logger         *appErrors.Logger
}

type featureExtractionRequest struct {
	Inputs  string                   `json:"inputs"`
	Options featureExtractionOptions `json:"options"`
}

type featureExtractionOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

func NewHuggingFaceEmbedder(cfg config.EmbeddingConfig, logger *appErrors.Logger) *HuggingFaceEmbedder {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = config.DefaultHuggingFaceBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = config.DefaultHuggingFaceModel
	}

	return &HuggingFaceEmbedder{
		endpoint: baseURL + "/pipeline/feature-extraction/" + model,
		model:    model,
		token:    cfg.APIKey,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		circuitBreaker: NewCircuitBreaker[[]float64]("Embedding-"+huggingFaceService, cfg.CircuitBreaker, logger),
		logger:         logger,
	}
}

// ModelID implements Embedder
func (h *HuggingFaceEmbedder) ModelID() string {
	return config.EmbeddingProviderHuggingFace + "/" + h.model
}

// Embed implements Embedder
func (h *HuggingFaceEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	ctx, span := otel.Tracer("cvmatch.ai.embedding").Start(ctx, "huggingface.embed")
	defer span.End()
	span.SetAttributes(attribute.Int("input.text_length", len(text)))

	vector, err := h.circuitBreaker.Execute(func() ([]float64, error) {
		return h.embed(ctx, text)
	})
	if err != nil {
		span.RecordError(err)
		return nil, toServiceError(huggingFaceService, err)
	}

	span.SetAttributes(attribute.Int("output.dimensions", len(vector)))
	return vector, nil
}

func (h *HuggingFaceEmbedder) embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(featureExtractionRequest{
		Inputs:  text,
		Options: featureExtractionOptions{WaitForModel: true},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		h.logger.Warn("Embedding request rejected",
			"status", resp.StatusCode,
			"endpoint", h.endpoint)
		return nil, appErrors.NewServiceUnavailableError(huggingFaceService, resp.StatusCode,
			fmt.Sprintf("embedding request returned %d: %s", resp.StatusCode, snippet(payload, 200)), nil)
	}

	vector, err := decodeFeatures(payload)
	if err != nil {
		return nil, appErrors.NewServiceUnavailableError(huggingFaceService, resp.StatusCode,
			"unexpected embedding response", err)
	}
	return vector, nil
}

// decodeFeatures accepts a sentence vector, a token matrix or a batch of one
// token matrix. Matrices are mean-pooled over tokens.
func decodeFeatures(payload []byte) ([]float64, error) {
	var vector []float64
	if err := json.Unmarshal(payload, &vector); err == nil {
		return vector, nil
	}

	var matrix [][]float64
	if err := json.Unmarshal(payload, &matrix); err == nil {
		return meanPool(matrix), nil
	}

	var batch [][][]float64
	if err := json.Unmarshal(payload, &batch); err != nil {
		return nil, err
	}
	if len(batch) != 1 {
		return nil, fmt.Errorf("expected one embedding, got %d", len(batch))
	}
	return meanPool(batch[0]), nil
}

func meanPool(matrix [][]float64) []float64 {
	if len(matrix) == 0 {
		return nil
	}
	out := make([]float64, len(matrix[0]))
	for _, row := range matrix {
		if len(row) != len(out) {
			return nil
		}
		for i, v := range row {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= float64(len(matrix))
	}
	return out
}

func snippet(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
