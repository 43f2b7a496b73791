package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cvmatch/internal/config"
	appErrors "cvmatch/internal/errors"
	"cvmatch/internal/impact"
	"cvmatch/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

const geminiService = "gemini"

// operation is one configured model call with its own breaker
type operation struct {
	name           config.Operation
	config         config.OperationAIConfig
	models         modelsAPI
	circuitBreaker *CircuitBreaker[*genai.GenerateContentResponse]
}

// GeminiProvider implements AIProvider for Google Gemini
type GeminiProvider struct {
	operations   map[config.Operation]*operation
	modelBreaker *CircuitBreaker[*genai.Model]
	checkTimeout time.Duration
	counter      *impact.TokenCounter
	logger       *appErrors.Logger
}

// Ensure GeminiProvider implements AIProvider
var _ AIProvider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a Gemini provider serving every model operation.
// Operations sharing an API key share one client.
func NewGeminiProvider(cfg *config.Config, logger *appErrors.Logger) (*GeminiProvider, error) {
	clients := make(map[string]modelsAPI)
	clientFor := func(apiKey string) (modelsAPI, error) {
		if m, ok := clients[apiKey]; ok {
			return m, nil
		}
		client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, appErrors.NewAIError(appErrors.ErrCodeAIServiceFailed,
				"Failed to create Gemini client", err)
		}
		clients[apiKey] = client.Models
		return client.Models, nil
	}

	return buildGeminiProvider(cfg, clientFor, logger)
}

// newGeminiProviderWithModels wires every operation to models
func newGeminiProviderWithModels(cfg *config.Config, models modelsAPI, logger *appErrors.Logger) *GeminiProvider {
	p, _ := buildGeminiProvider(cfg, func(string) (modelsAPI, error) { return models, nil }, logger)
	return p
}

func buildGeminiProvider(cfg *config.Config, clientFor func(apiKey string) (modelsAPI, error), logger *appErrors.Logger) (*GeminiProvider, error) {
	p := &GeminiProvider{
		operations:   make(map[config.Operation]*operation, len(config.Operations)),
		checkTimeout: cfg.Observability.HealthCheck.AIModelCheckTimeout,
		counter:      impact.NewTokenCounter(),
		logger:       logger,
	}
	if p.checkTimeout <= 0 {
		p.checkTimeout = 10 * time.Second
	}

	for _, op := range config.Operations {
		opCfg := cfg.GetOperationConfig(op)
		models, err := clientFor(opCfg.APIKey)
		if err != nil {
			return nil, err
		}
		p.operations[op] = &operation{
			name:           op,
			config:         opCfg,
			models:         models,
			circuitBreaker: NewCircuitBreaker[*genai.GenerateContentResponse]("AI-"+string(op), opCfg.CircuitBreaker, logger),
		}
	}

	extract := p.operations[config.OpExtractCV]
	p.modelBreaker = newModelCircuitBreaker[*genai.Model]("AI-Model", extract.config.CircuitBreaker, logger)
	return p, nil
}

// ModelInfo represents information about the AI model
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}

// GetModelInfo checks the readiness and availability of the extraction model
func (g *GeminiProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	op := g.operations[config.OpExtractCV]
	modelInfo := &ModelInfo{
		Name:      op.config.Model,
		Available: false,
	}

	checkCtx, cancel := context.WithTimeout(ctx, g.checkTimeout)
	defer cancel()

	model, err := g.modelBreaker.Execute(func() (*genai.Model, error) {
		return op.models.Get(checkCtx, op.config.Model, &genai.GetModelConfig{})
	})
	if err != nil {
		modelInfo.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.logger.Warn("Model availability check failed",
			"model", op.config.Model,
			"provider", op.config.Provider,
			"error", err.Error())
		return modelInfo
	}

	modelInfo.Available = true
	if model != nil {
		modelInfo.DisplayName = model.DisplayName
		modelInfo.Version = model.Version
	}

	g.logger.Debug("Model availability check successful",
		"model", op.config.Model,
		"display_name", modelInfo.DisplayName,
		"version", modelInfo.Version)

	return modelInfo
}

// executeAIOperation runs one model call with tracing, timeout, breaker and retries,
// then hands the answer text to parse. Usage is returned as soon as the model answered.
func executeAIOperation[Out any](
	g *GeminiProvider,
	ctx context.Context,
	op *operation,
	userPrompt string,
	systemPrompt string,
	genaiConfig *genai.GenerateContentConfig,
	parse func(raw string) (Out, error),
	spanAttributes ...attribute.KeyValue,
) (Out, *TokenUsage, error) {
	var output Out
	tracer := otel.Tracer("cvmatch.ai.gemini")
	ctx, span := tracer.Start(ctx, "gemini."+string(op.name))
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", geminiService),
		attribute.String("ai.model", op.config.Model),
		attribute.Float64("ai.temperature", float64(*op.config.Temperature)),
	)
	span.SetAttributes(spanAttributes...)

	if *op.config.UseSystemPrompts && systemPrompt != "" {
		genaiConfig.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	// 0 is a valid temperature; leaving it unset would fall back to the model default
	genaiConfig.Temperature = op.config.Temperature
	if *op.config.MaxOutputTokens > 0 {
		genaiConfig.MaxOutputTokens = *op.config.MaxOutputTokens
	}

	if timeout := *op.config.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := op.circuitBreaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return withRetry(ctx, g.logger, string(op.name), *op.config.MaxRetries, func() (*genai.GenerateContentResponse, error) {
			return op.models.GenerateContent(ctx, op.config.Model, genai.Text(userPrompt), genaiConfig)
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return output, nil, toServiceError(geminiService, err)
	}

	raw := result.Text()
	tokenUsage := extractTokenUsage(result)
	if tokenUsage == nil {
		tokenUsage = g.counter.Usage(op.config.Model, systemPrompt+userPrompt, raw)
		span.SetAttributes(attribute.Bool("ai.tokens.estimated", true))
	}
	span.SetAttributes(
		attribute.Int64("ai.tokens.input", tokenUsage.InputTokens),
		attribute.Int64("ai.tokens.output", tokenUsage.OutputTokens),
		attribute.Int64("ai.tokens.total", tokenUsage.TotalTokens),
	)

	output, err = parse(raw)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return output, tokenUsage, err
	}

	span.SetAttributes(attribute.Bool("success", true))
	return output, tokenUsage, nil
}

// ExtractProfile implements AIProvider for CV and job posting extraction
func (g *GeminiProvider) ExtractProfile(ctx context.Context, input types.ExtractProfileInput) (types.StructuredProfile, *TokenUsage, error) {
	if strings.TrimSpace(input.Text) == "" {
		return types.StructuredProfile{}, nil, appErrors.NewValidationError(appErrors.ErrCodeInvalidRequest,
			"text to extract from is empty", nil)
	}

	op := g.operations[extractionOperation(input.Kind)]
	systemPrompt, userTemplate := promptsFor(op.name, op.config)

	output, tokenUsage, err := executeAIOperation(
		g,
		ctx,
		op,
		fmt.Sprintf(userTemplate, input.Text),
		systemPrompt,
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   profileResponseSchema(),
		},
		ParseStructuredProfile,
		attribute.String("input.kind", string(input.Kind)),
		attribute.Int("input.text_length", len(input.Text)),
	)
	if err != nil {
		return types.StructuredProfile{}, tokenUsage, err
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.Int("output.competences", len(output.Competences)),
			attribute.Int("output.experiences", len(output.Experiences)),
		)
	}

	return output, tokenUsage, nil
}

// ExtractPersonalInfo implements AIProvider for contact details extraction
func (g *GeminiProvider) ExtractPersonalInfo(ctx context.Context, cvText string) (types.PersonalInfo, *TokenUsage, error) {
	if strings.TrimSpace(cvText) == "" {
		return types.PersonalInfo{}, nil, appErrors.NewValidationError(appErrors.ErrCodeInvalidRequest,
			"CV text is empty", nil)
	}

	op := g.operations[config.OpPersonalInfo]
	systemPrompt, userTemplate := promptsFor(op.name, op.config)

	output, tokenUsage, err := executeAIOperation(
		g,
		ctx,
		op,
		fmt.Sprintf(userTemplate, cvText),
		systemPrompt,
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   personalInfoResponseSchema(),
		},
		ParsePersonalInfo,
		attribute.Int("input.text_length", len(cvText)),
	)
	if err != nil {
		return types.PersonalInfo{}, tokenUsage, err
	}
	return output, tokenUsage, nil
}

// GenerateCoverLetter implements AIProvider for cover letter writing
func (g *GeminiProvider) GenerateCoverLetter(ctx context.Context, req CoverLetterRequest) (string, *TokenUsage, error) {
	op := g.operations[config.OpCoverLetter]
	systemPrompt, userTemplate := promptsFor(op.name, op.config)

	c := req.Candidate
	userPrompt := fmt.Sprintf(userTemplate, c.NomPrenom, c.Email, c.Telephone, c.Adresse, req.Date, req.CVText, req.JobText)

	return executeAIOperation(
		g,
		ctx,
		op,
		userPrompt,
		systemPrompt,
		&genai.GenerateContentConfig{},
		func(raw string) (string, error) {
			letter := strings.TrimSpace(raw)
			if letter == "" {
				return "", appErrors.NewSchemaParseError("model returned an empty letter", raw, nil)
			}
			return letter, nil
		},
		attribute.Int("input.cv_length", len(req.CVText)),
		attribute.Int("input.job_length", len(req.JobText)),
	)
}

// OptimizeCV implements AIProvider for rewriting a CV against a job posting
func (g *GeminiProvider) OptimizeCV(ctx context.Context, input types.OptimizeCVInput) (string, *TokenUsage, error) {
	if strings.TrimSpace(input.CVText) == "" || strings.TrimSpace(input.JobText) == "" {
		return "", nil, appErrors.NewValidationError(appErrors.ErrCodeInvalidRequest,
			"both the CV and the job posting are required", nil)
	}

	op := g.operations[config.OpOptimizeCV]
	systemPrompt, userTemplate := promptsFor(op.name, op.config)

	return executeAIOperation(
		g,
		ctx,
		op,
		fmt.Sprintf(userTemplate, input.CVText, input.JobText),
		systemPrompt,
		&genai.GenerateContentConfig{},
		func(raw string) (string, error) {
			cv := strings.TrimSpace(raw)
			if cv == "" {
				return "", appErrors.NewSchemaParseError("model returned an empty CV", raw, nil)
			}
			return cv, nil
		},
		attribute.Int("input.cv_length", len(input.CVText)),
		attribute.Int("input.job_length", len(input.JobText)),
	)
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (g *GeminiProvider) GetCircuitBreakerStats() map[string]any {
	stats := make(map[string]any, len(g.operations)+2)
	healthy := g.modelBreaker.IsHealthy()
	for name, op := range g.operations {
		stats[string(name)] = op.circuitBreaker.GetStats()
		healthy = healthy && op.circuitBreaker.IsHealthy()
	}
	stats["model_operations"] = g.modelBreaker.GetStats()
	stats["overall_healthy"] = healthy
	return stats
}

// Close implements AIProvider interface
func (g *GeminiProvider) Close() error {
	// genai clients hold no connections outside of streaming
	return nil
}

// extractTokenUsage extracts token usage information from Gemini API response
func extractTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}

	usage := result.UsageMetadata
	return &TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}
