package ai

import (
	"context"
	"fmt"
	"time"

	"cvmatch/internal/config"
	"cvmatch/internal/errors"
	"cvmatch/internal/impact"
	"cvmatch/internal/types"
)

// Service runs the model operations and reports the cost of every call
type Service struct {
	Provider  AIProvider // Exported for access from server package
	tracker   *impact.Tracker
	estimator *impact.Estimator
	logger    *errors.Logger
	now       func() time.Time
}

// NewService creates the AI service for cfg.AI.Provider. tracker may be nil.
func NewService(cfg *config.Config, tracker *impact.Tracker, logger *errors.Logger) (*Service, error) {
	var provider AIProvider
	var err error

	logger.Debug("Initializing AI service",
		"provider", cfg.AI.Provider,
		"model", cfg.AI.Model,
		"timeout", cfg.AI.Timeout,
		"max_retries", cfg.AI.MaxRetries,
		"use_system_prompts", cfg.AI.UseSystemPrompts)

	switch cfg.AI.Provider {
	case "gemini":
		if err := requireAPIKeys(cfg); err != nil {
			return nil, err
		}
		provider, err = NewGeminiProvider(cfg, logger)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported AI provider: %s", cfg.AI.Provider), nil)
	}
	if err != nil {
		return nil, errors.NewAIError(errors.ErrCodeAIServiceFailed,
			"Failed to create AI provider", err)
	}

	estimator := impact.NewEstimator(impact.Factors{
		EnergyPerKTokens: cfg.Impact.EnergyPerKTokens,
		CarbonIntensity:  cfg.Impact.CarbonIntensity,
	})
	return NewServiceWithProvider(provider, tracker, estimator, logger), nil
}

// requireAPIKeys fails when an operation has no key. Commands that never
// call a model do not build the service, so they run without one.
func requireAPIKeys(cfg *config.Config) error {
	for _, op := range config.Operations {
		if cfg.GetOperationConfig(op).APIKey == "" {
			return errors.NewConfigError(errors.ErrCodeMissingAPIKey,
				fmt.Sprintf("AI API key is required for %s (set CVMATCH_AI_APIKEY)", op), nil)
		}
	}
	return nil
}

// NewServiceWithProvider wraps an existing provider
func NewServiceWithProvider(provider AIProvider, tracker *impact.Tracker, estimator *impact.Estimator, logger *errors.Logger) *Service {
	return &Service{
		Provider:  provider,
		tracker:   tracker,
		estimator: estimator,
		logger:    logger,
		now:       time.Now,
	}
}

// record feeds the cost of one answered call to the impact tracker
func (s *Service) record(operation string, usage *TokenUsage) {
	if usage == nil {
		return
	}
	s.estimator.Record(s.tracker, usage)
	s.logger.Debug("Model call recorded",
		"operation", operation,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens)
}

// ExtractProfile converts CV or job posting text into a structured profile
func (s *Service) ExtractProfile(ctx context.Context, text string, kind types.ProfileKind) (types.StructuredProfile, *TokenUsage, error) {
	profile, usage, err := s.Provider.ExtractProfile(ctx, types.ExtractProfileInput{Text: text, Kind: kind})
	s.record("extract_"+string(kind), usage)
	if err != nil {
		s.logger.LogError(err, "Profile extraction failed", "kind", kind)
		return types.StructuredProfile{}, usage, err
	}
	return profile, usage, nil
}

// ExtractPersonalInfo reads the candidate's contact details from CV text
func (s *Service) ExtractPersonalInfo(ctx context.Context, cvText string) (types.PersonalInfo, *TokenUsage, error) {
	info, usage, err := s.Provider.ExtractPersonalInfo(ctx, cvText)
	s.record(string(config.OpPersonalInfo), usage)
	if err != nil {
		s.logger.LogError(err, "Personal information extraction failed")
		return types.PersonalInfo{}, usage, err
	}
	return info, usage, nil
}

// GenerateCoverLetter writes a French cover letter headed with the
// candidate's contact details and today's date
func (s *Service) GenerateCoverLetter(ctx context.Context, input types.CoverLetterInput) (types.CoverLetter, *TokenUsage, error) {
	info, infoUsage, err := s.ExtractPersonalInfo(ctx, input.CVText)
	if err != nil {
		return types.CoverLetter{}, infoUsage, err
	}

	date := FrenchDate(s.now())
	letter, letterUsage, err := s.Provider.GenerateCoverLetter(ctx, CoverLetterRequest{
		Candidate: info,
		Date:      date,
		CVText:    input.CVText,
		JobText:   input.JobText,
	})
	s.record(string(config.OpCoverLetter), letterUsage)
	usage := sumUsage(infoUsage, letterUsage)
	if err != nil {
		s.logger.LogError(err, "Cover letter generation failed")
		return types.CoverLetter{}, usage, err
	}

	return types.CoverLetter{Letter: letter, Candidate: info, Date: date}, usage, nil
}

// OptimizeCV rewrites the CV so it reads as close to the job posting as
// the candidate's real background allows
func (s *Service) OptimizeCV(ctx context.Context, input types.OptimizeCVInput) (types.OptimizedCV, *TokenUsage, error) {
	cv, usage, err := s.Provider.OptimizeCV(ctx, input)
	s.record(string(config.OpOptimizeCV), usage)
	if err != nil {
		s.logger.LogError(err, "CV optimisation failed")
		return types.OptimizedCV{}, usage, err
	}
	return types.OptimizedCV{CV: cv}, usage, nil
}

// Tracker returns the impact tracker calls are recorded on
func (s *Service) Tracker() *impact.Tracker {
	return s.tracker
}

// GetModelInfo returns information about the AI model for health checks
func (s *Service) GetModelInfo(ctx context.Context) *ModelInfo {
	return s.Provider.GetModelInfo(ctx)
}

// GetCircuitBreakerStats returns breaker statistics when the provider keeps any
func (s *Service) GetCircuitBreakerStats() map[string]any {
	if p, ok := s.Provider.(interface{ GetCircuitBreakerStats() map[string]any }); ok {
		return p.GetCircuitBreakerStats()
	}
	return map[string]any{}
}

func (s *Service) Close() error {
	return s.Provider.Close()
}

func sumUsage(a, b *TokenUsage) *TokenUsage {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return &TokenUsage{
		InputTokens:  a.InputTokens + b.InputTokens,
		OutputTokens: a.OutputTokens + b.OutputTokens,
		TotalTokens:  a.TotalTokens + b.TotalTokens,
	}
}
