package ai

import (
	"context"

	"cvmatch/internal/impact"
	"cvmatch/internal/types"

	"google.golang.org/genai"
)

// TokenUsage represents token usage information from AI responses
type TokenUsage = impact.Usage

// AIProvider interface for different AI implementations.
// Token usage is returned whenever the model answered, even if the answer was rejected.
type AIProvider interface {
	ExtractProfile(ctx context.Context, input types.ExtractProfileInput) (types.StructuredProfile, *TokenUsage, error)
	ExtractPersonalInfo(ctx context.Context, cvText string) (types.PersonalInfo, *TokenUsage, error)
	GenerateCoverLetter(ctx context.Context, req CoverLetterRequest) (string, *TokenUsage, error)
	OptimizeCV(ctx context.Context, input types.OptimizeCVInput) (string, *TokenUsage, error)
	GetModelInfo(ctx context.Context) *ModelInfo
	Close() error
}

// CoverLetterRequest carries everything the letter prompt is filled with
type CoverLetterRequest struct {
	Candidate types.PersonalInfo
	Date      string
	CVText    string
	JobText   string
}

// modelsAPI is the part of genai.Models used for generation
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	Get(ctx context.Context, model string, config *genai.GetModelConfig) (*genai.Model, error)
}

// embedAPI is the part of genai.Models used for embeddings
type embedAPI interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}
