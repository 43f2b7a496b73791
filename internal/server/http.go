package server

import (
	"context"
	"sync"
	"time"

	"cvmatch/internal/ai"
	"cvmatch/internal/config"
	cvmatchErrors "cvmatch/internal/errors"
	"cvmatch/internal/impact"
	"cvmatch/internal/jobsource"
	"cvmatch/internal/matching"
	"cvmatch/internal/similarity"
	"cvmatch/internal/types"
)

// ExtractRequest represents the request body for the extract endpoint
type ExtractRequest struct {
	Text string `json:"text" validate:"required,notblank"`
	Kind string `json:"kind" validate:"omitempty,oneof=cv resume job offer job-posting"`
}

// MatchRequest represents the request body for the match endpoint.
// The CV is given as text or as a profile, the job as text, profile or URL.
type MatchRequest struct {
	CVText     string                   `json:"cvText" validate:"required_without=CVProfile,excluded_with=CVProfile"`
	CVProfile  *types.StructuredProfile `json:"cvProfile"`
	JobText    string                   `json:"jobText" validate:"required_without_all=JobProfile JobURL,excluded_with=JobProfile JobURL"`
	JobProfile *types.StructuredProfile `json:"jobProfile" validate:"excluded_with=JobURL"`
	JobURL     string                   `json:"jobURL" validate:"omitempty,url"`
}

// SimilarityRequest represents the request body for the similarity endpoint
type SimilarityRequest struct {
	TextA string `json:"textA" validate:"required"`
	TextB string `json:"textB" validate:"required"`
}

// PersonalInfoRequest represents the request body for the personal-info endpoint
type PersonalInfoRequest struct {
	CVText string `json:"cvText" validate:"required,notblank"`
}

// CoverLetterRequest represents the request body for the cover-letter endpoint
type CoverLetterRequest struct {
	CVText  string `json:"cvText" validate:"required,notblank"`
	JobText string `json:"jobText" validate:"required_without=JobURL,excluded_with=JobURL"`
	JobURL  string `json:"jobURL" validate:"omitempty,url"`
}

// OptimizeCVRequest represents the request body for the optimize-cv endpoint
type OptimizeCVRequest struct {
	CVText  string `json:"cvText" validate:"required,notblank"`
	JobText string `json:"jobText" validate:"required_without=JobURL,excluded_with=JobURL"`
	JobURL  string `json:"jobURL" validate:"omitempty,url"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error          string `json:"error"`
	Message        string `json:"message,omitempty"`
	Code           string `json:"code,omitempty"`
	RawOutput      string `json:"raw_output,omitempty"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
}

// ProfileService is the model-backed part of the API
type ProfileService interface {
	ExtractProfile(ctx context.Context, text string, kind types.ProfileKind) (types.StructuredProfile, *ai.TokenUsage, error)
	ExtractPersonalInfo(ctx context.Context, cvText string) (types.PersonalInfo, *ai.TokenUsage, error)
	GenerateCoverLetter(ctx context.Context, input types.CoverLetterInput) (types.CoverLetter, *ai.TokenUsage, error)
	OptimizeCV(ctx context.Context, input types.OptimizeCVInput) (types.OptimizedCV, *ai.TokenUsage, error)
	GetModelInfo(ctx context.Context) *ai.ModelInfo
	GetCircuitBreakerStats() map[string]any
}

// JobFetcher downloads a job posting as plain text
type JobFetcher interface {
	Fetch(ctx context.Context, rawURL string) (jobsource.Posting, error)
}

// Dependencies are the services the handlers call
type Dependencies struct {
	AI      ProfileService
	Scorer  matching.Scorer
	Fetcher JobFetcher
	Tracker *impact.Tracker
	Cache   similarity.Cache
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	// API Authentication, replaceable at runtime by the key watcher
	keysMu     sync.RWMutex
	APIKeys    map[string]bool
	keyWatcher *KeyWatcher

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Request size limit
	MaxRequestSize int64

	// Rate limiting
	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	deps      Dependencies
	threshold float64
	parallel  bool

	Logger *cvmatchErrors.Logger
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	APIKeys        []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	RateLimit      *config.RateLimitConfig
	Threshold      float64
	Parallel       bool
}

// ServerConfigFromApp derives the server settings from the application configuration
func ServerConfigFromApp(cfg *config.Config, version string) ServerConfig {
	return ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        version,
		APIKeys:        cfg.Server.APIKeys,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: cfg.App.MaxFileSize,
		RateLimit:      &cfg.Server.RateLimit,
		Threshold:      cfg.Matching.Threshold,
		Parallel:       cfg.Matching.Parallel,
	}
}

// NewServer creates a new Server instance from a ServerConfig struct
func NewServer(appCfg *config.Config, cfg ServerConfig, deps Dependencies, logger *cvmatchErrors.Logger) *Server {
	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(
			cfg.RateLimit.RequestsPerMin,
			cfg.RateLimit.Window,
			cfg.RateLimit.BurstCapacity,
			logger,
		)
	}

	if deps.Tracker == nil {
		deps.Tracker = impact.NewTracker(nil)
	}

	return &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		APIKeys:        keySet(cfg.APIKeys),
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		deps:           deps,
		threshold:      cfg.Threshold,
		parallel:       cfg.Parallel,
		Logger:         logger,
	}
}

// keySet converts API keys to a map for O(1) lookup
func keySet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key != "" {
			set[key] = true
		}
	}
	return set
}

// SetAPIKeys replaces the accepted API keys
func (s *Server) SetAPIKeys(keys []string) {
	set := keySet(keys)
	s.keysMu.Lock()
	s.APIKeys = set
	s.keysMu.Unlock()
}

func (s *Server) apiKeyCount() int {
	s.keysMu.RLock()
	defer s.keysMu.RUnlock()
	return len(s.APIKeys)
}

func (s *Server) validAPIKey(key string) bool {
	s.keysMu.RLock()
	defer s.keysMu.RUnlock()
	return s.APIKeys[key]
}
