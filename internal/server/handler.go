package server

import (
	"context"
	"net/http"
	"strings"

	"cvmatch/internal/ai"
	"cvmatch/internal/errors"
	"cvmatch/internal/matching"
	"cvmatch/internal/observability"
	"cvmatch/internal/types"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// trackedExtractor instruments every extraction made by the matching engine
type trackedExtractor struct {
	svc ProfileService
	om  *observability.ObservabilityManager
}

func (t trackedExtractor) ExtractProfile(ctx context.Context, text string, kind types.ProfileKind) (types.StructuredProfile, *ai.TokenUsage, error) {
	var profile types.StructuredProfile
	var usage *ai.TokenUsage
	metrics := t.om.GetMetrics()
	err := metrics.TrackAIOperationWithTokens(ctx, "extract_"+string(kind), func(ctx context.Context) *observability.AIOperationResult {
		var aiErr error
		profile, usage, aiErr = t.svc.ExtractProfile(ctx, text, kind)
		return &observability.AIOperationResult{Error: aiErr, TokenUsage: usage}
	}, t.om)
	metrics.RecordBusinessMetric(ctx, "profile_extracted", err == nil, t.om,
		attribute.String("kind", string(kind)))
	return profile, usage, err
}

// failSpan marks the span failed and writes the error response
func failSpan(w http.ResponseWriter, r *http.Request, span oteltrace.Span, title string, err error) {
	span.RecordError(err)
	if appErr, ok := errors.AsAppError(err); ok {
		span.SetAttributes(attribute.String("error.type", string(appErr.Type)))
	}
	writeAppError(w, r, title, err)
}

func (s *Server) requireAI(w http.ResponseWriter, r *http.Request, span oteltrace.Span) bool {
	if s.deps.AI != nil {
		return true
	}
	failSpan(w, r, span, "AI service unavailable",
		errors.NewServiceUnavailableError("ai", 0, "AI service is not configured", nil))
	return false
}

// createExtractHandler extracts a structured profile from CV or job text
func (s *Server) createExtractHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := om.Tracer("cvmatch.api").Start(r.Context(), "api.extract")
		defer span.End()

		var req ExtractRequest
		if err := parseJSONRequest(r, &req); err != nil {
			failSpan(w, r, span, "Invalid request body", err)
			return
		}
		if req.Kind == "" {
			req.Kind = string(types.KindCV)
		}
		kind, err := types.ParseProfileKind(req.Kind)
		if err != nil {
			failSpan(w, r, span, "Invalid kind",
				errors.NewValidationError(errors.ErrCodeInvalidRequest, err.Error(), err))
			return
		}
		if !s.requireAI(w, r, span) {
			return
		}

		span.SetAttributes(
			attribute.Int("request.text_length", len(req.Text)),
			attribute.String("operation", "extract"),
			attribute.String("profile.kind", string(kind)),
		)

		profile, _, err := trackedExtractor{svc: s.deps.AI, om: om}.ExtractProfile(ctx, req.Text, kind)
		if err != nil {
			failSpan(w, r, span, "Failed to extract profile", err)
			return
		}

		span.SetAttributes(
			attribute.Bool("success", true),
			attribute.Int("profile.competences", len(profile.Competences)),
		)
		writeJSON(w, http.StatusOK, profile)
	}
}

// createMatchHandler scores a CV against a job posting
func (s *Server) createMatchHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := om.Tracer("cvmatch.api").Start(r.Context(), "api.match")
		defer span.End()

		var req MatchRequest
		if err := parseJSONRequest(r, &req); err != nil {
			failSpan(w, r, span, "Invalid request body", err)
			return
		}
		if s.deps.Scorer == nil {
			failSpan(w, r, span, "Similarity service unavailable",
				errors.NewServiceUnavailableError("embedding", 0, "similarity service is not configured", nil))
			return
		}

		if req.JobURL != "" {
			text, err := s.fetchJobText(ctx, req.JobURL)
			if err != nil {
				failSpan(w, r, span, "Failed to fetch job posting", err)
				return
			}
			req.JobText = text
		}
		if (req.CVProfile == nil || req.JobProfile == nil) && !s.requireAI(w, r, span) {
			return
		}

		span.SetAttributes(
			attribute.String("operation", "match"),
			attribute.Bool("request.cv_profile", req.CVProfile != nil),
			attribute.Bool("request.job_profile", req.JobProfile != nil),
			attribute.Bool("request.job_url", req.JobURL != ""),
		)

		extractor := trackedExtractor{svc: s.deps.AI, om: om}
		engine := matching.NewEngine(extractor,
			matching.NewMatcher(s.deps.Scorer, s.parallel, s.Logger),
			s.threshold, s.deps.Tracker, s.Logger)

		metrics := om.GetMetrics()
		result, err := s.runMatch(ctx, engine, extractor, req)
		if err != nil {
			metrics.RecordBusinessMetric(ctx, "match", false, om)
			failSpan(w, r, span, "Failed to match profiles", err)
			return
		}

		recommendation := string(result.Report.Recommendation)
		metrics.RecordBusinessMetric(ctx, "match", true, om,
			attribute.String("recommendation", recommendation))
		metrics.RecordMatchScore(ctx, result.Report.Overall, recommendation)

		span.SetAttributes(
			attribute.Bool("success", true),
			attribute.Float64("match.overall", result.Report.Overall),
			attribute.String("match.recommendation", recommendation),
		)
		writeJSON(w, http.StatusOK, result)
	}
}

// runMatch extracts whichever profiles the request did not provide, then matches
func (s *Server) runMatch(ctx context.Context, engine *matching.Engine, extractor matching.ProfileExtractor, req MatchRequest) (types.MatchResult, error) {
	if req.CVProfile == nil && req.JobProfile == nil {
		return engine.MatchTexts(ctx, req.CVText, req.JobText)
	}

	cv, job := req.CVProfile, req.JobProfile
	if cv == nil {
		p, _, err := extractor.ExtractProfile(ctx, req.CVText, types.KindCV)
		if err != nil {
			return types.MatchResult{}, err
		}
		cv = &p
	}
	if job == nil {
		p, _, err := extractor.ExtractProfile(ctx, req.JobText, types.KindJobPosting)
		if err != nil {
			return types.MatchResult{}, err
		}
		job = &p
	}
	return engine.MatchProfiles(ctx, *cv, *job)
}

// fetchJobText downloads a job posting for requests that give a URL
func (s *Server) fetchJobText(ctx context.Context, rawURL string) (string, error) {
	if s.deps.Fetcher == nil {
		return "", errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"job URL fetching is not enabled on this server", nil)
	}
	posting, err := s.deps.Fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return posting.Text, nil
}

// createSimilarityHandler scores two free texts
func (s *Server) createSimilarityHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := om.Tracer("cvmatch.api").Start(r.Context(), "api.similarity")
		defer span.End()

		var req SimilarityRequest
		if err := parseJSONRequest(r, &req); err != nil {
			failSpan(w, r, span, "Invalid request body", err)
			return
		}
		if s.deps.Scorer == nil {
			failSpan(w, r, span, "Similarity service unavailable",
				errors.NewServiceUnavailableError("embedding", 0, "similarity service is not configured", nil))
			return
		}

		score, err := s.deps.Scorer.Similarity(ctx, req.TextA, req.TextB)
		if err != nil {
			failSpan(w, r, span, "Failed to compute similarity", err)
			return
		}

		span.SetAttributes(attribute.Float64("similarity.score", score))
		writeJSON(w, http.StatusOK, types.SimilarityResult{Score: score})
	}
}

// createPersonalInfoHandler extracts the contact block of a CV
func (s *Server) createPersonalInfoHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := om.Tracer("cvmatch.api").Start(r.Context(), "api.personal_info")
		defer span.End()

		var req PersonalInfoRequest
		if err := parseJSONRequest(r, &req); err != nil {
			failSpan(w, r, span, "Invalid request body", err)
			return
		}
		if !s.requireAI(w, r, span) {
			return
		}

		var info types.PersonalInfo
		err := om.GetMetrics().TrackAIOperationWithTokens(ctx, "personal_info", func(ctx context.Context) *observability.AIOperationResult {
			out, usage, aiErr := s.deps.AI.ExtractPersonalInfo(ctx, req.CVText)
			info = out
			return &observability.AIOperationResult{Error: aiErr, TokenUsage: usage}
		}, om)
		if err != nil {
			failSpan(w, r, span, "Failed to extract personal information", err)
			return
		}

		writeJSON(w, http.StatusOK, info)
	}
}

// createCoverLetterHandler writes a cover letter for a CV and a job posting
func (s *Server) createCoverLetterHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := om.Tracer("cvmatch.api").Start(r.Context(), "api.cover_letter")
		defer span.End()

		var req CoverLetterRequest
		if err := parseJSONRequest(r, &req); err != nil {
			failSpan(w, r, span, "Invalid request body", err)
			return
		}
		jobText, ok := s.requestJobText(ctx, w, r, span, req.JobText, req.JobURL)
		if !ok {
			return
		}
		req.JobText = jobText
		if !s.requireAI(w, r, span) {
			return
		}

		metrics := om.GetMetrics()
		var letter types.CoverLetter
		err := metrics.TrackAIOperationWithTokens(ctx, "cover_letter", func(ctx context.Context) *observability.AIOperationResult {
			out, usage, aiErr := s.deps.AI.GenerateCoverLetter(ctx, types.CoverLetterInput{
				CVText:  req.CVText,
				JobText: req.JobText,
			})
			letter = out
			return &observability.AIOperationResult{Error: aiErr, TokenUsage: usage}
		}, om)
		metrics.RecordBusinessMetric(ctx, "cover_letter", err == nil, om)
		if err != nil {
			failSpan(w, r, span, "Failed to generate cover letter", err)
			return
		}

		span.SetAttributes(attribute.Int("response.letter_length", len(letter.Letter)))
		writeJSON(w, http.StatusOK, letter)
	}
}

// createOptimizeCVHandler rewrites a CV to fit a job posting
func (s *Server) createOptimizeCVHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := om.Tracer("cvmatch.api").Start(r.Context(), "api.optimize_cv")
		defer span.End()

		var req OptimizeCVRequest
		if err := parseJSONRequest(r, &req); err != nil {
			failSpan(w, r, span, "Invalid request body", err)
			return
		}
		jobText, ok := s.requestJobText(ctx, w, r, span, req.JobText, req.JobURL)
		if !ok {
			return
		}
		if !s.requireAI(w, r, span) {
			return
		}

		metrics := om.GetMetrics()
		var optimized types.OptimizedCV
		err := metrics.TrackAIOperationWithTokens(ctx, "optimize_cv", func(ctx context.Context) *observability.AIOperationResult {
			out, usage, aiErr := s.deps.AI.OptimizeCV(ctx, types.OptimizeCVInput{
				CVText:  req.CVText,
				JobText: jobText,
			})
			optimized = out
			return &observability.AIOperationResult{Error: aiErr, TokenUsage: usage}
		}, om)
		metrics.RecordBusinessMetric(ctx, "cv_optimized", err == nil, om)
		if err != nil {
			failSpan(w, r, span, "Failed to optimize CV", err)
			return
		}

		span.SetAttributes(attribute.Int("response.cv_length", len(optimized.CV)))
		writeJSON(w, http.StatusOK, optimized)
	}
}

// requestJobText returns the posting text of a request, downloading it when
// a URL was given. It writes the error response itself and reports false.
func (s *Server) requestJobText(ctx context.Context, w http.ResponseWriter, r *http.Request, span oteltrace.Span, text, url string) (string, bool) {
	if url != "" {
		fetched, err := s.fetchJobText(ctx, url)
		if err != nil {
			failSpan(w, r, span, "Failed to fetch job posting", err)
			return "", false
		}
		text = fetched
	}
	if strings.TrimSpace(text) == "" {
		failSpan(w, r, span, "Invalid request body",
			errors.NewValidationError(errors.ErrCodeInvalidRequest, "jobText is required", nil))
		return "", false
	}
	return text, true
}

// impactHandler returns the cumulative impact of model calls
func (s *Server) impactHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Tracker.Metrics())
}

// impactResetHandler zeroes the impact totals
func (s *Server) impactResetHandler(w http.ResponseWriter, r *http.Request) {
	s.deps.Tracker.Reset()
	s.Logger.Info("Impact totals reset", "request_id", requestIDFromContext(r.Context()))
	writeJSON(w, http.StatusOK, s.deps.Tracker.Metrics())
}

// createRateLimitMiddleware adds observability to rate limiting
func (s *Server) createRateLimitMiddleware(om *observability.ObservabilityManager) func(http.HandlerFunc) http.HandlerFunc {
	originalMiddleware := s.rateLimitMiddleware()

	return func(next http.HandlerFunc) http.HandlerFunc {
		limited := originalMiddleware(next)
		return func(w http.ResponseWriter, r *http.Request) {
			wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
			limited(wrapper, r)

			if wrapper.statusCode == http.StatusTooManyRequests {
				om.GetMetrics().RecordBusinessMetric(r.Context(), "rate_limit_hit", true, om,
					attribute.String("endpoint", r.URL.Path),
					attribute.String("method", r.Method))
			}
		}
	}
}

// responseWrapper wraps http.ResponseWriter to capture status code
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
