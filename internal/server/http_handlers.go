package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"cvmatch/internal/errors"
	"cvmatch/internal/similarity"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

// getValidator returns the shared request validator. Field names in
// errors use the JSON spelling of the request.
func getValidator() *validator.Validate {
	vldOnce.Do(func() {
		vld = validator.New()
		_ = vld.RegisterValidation("notblank", validators.NotBlank)
		vld.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return vld
}

// getHealthCheckTimeout returns the configured model check timeout
func (s *Server) getHealthCheckTimeout() time.Duration {
	if s.AppConfig != nil {
		if t := s.AppConfig.Observability.HealthCheck.AIModelCheckTimeout; t > 0 {
			return t
		}
		if t := s.AppConfig.Observability.HealthCheck.Timeout; t > 0 {
			return t
		}
	}
	return 5 * time.Second
}

// healthHandler reports model availability and circuit breaker states
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":  "healthy",
		"service": "cvmatch",
		"version": s.Version,
	}

	healthy := true
	if s.deps.AI == nil {
		healthy = false
		response["ai_model"] = map[string]any{"available": false, "error": "AI service not configured"}
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), s.getHealthCheckTimeout())
		defer cancel()

		modelInfo := s.deps.AI.GetModelInfo(ctx)
		response["ai_model"] = modelInfo
		response["circuit_breakers"] = s.deps.AI.GetCircuitBreakerStats()
		if modelInfo == nil || !modelInfo.Available {
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "cvmatch",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"api_keys":               s.apiKeyCount(),
		},
		"matching": map[string]any{
			"threshold": s.threshold,
			"parallel":  s.parallel,
		},
		"impact": map[string]any{
			"calls":   s.deps.Tracker.Calls(),
			"metrics": s.deps.Tracker.Metrics(),
		},
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"window":           s.RateLimit.Window.String(),
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	cacheStats := map[string]any{"enabled": s.deps.Cache != nil}
	if mc, ok := s.deps.Cache.(*similarity.MemoryCache); ok {
		cacheStats["entries"] = mc.Len()
	}
	response["embedding_cache"] = cacheStats

	if s.deps.AI != nil {
		response["circuit_breakers"] = s.deps.AI.GetCircuitBreakerStats()
	}
	if s.keyWatcher != nil {
		response["api_key_watcher"] = s.keyWatcher.Status()
	}

	writeJSON(w, http.StatusOK, response)
}

// parseJSONRequest decodes the JSON body into v and validates it
func parseJSONRequest(r *http.Request, v any) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"content-type must be application/json", nil)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return errors.NewValidationError(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("request body too large (limit is %d bytes)", maxBytesErr.Limit), err)
		}
		return errors.NewIOError(errors.ErrCodeFileNotReadable, "failed to read request body", err)
	}
	defer func() {
		if err := r.Body.Close(); err != nil {
			log.Printf("Failed to close request body: %v", err)
		}
	}()

	if err := json.Unmarshal(body, v); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "failed to parse JSON", err)
	}

	if err := getValidator().Struct(v); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, describeValidation(err), err)
	}
	return nil
}

// describeValidation turns validator errors into one readable message
func describeValidation(err error) string {
	var ve validator.ValidationErrors
	if !stderrors.As(err, &ve) || len(ve) == 0 {
		return "invalid request"
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		switch fe.Tag() {
		case "required", "notblank":
			parts = append(parts, fe.Field()+" is required")
		case "required_without", "required_without_all":
			parts = append(parts, fmt.Sprintf("%s is required when %s is absent", fe.Field(), fe.Param()))
		case "excluded_with":
			parts = append(parts, fmt.Sprintf("%s cannot be combined with %s", fe.Field(), fe.Param()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		case "url":
			parts = append(parts, fe.Field()+" must be a valid URL")
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// statusForError maps an error to its HTTP status
func statusForError(err error) int {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch appErr.Type {
	case errors.ErrorTypeDocument, errors.ErrorTypeSimilarity:
		return http.StatusUnprocessableEntity
	case errors.ErrorTypeSchema:
		return http.StatusBadGateway
	case errors.ErrorTypeService:
		return http.StatusServiceUnavailable
	case errors.ErrorTypeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError writes err as a standardized error response
func writeAppError(w http.ResponseWriter, r *http.Request, title string, err error) {
	response := ErrorResponse{
		Error:     title,
		Message:   err.Error(),
		RequestID: requestIDFromContext(r.Context()),
	}
	if appErr, ok := errors.AsAppError(err); ok {
		response.Code = appErr.Code
		response.Message = appErr.Message
	}
	if raw, ok := errors.RawOutput(err); ok {
		response.RawOutput = raw
	}
	if status, ok := errors.UpstreamStatus(err); ok {
		response.UpstreamStatus = status
	}
	writeJSON(w, statusForError(err), response)
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, error, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   error,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
