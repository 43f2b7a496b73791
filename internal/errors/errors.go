package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeAI         ErrorType = "ai"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"

	// Matching pipeline failures
	ErrorTypeDocument   ErrorType = "document"
	ErrorTypeSchema     ErrorType = "schema"
	ErrorTypeService    ErrorType = "service"
	ErrorTypeSimilarity ErrorType = "similarity"
)

// Context keys carried by pipeline errors
const (
	ContextRawOutput      = "raw_output"
	ContextUpstreamStatus = "upstream_status"
	ContextService        = "service"
	ContextPath           = "path"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"cause,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// newAppError is an unexported helper to create AppError instances
func newAppError(typ ErrorType, code, message string, cause error) *AppError {
	return &AppError{
		Type:    typ,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Error constructors for different types
func NewValidationError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeValidation, code, message, cause)
}

func NewIOError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeIO, code, message, cause)
}

func NewAIError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeAI, code, message, cause)
}

func NewNetworkError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeNetwork, code, message, cause)
}

func NewConfigError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeConfig, code, message, cause)
}

func NewInternalError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, code, message, cause)
}

// NewDocumentError reports a document that could not be turned into text.
func NewDocumentError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeDocument, code, message, cause)
}

// NewSchemaParseError keeps the offending model output so callers can inspect it.
func NewSchemaParseError(message, raw string, cause error) *AppError {
	return newAppError(ErrorTypeSchema, ErrCodeSchemaParseFailed, message, cause).
		WithContext(ContextRawOutput, raw)
}

// NewServiceUnavailableError wraps a failed call to a remote model service.
// status is the upstream HTTP status, or 0 when none was received.
func NewServiceUnavailableError(service string, status int, message string, cause error) *AppError {
	return newAppError(ErrorTypeService, ErrCodeServiceUnavailable, message, cause).
		WithContext(ContextService, service).
		WithContext(ContextUpstreamStatus, status)
}

func NewUndefinedSimilarityError(message string) *AppError {
	return newAppError(ErrorTypeSimilarity, ErrCodeSimilarityUndefined, message, nil)
}

// WithContext adds context to an error
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// AsAppError finds the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasType reports whether err carries an AppError of the given type.
func HasType(err error, typ ErrorType) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Type == typ
}

// RawOutput returns the model output attached to a schema parse error.
func RawOutput(err error) (string, bool) {
	appErr, ok := AsAppError(err)
	if !ok || appErr.Code != ErrCodeSchemaParseFailed {
		return "", false
	}
	raw, ok := appErr.Context[ContextRawOutput].(string)
	return raw, ok
}

// UpstreamStatus returns the HTTP status a remote service answered with.
func UpstreamStatus(err error) (int, bool) {
	appErr, ok := AsAppError(err)
	if !ok || appErr.Code != ErrCodeServiceUnavailable {
		return 0, false
	}
	status, ok := appErr.Context[ContextUpstreamStatus].(int)
	return status, ok
}

// Logger wraps slog with application-specific methods
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a new structured logger writing to stderr
func NewLogger(level slog.Level) *Logger {
	return NewLoggerWithWriter(os.Stderr, level)
}

// NewLoggerWithWriter creates a JSON logger on w
func NewLoggerWithWriter(w io.Writer, level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewJSONHandler(w, opts)
	logger := slog.New(handler)

	return &Logger{logger: logger}
}

// NewNopLogger discards everything. Used by tests.
func NewNopLogger() *Logger {
	return NewLoggerWithWriter(io.Discard, slog.LevelError+1)
}

// LogError logs an application error with appropriate level and context
func (l *Logger) LogError(err error, message string, args ...any) {
	if appErr, ok := AsAppError(err); ok {
		logArgs := []any{
			"error_type", appErr.Type,
			"error_code", appErr.Code,
			"error_message", appErr.Message,
		}

		for key, value := range appErr.Context {
			// raw model output can be large
			if key == ContextRawOutput {
				if s, ok := value.(string); ok && len(s) > 200 {
					value = s[:200] + "..."
				}
			}
			logArgs = append(logArgs, key, value)
		}
		if appErr.Cause != nil {
			logArgs = append(logArgs, "cause", appErr.Cause.Error())
		}

		logArgs = append(logArgs, args...)

		l.logger.Error(message, logArgs...)
	} else {
		logArgs := append([]any{"error", err.Error()}, args...)
		l.logger.Error(message, logArgs...)
	}
}

func (l *Logger) Info(message string, args ...any) {
	l.logger.Info(message, args...)
}

func (l *Logger) Debug(message string, args ...any) {
	l.logger.Debug(message, args...)
}

func (l *Logger) Warn(message string, args ...any) {
	l.logger.Warn(message, args...)
}

// With returns a logger that always adds args
func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...)}
}

// New creates a new logger instance
func New(level string) (*Logger, error) {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	return NewLogger(slogLevel), nil
}

// Common error codes
const (
	ErrCodeFileNotFound    = "FILE_NOT_FOUND"
	ErrCodeFileNotReadable = "FILE_NOT_READABLE"
	ErrCodeInvalidFormat   = "INVALID_FORMAT"
	ErrCodeAIServiceFailed = "AI_SERVICE_FAILED"
	ErrCodeAITimeout       = "AI_TIMEOUT"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeMissingAPIKey   = "MISSING_API_KEY"
	ErrCodeNetworkTimeout  = "NETWORK_TIMEOUT"
	ErrCodeInvalidConfig   = "INVALID_CONFIG"
	ErrCodeInternal        = "INTERNAL_ERROR"

	ErrCodeDocumentNotFound         = "DOCUMENT_NOT_FOUND"
	ErrCodeDocumentEmpty            = "DOCUMENT_EMPTY"
	ErrCodeDocumentExtractionFailed = "DOCUMENT_EXTRACTION_FAILED"
	ErrCodeSchemaParseFailed        = "SCHEMA_PARSE_FAILED"
	ErrCodeServiceUnavailable       = "SERVICE_UNAVAILABLE"
	ErrCodeSimilarityUndefined      = "SIMILARITY_UNDEFINED"
)

// Sentinels for errors.Is comparisons. Matching is by code only.
var (
	ErrDocumentNotFound         = &AppError{Type: ErrorTypeDocument, Code: ErrCodeDocumentNotFound}
	ErrDocumentEmpty            = &AppError{Type: ErrorTypeDocument, Code: ErrCodeDocumentEmpty}
	ErrDocumentExtractionFailed = &AppError{Type: ErrorTypeDocument, Code: ErrCodeDocumentExtractionFailed}
	ErrSchemaParse              = &AppError{Type: ErrorTypeSchema, Code: ErrCodeSchemaParseFailed}
	ErrServiceUnavailable       = &AppError{Type: ErrorTypeService, Code: ErrCodeServiceUnavailable}
	ErrUndefinedSimilarity      = &AppError{Type: ErrorTypeSimilarity, Code: ErrCodeSimilarityUndefined}
)
