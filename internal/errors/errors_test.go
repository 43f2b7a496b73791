package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestAppErrorIsMatchesByCode(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"document not found", NewDocumentError(ErrCodeDocumentNotFound, "missing", nil), ErrDocumentNotFound, true},
		{"document empty vs not found", NewDocumentError(ErrCodeDocumentEmpty, "empty", nil), ErrDocumentNotFound, false},
		{"wrapped schema error", fmt.Errorf("extract: %w", NewSchemaParseError("bad", "{", nil)), ErrSchemaParse, true},
		{"service unavailable", NewServiceUnavailableError("embedding", 503, "down", nil), ErrServiceUnavailable, true},
		{"undefined similarity", NewUndefinedSimilarityError("zero vector"), ErrUndefinedSimilarity, true},
		{"plain error", stderrors.New("boom"), ErrServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stderrors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRawOutput(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewSchemaParseError("invalid json", "not json", nil))

	raw, ok := RawOutput(err)
	if !ok {
		t.Fatal("expected raw output to be present")
	}
	if raw != "not json" {
		t.Errorf("RawOutput() = %q, want %q", raw, "not json")
	}

	if _, ok := RawOutput(NewValidationError(ErrCodeInvalidRequest, "bad", nil)); ok {
		t.Error("validation error should not carry raw output")
	}
}

func TestUpstreamStatus(t *testing.T) {
	err := NewServiceUnavailableError("huggingface", 503, "model loading", nil)

	status, ok := UpstreamStatus(err)
	if !ok || status != 503 {
		t.Errorf("UpstreamStatus() = %d, %v; want 503, true", status, ok)
	}
	if !HasType(err, ErrorTypeService) {
		t.Error("expected service error type")
	}
}

func TestLoggerLogErrorIncludesContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, slog.LevelDebug)

	raw := strings.Repeat("x", 500)
	logger.LogError(NewSchemaParseError("invalid", raw, nil), "extraction failed", "operation", "extract_cv")

	out := buf.String()
	for _, want := range []string{`"error_code":"SCHEMA_PARSE_FAILED"`, `"operation":"extract_cv"`, `"raw_output"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
	if strings.Contains(out, raw) {
		t.Error("raw output should be truncated in logs")
	}
}

func TestNewLoggerInvalidLevel(t *testing.T) {
	if _, err := New("verbose"); err == nil {
		t.Error("expected error for invalid log level")
	}
	if _, err := New("debug"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
