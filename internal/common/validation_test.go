package common

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cvmatch/internal/ai"
	"cvmatch/internal/errors"
	"cvmatch/internal/formatters"
	"cvmatch/internal/types"
)

var defaultFormats = []string{"json", "yaml", "text", "markdown"}

func TestValidateOutputFormat(t *testing.T) {
	tests := []struct {
		name             string
		format           string
		supportedFormats []string
		expectedError    string
	}{
		{name: "json", format: "json", supportedFormats: defaultFormats},
		{name: "yaml", format: "yaml", supportedFormats: defaultFormats},
		{name: "markdown", format: "markdown", supportedFormats: defaultFormats},
		{
			name:             "xml is not supported",
			format:           "xml",
			supportedFormats: defaultFormats,
			expectedError:    "INVALID_FORMAT: unsupported output format 'xml', expected one of: json, yaml, text, markdown",
		},
		{
			name:             "case sensitive",
			format:           "JSON",
			supportedFormats: defaultFormats,
			expectedError:    "INVALID_FORMAT: unsupported output format 'JSON', expected one of: json, yaml, text, markdown",
		},
		{
			name:             "empty format",
			format:           "",
			supportedFormats: []string{"json"},
			expectedError:    "INVALID_FORMAT: unsupported output format '', expected one of: json",
		},
		{name: "no restriction", format: "xml", supportedFormats: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputFormat(tt.format, tt.supportedFormats)

			if tt.expectedError == "" {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error but got none")
			}
			if err.Error() != tt.expectedError {
				t.Errorf("Expected error '%s', got '%s'", tt.expectedError, err.Error())
			}
		})
	}
}

func newBufferedHandler(buf *bytes.Buffer) *OutputHandler {
	logger := errors.NewNopLogger()
	return &OutputHandler{
		fileProcessor: NewFileProcessor(0, logger),
		registry:      formatters.GlobalRegistry,
		stdout:        buf,
		logger:        logger,
	}
}

func TestHandleOutputWritesFile(t *testing.T) {
	var buf bytes.Buffer
	out := filepath.Join(t.TempDir(), "out", "score.txt")

	err := newBufferedHandler(&buf).HandleOutput(types.SimilarityResult{Score: 0.25},
		CommandConfig{OutputFile: out, OutputFormat: "text"})
	if err != nil {
		t.Fatalf("HandleOutput failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("nothing should be written to stdout, got %q", buf.String())
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("output file not written: %v", err)
	}
	if string(data) != "Similarity: 0.2500\n" {
		t.Errorf("unexpected file content %q", data)
	}
}

func TestHandleOutputUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := newBufferedHandler(&buf).HandleOutput(types.SimilarityResult{}, CommandConfig{OutputFormat: "xml"})
	if !errors.HasType(err, errors.ErrorTypeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestRunAICommand(t *testing.T) {
	dir := t.TempDir()
	cvPath := filepath.Join(dir, "cv.txt")
	if err := os.WriteFile(cvPath, []byte("Jean Dupont\nDéveloppeur Go"), 0600); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(dir, "result.json")

	var seen string
	err := RunAICommand(context.Background(), errors.NewNopLogger(), 0,
		CommandConfig{OutputFile: outPath, OutputFormat: "json"},
		[]string{cvPath},
		func(_ context.Context, texts []string) (string, error) { return texts[0], nil },
		func(_ context.Context, in string) (types.SimilarityResult, *ai.TokenUsage, error) {
			seen = in
			return types.SimilarityResult{Score: 1}, &ai.TokenUsage{TotalTokens: 3}, nil
		},
		nil,
	)
	if err != nil {
		t.Fatalf("RunAICommand failed: %v", err)
	}
	if !strings.Contains(seen, "Développeur Go") {
		t.Errorf("operation did not receive the document text, got %q", seen)
	}
	data, _ := os.ReadFile(outPath)
	if !strings.Contains(string(data), `"score": 1`) {
		t.Errorf("unexpected output %s", data)
	}
}

func TestRunAICommandMissingFile(t *testing.T) {
	err := RunAICommand(context.Background(), errors.NewNopLogger(), 0,
		CommandConfig{OutputFormat: "json"},
		[]string{filepath.Join(t.TempDir(), "absent.pdf")},
		func(_ context.Context, texts []string) (string, error) { return "", nil },
		func(_ context.Context, in string) (string, *ai.TokenUsage, error) {
			t.Error("operation must not run")
			return "", nil, nil
		},
		nil,
	)
	if !errors.HasType(err, errors.ErrorTypeDocument) {
		t.Errorf("expected document error, got %v", err)
	}
}
