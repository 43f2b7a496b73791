package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"cvmatch/internal/errors"

	"github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *errors.Logger {
	return errors.NewNopLogger()
}

type fakeSecrets map[string]string

func (f fakeSecrets) GetStringSecret(path, key string) (string, error) {
	v, ok := f[path+"#"+key]
	if !ok {
		return "", fmt.Errorf("secret not found at path: %s", path)
	}
	return v, nil
}

func TestParseVersionValue(t *testing.T) {
	tests := []struct {
		name        string
		input       any
		expected    int64
		expectError bool
	}{
		{name: "int64 value", input: int64(42), expected: 42},
		{name: "float64 value", input: float64(42.0), expected: 42},
		{name: "json number", input: json.Number("7"), expected: 7},
		{name: "string value", input: "42", expected: 42},
		{name: "invalid string value", input: "not-a-number", expectError: true},
		{name: "unsupported type", input: []string{"42"}, expectError: true},
		{name: "missing version", input: nil, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseVersionValue(tt.input, "secret/data/test")

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestApplyGeminiKeyToConfig(t *testing.T) {
	config := &Config{
		AI: AIConfig{
			CoverLetter: OperationAIConfig{APIKey: "letter-key"},
		},
		Embedding: EmbeddingConfig{Provider: EmbeddingProviderGemini},
	}

	applyGeminiKeyToConfig(config, "vault-gemini-key")

	assert.Equal(t, "vault-gemini-key", config.AI.APIKey)
	assert.Equal(t, "vault-gemini-key", config.AI.ExtractCV.APIKey)
	assert.Equal(t, "vault-gemini-key", config.AI.ExtractJob.APIKey)
	assert.Equal(t, "vault-gemini-key", config.AI.PersonalInfo.APIKey)
	assert.Equal(t, "letter-key", config.AI.CoverLetter.APIKey) // existing key is kept
	assert.Equal(t, "vault-gemini-key", config.Embedding.APIKey)
}

func TestResolveVaultToken(t *testing.T) {
	logger := newTestLogger()

	t.Run("token from config", func(t *testing.T) {
		token, err := resolveVaultToken(VaultConfig{Token: "direct-token"}, logger)
		assert.NoError(t, err)
		assert.Equal(t, "direct-token", token)
	})

	t.Run("token from file", func(t *testing.T) {
		tokenFile := filepath.Join(t.TempDir(), "vault-token")
		require.NoError(t, os.WriteFile(tokenFile, []byte("  file-token  \n"), 0600))

		token, err := resolveVaultToken(VaultConfig{TokenFile: tokenFile}, logger)
		assert.NoError(t, err)
		assert.Equal(t, "file-token", token)
	})

	t.Run("missing token file", func(t *testing.T) {
		_, err := resolveVaultToken(VaultConfig{TokenFile: "/nonexistent/token/file"}, logger)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read vault token file")
	})

	t.Run("no token provided", func(t *testing.T) {
		_, err := resolveVaultToken(VaultConfig{}, logger)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "vault token is required")
	})
}

func TestApplyVaultSecretsDisabled(t *testing.T) {
	config := &Config{Vault: VaultConfig{Enabled: false}}
	assert.NoError(t, ApplyVaultSecrets(config, newTestLogger()))
}

func TestLoadAllSecretsFromVault(t *testing.T) {
	config := &Config{
		Embedding: EmbeddingConfig{Provider: EmbeddingProviderHuggingFace},
		Vault: VaultConfig{Secrets: VaultSecrets{
			APIKeys:      "secret/data/cvmatch/server",
			GeminiKey:    "secret/data/cvmatch/gemini",
			EmbeddingKey: "secret/data/cvmatch/hf",
		}},
	}
	secrets := fakeSecrets{
		"secret/data/cvmatch/server#keys":    "k1, k2",
		"secret/data/cvmatch/gemini#api_key": "g-key",
		"secret/data/cvmatch/hf#token":       "hf-token",
	}

	require.NoError(t, loadAllSecretsFromVault(secrets, config, newTestLogger()))

	assert.Equal(t, []string{"k1", "k2"}, config.Server.APIKeys)
	assert.Equal(t, "g-key", config.AI.APIKey)
	assert.Equal(t, "hf-token", config.Embedding.APIKey)
}

func TestLoadAllSecretsFromVaultMissingSecret(t *testing.T) {
	config := &Config{Vault: VaultConfig{Secrets: VaultSecrets{GeminiKey: "secret/data/absent"}}}

	err := loadAllSecretsFromVault(fakeSecrets{}, config, newTestLogger())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Gemini API key")
}

func TestVaultClientGetStringSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/sys/health":
			_, _ = w.Write([]byte(`{"initialized":true,"sealed":false,"standby":false,"version":"1.15.0","cluster_name":"test"}`))
		case "/v1/secret/data/cvmatch/gemini":
			assert.Equal(t, "test-token", r.Header.Get("X-Vault-Token"))
			_, _ = w.Write([]byte(`{"data":{"data":{"api_key":"from-vault"},"metadata":{"version":3}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
		}
	}))
	defer srv.Close()

	client, err := NewVaultClient(VaultConfig{Enabled: true, Address: srv.URL, Token: "test-token"}, newTestLogger())
	require.NoError(t, err)

	secret, err := client.GetSecretV2("secret/data/cvmatch/gemini")
	require.NoError(t, err)
	assert.EqualValues(t, 3, secret.Version)

	value, err := client.GetStringSecret("secret/data/cvmatch/gemini", "api_key")
	require.NoError(t, err)
	assert.Equal(t, "from-vault", value)

	_, err = client.GetStringSecret("secret/data/cvmatch/absent", "api_key")
	assert.Error(t, err)
}

func TestVaultClientExtractSecretData(t *testing.T) {
	vc := &VaultClient{logger: newTestLogger()}

	tests := []struct {
		name        string
		secret      *api.Secret
		expectError bool
		expected    map[string]any
	}{
		{
			name: "valid KVv2 secret",
			secret: &api.Secret{Data: map[string]any{
				"data": map[string]any{"token": "hf"},
			}},
			expected: map[string]any{"token": "hf"},
		},
		{
			name:        "missing data field",
			secret:      &api.Secret{Data: map[string]any{"metadata": map[string]any{}}},
			expectError: true,
		},
		{
			name:        "data field wrong type",
			secret:      &api.Secret{Data: map[string]any{"data": "not-a-map"}},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := vc.extractSecretData(tt.secret, "secret/test")

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}
