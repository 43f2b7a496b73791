package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"cvmatch/internal/errors"

	"github.com/hashicorp/vault/api"
)

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"tokenFile"`
	Namespace string `mapstructure:"namespace"`

	// WatchInterval re-reads the API keys secret in serve mode; zero disables it
	WatchInterval time.Duration `mapstructure:"watchInterval"`

	Secrets VaultSecrets `mapstructure:"secrets"`
}

// VaultSecrets holds KVv2 paths. An empty path is skipped.
type VaultSecrets struct {
	APIKeys      string `mapstructure:"apiKeys"`      // "keys": comma-separated server API keys
	GeminiKey    string `mapstructure:"geminiKey"`    // "api_key": Gemini API key
	EmbeddingKey string `mapstructure:"embeddingKey"` // "token": embedding service token
}

// VaultClient reads KVv2 secrets.
type VaultClient struct {
	client *api.Client
	logger *errors.Logger
}

// VaultSecret represents a secret read from Vault's KVv2 engine.
type VaultSecret struct {
	Data    map[string]any
	Version int64
}

// NewVaultClient connects to Vault and checks its health endpoint.
// It returns a nil client when Vault is disabled.
func NewVaultClient(cfg VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	if !cfg.Enabled {
		logger.Debug("Vault integration disabled")
		return nil, nil
	}

	apiCfg := api.DefaultConfig()
	if cfg.Address != "" {
		apiCfg.Address = cfg.Address
	}
	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "failed to create vault client", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	token, err := resolveVaultToken(cfg, logger)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	health, err := client.Sys().Health()
	if err != nil {
		logger.LogError(err, "Failed to connect to Vault", "address", apiCfg.Address)
		return nil, errors.NewNetworkError(errors.ErrCodeServiceUnavailable, "failed to connect to vault", err)
	}
	logger.Info("Connected to Vault",
		"address", apiCfg.Address,
		"namespace", cfg.Namespace,
		"version", health.Version,
		"sealed", health.Sealed)

	return &VaultClient{client: client, logger: logger}, nil
}

// resolveVaultToken prefers the inline token over the token file.
func resolveVaultToken(cfg VaultConfig, logger *errors.Logger) (string, error) {
	token := cfg.Token
	if token == "" && cfg.TokenFile != "" {
		raw, err := os.ReadFile(cfg.TokenFile)
		if err != nil {
			logger.LogError(err, "Failed to read Vault token file", "file", cfg.TokenFile)
			return "", errors.NewConfigError(errors.ErrCodeInvalidConfig, "failed to read vault token file", err)
		}
		token = strings.TrimSpace(string(raw))
	}
	if token == "" {
		return "", errors.NewConfigError(errors.ErrCodeMissingAPIKey, "vault token is required when vault is enabled", nil)
	}
	return token, nil
}

// GetSecretV2 reads path from a KVv2 mount. path includes the "data/" segment.
func (vc *VaultClient) GetSecretV2(path string) (*VaultSecret, error) {
	if vc == nil {
		return nil, fmt.Errorf("vault client not initialized")
	}
	vc.logger.Debug("Reading secret from Vault", "path", path)

	secret, err := vc.client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret from %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}

	data, err := vc.extractSecretData(secret, path)
	if err != nil {
		return nil, err
	}
	metadata, ok := secret.Data["metadata"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'metadata' field)", path)
	}
	version, err := parseVersionValue(metadata["version"], path)
	if err != nil {
		return nil, err
	}
	return &VaultSecret{Data: data, Version: version}, nil
}

func (vc *VaultClient) extractSecretData(secret *api.Secret, path string) (map[string]any, error) {
	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'data' field)", path)
	}
	return data, nil
}

// parseVersionValue accepts the numeric shapes the Vault client decodes metadata into.
func parseVersionValue(raw any, path string) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("could not parse secret version at %s: %w", path, err)
		}
		return n, nil
	case nil:
		return 0, fmt.Errorf("secret metadata at %s is missing 'version' field", path)
	default:
		return 0, fmt.Errorf("unexpected type for version at %s: %T", path, raw)
	}
}

// GetStringSecret returns the string stored under key at path.
func (vc *VaultClient) GetStringSecret(path, key string) (string, error) {
	secret, err := vc.GetSecretV2(path)
	if err != nil {
		return "", err
	}
	value, ok := secret.Data[key].(string)
	if !ok {
		return "", fmt.Errorf("key '%s' not found or not a string in secret %s", key, path)
	}
	vc.logger.Debug("Secret retrieved from Vault", "path", path, "key", key, "version", secret.Version)
	return value, nil
}

// secretReader is the part of VaultClient used to apply secrets
type secretReader interface {
	GetStringSecret(path, key string) (string, error)
}

// secretBinding maps one Vault secret onto the configuration.
type secretBinding struct {
	label string
	path  string
	key   string
	apply func(cfg *Config, value string)
}

func secretBindings(cfg *Config) []secretBinding {
	s := cfg.Vault.Secrets
	return []secretBinding{
		{label: "server API keys", path: s.APIKeys, key: "keys", apply: func(c *Config, v string) {
			if keys := splitAndTrim(v); len(keys) > 0 {
				c.Server.APIKeys = keys
			}
		}},
		{label: "Gemini API key", path: s.GeminiKey, key: "api_key", apply: applyGeminiKeyToConfig},
		{label: "embedding token", path: s.EmbeddingKey, key: "token", apply: func(c *Config, v string) {
			c.Embedding.APIKey = v
		}},
	}
}

// ApplyVaultSecrets loads secrets from Vault and applies them to the config
func ApplyVaultSecrets(cfg *Config, logger *errors.Logger) error {
	if !cfg.Vault.Enabled {
		return nil
	}
	client, err := NewVaultClient(cfg.Vault, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vault client: %w", err)
	}
	return loadAllSecretsFromVault(client, cfg, logger)
}

func loadAllSecretsFromVault(client secretReader, cfg *Config, logger *errors.Logger) error {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	applied := 0
	for _, b := range secretBindings(cfg) {
		if b.path == "" {
			continue
		}
		value, err := client.GetStringSecret(b.path, b.key)
		if err != nil {
			logger.LogError(err, "Failed to load secret from Vault", "secret", b.label, "path", b.path)
			return fmt.Errorf("failed to load %s from vault: %w", b.label, err)
		}
		if strings.TrimSpace(value) == "" {
			logger.Warn("Empty secret in Vault", "secret", b.label, "path", b.path)
			continue
		}
		b.apply(cfg, value)
		applied++
	}
	logger.Info("Secrets applied from Vault", "count", applied)
	return nil
}

// applyGeminiKeyToConfig applies the Gemini API key to every operation without its own key
func applyGeminiKeyToConfig(cfg *Config, key string) {
	cfg.AI.APIKey = key
	for _, name := range Operations {
		if op := cfg.operationBlock(name); op.APIKey == "" {
			op.APIKey = key
		}
	}
	if cfg.Embedding.Provider == EmbeddingProviderGemini && cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = key
	}
}
