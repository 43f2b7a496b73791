package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"cvmatch/internal/config"
	"cvmatch/internal/errors"
)

// secretSource is the part of the Vault client the key watcher needs
type secretSource interface {
	GetSecretV2(path string) (*config.VaultSecret, error)
}

// KeyWatcher polls the API keys secret in Vault and hands new key sets to
// the server when the secret version changes
type KeyWatcher struct {
	mu sync.RWMutex

	client       secretSource
	secretPath   string
	pollInterval time.Duration
	apply        func(keys []string)
	logger       *errors.Logger

	stopChan    chan struct{}
	running     bool
	lastVersion int64
}

// NewKeyWatcher creates a watcher. apply receives every new, non-empty key set.
func NewKeyWatcher(client secretSource, secretPath string, pollInterval time.Duration, apply func(keys []string), logger *errors.Logger) *KeyWatcher {
	return &KeyWatcher{
		client:       client,
		secretPath:   secretPath,
		pollInterval: pollInterval,
		apply:        apply,
		logger:       logger,
		stopChan:     make(chan struct{}),
	}
}

// Start records the current version and begins polling
func (kw *KeyWatcher) Start() error {
	kw.mu.Lock()
	defer kw.mu.Unlock()
	if kw.running {
		return fmt.Errorf("key watcher is already running")
	}
	if kw.pollInterval <= 0 {
		return fmt.Errorf("key watcher poll interval must be positive")
	}

	// keys loaded at startup are already applied
	if secret, err := kw.client.GetSecretV2(kw.secretPath); err == nil && secret != nil {
		kw.lastVersion = secret.Version
	}

	kw.running = true
	go kw.pollLoop()
	kw.logger.Info("API key watcher started", "secret_path", kw.secretPath, "poll_interval", kw.pollInterval)
	return nil
}

// Stop stops the watcher
func (kw *KeyWatcher) Stop() {
	kw.mu.Lock()
	defer kw.mu.Unlock()
	if !kw.running {
		return
	}
	close(kw.stopChan)
	kw.running = false
	kw.logger.Info("API key watcher stopped")
}

func (kw *KeyWatcher) pollLoop() {
	ticker := time.NewTicker(kw.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := kw.poll(); err != nil {
				kw.logger.LogError(err, "Failed to check Vault for API key updates")
			}
		case <-kw.stopChan:
			return
		}
	}
}

// poll applies the secret's keys when its version moved forward.
// It reports whether keys were applied.
func (kw *KeyWatcher) poll() (bool, error) {
	secret, err := kw.client.GetSecretV2(kw.secretPath)
	if err != nil {
		return false, fmt.Errorf("failed to read secret: %w", err)
	}
	if secret == nil {
		return false, fmt.Errorf("secret %s not found", kw.secretPath)
	}

	kw.mu.Lock()
	if secret.Version <= kw.lastVersion {
		kw.mu.Unlock()
		return false, nil
	}
	kw.lastVersion = secret.Version
	kw.mu.Unlock()

	keys := parseKeys(secret.Data["keys"])
	if len(keys) == 0 {
		kw.logger.Warn("API keys secret changed but holds no keys, keeping current keys",
			"secret_path", kw.secretPath, "version", secret.Version)
		return false, nil
	}

	kw.apply(keys)
	kw.logger.Info("API keys reloaded from Vault", "count", len(keys), "version", secret.Version)
	return true, nil
}

// Status returns the watcher state for the stats endpoint
func (kw *KeyWatcher) Status() map[string]any {
	kw.mu.RLock()
	defer kw.mu.RUnlock()
	return map[string]any{
		"running":       kw.running,
		"poll_interval": kw.pollInterval.String(),
		"secret_path":   kw.secretPath,
		"last_version":  kw.lastVersion,
	}
}

// parseKeys accepts the comma-separated string stored in Vault
func parseKeys(raw any) []string {
	s, ok := raw.(string)
	if !ok {
		return nil
	}
	var keys []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			keys = append(keys, part)
		}
	}
	return keys
}
