package ai

import (
	stderrors "errors"
	"testing"
	"time"

	"cvmatch/internal/config"
	"cvmatch/internal/errors"

	"github.com/sony/gobreaker/v2"
)

func TestDisabledCircuitBreakerPassesThrough(t *testing.T) {
	cb := NewCircuitBreaker[int]("disabled", config.CircuitBreakerConfig{Enabled: false}, errors.NewNopLogger())
	if cb != nil {
		t.Fatal("disabled breaker should be nil")
	}

	got, err := cb.Execute(func() (int, error) { return 42, nil })
	if err != nil || got != 42 {
		t.Errorf("Execute = %d, %v", got, err)
	}
	if !cb.IsHealthy() {
		t.Error("nil breaker should be healthy")
	}
	if enabled, _ := cb.GetStats()["enabled"].(bool); enabled {
		t.Error("nil breaker should report enabled=false")
	}
}

func TestCircuitBreakerTrips(t *testing.T) {
	cb := NewCircuitBreaker[string]("AI-extract_cv", config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		MinRequests:      2,
		FailureThreshold: 0.5,
	}, errors.NewNopLogger())

	boom := stderrors.New("boom")
	for i := 0; i < 2; i++ {
		if _, err := cb.Execute(func() (string, error) { return "", boom }); !stderrors.Is(err, boom) {
			t.Fatalf("attempt %d: got %v", i, err)
		}
	}

	if cb.IsHealthy() {
		t.Error("breaker should be open after repeated failures")
	}
	_, err := cb.Execute(func() (string, error) { return "ok", nil })
	if !stderrors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected open state error, got %v", err)
	}

	stats := cb.GetStats()
	if stats["name"] != "AI-extract_cv" || stats["state"] != "open" {
		t.Errorf("stats = %v", stats)
	}

	// an open breaker is reported as an unavailable service
	if svcErr := toServiceError(geminiService, err); !errors.HasType(svcErr, errors.ErrorTypeService) {
		t.Errorf("toServiceError = %v", svcErr)
	}
}

func TestIndependentOperationBreakers(t *testing.T) {
	cfg := testConfig()
	cfg.AI.ExtractCV.CircuitBreaker = config.CircuitBreakerConfig{Enabled: true, MaxRequests: 3, Interval: time.Minute, Timeout: time.Minute, MinRequests: 3, FailureThreshold: 0.6}
	cfg.AI.CoverLetter.CircuitBreaker = config.CircuitBreakerConfig{Enabled: true, MaxRequests: 5, Interval: time.Minute, Timeout: time.Minute, MinRequests: 2, FailureThreshold: 0.7}

	provider := newGeminiProviderWithModels(cfg, &fakeModels{}, errors.NewNopLogger())
	stats := provider.GetCircuitBreakerStats()

	for op, wantEnabled := range map[config.Operation]bool{
		config.OpExtractCV:    true,
		config.OpCoverLetter:  true,
		config.OpExtractJob:   false,
		config.OpPersonalInfo: false,
		config.OpOptimizeCV:   false,
	} {
		opStats, ok := stats[string(op)].(map[string]any)
		if !ok {
			t.Fatalf("no stats for %s", op)
		}
		if enabled, _ := opStats["enabled"].(bool); enabled != wantEnabled {
			t.Errorf("%s enabled = %v, want %v", op, enabled, wantEnabled)
		}
		if wantEnabled && opStats["name"] != "AI-"+string(op) {
			t.Errorf("%s name = %v", op, opStats["name"])
		}
	}
	if healthy, _ := stats["overall_healthy"].(bool); !healthy {
		t.Error("fresh breakers should be healthy")
	}
}
