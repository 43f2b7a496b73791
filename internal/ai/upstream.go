package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	appErrors "cvmatch/internal/errors"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
	"google.golang.org/api/googleapi"
)

// withRetry runs fn up to maxRetries+1 times with exponential backoff.
// Only errors accepted by isRetryableError are retried.
func withRetry[T any](ctx context.Context, logger *appErrors.Logger, operation string, maxRetries int, fn func() (T, error)) (T, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = time.Second
	expo.Multiplier = 2
	expo.RandomizationFactor = 0.1
	expo.MaxInterval = 30 * time.Second
	expo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(max(maxRetries, 0))), ctx)

	attempts := 0
	op := func() (T, error) {
		attempts++
		result, err := fn()
		if err != nil && !isRetryableError(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("Retrying AI operation",
			"operation", operation,
			"attempt", attempts,
			"max_retries", maxRetries,
			"wait", wait,
			"error", err.Error())
	}

	result, err := backoff.RetryNotifyWithData(op, policy, notify)
	if err != nil {
		if maxRetries <= 0 || attempts == 1 {
			return result, err
		}
		return result, fmt.Errorf("operation '%s' failed after %d attempts: %w", operation, attempts, err)
	}
	if attempts > 1 {
		logger.Info("AI operation succeeded after retry", "operation", operation, "total_attempts", attempts)
	}
	return result, nil
}

// isRetryableError determines if an error should trigger a retry
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}

	return false
}

// toServiceError wraps a failed remote call into a SERVICE_UNAVAILABLE error
// that carries the upstream status when one is known
func toServiceError(service string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := appErrors.AsAppError(err); ok && appErr.Type == appErrors.ErrorTypeService {
		return err
	}

	status := 0
	message := fmt.Sprintf("%s request failed", service)

	var apiErr *googleapi.Error
	var netErr net.Error
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		message = fmt.Sprintf("%s circuit breaker is open", service)
	case errors.Is(err, context.DeadlineExceeded):
		message = fmt.Sprintf("%s request timed out", service)
	case errors.As(err, &apiErr):
		status = apiErr.Code
		message = fmt.Sprintf("%s returned status %d", service, apiErr.Code)
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			message = fmt.Sprintf("%s request timed out", service)
		} else {
			message = fmt.Sprintf("%s is unreachable", service)
		}
	}

	return appErrors.NewServiceUnavailableError(service, status, message, err)
}
