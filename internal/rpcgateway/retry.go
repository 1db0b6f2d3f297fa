package rpcgateway

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/riftline/evmsync/pkg/config"
)

// transportRetryableError reports whether err is a transport-level failure
// worth retrying: network errors, timeouts, rate limiting, and transient
// 5xx/502/503/504 responses. Application-level errors (malformed params,
// provider-reported range-too-large) are never retryable here; the gateway
// surfaces those as errkind.RpcApplication instead.
func transportRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") {
		return true
	}

	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "context deadline exceeded") {
		return true
	}

	if strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "rate limit") {
		return true
	}

	if strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "gateway timeout") {
		return true
	}

	if strings.Contains(errStr, "connection pool") ||
		strings.Contains(errStr, "no available connection") {
		return true
	}

	return false
}

// calculateBackoff computes the exponential backoff with +/-25% jitter for
// a given attempt number (1-indexed; attempt 1 always returns 0).
func calculateBackoff(attempt int, cfg *config.RetryConfig) time.Duration {
	if attempt <= 1 {
		return 0
	}

	backoff := float64(cfg.InitialBackoff.Duration) * math.Pow(cfg.BackoffMultiplier, float64(attempt-2))
	if backoff > float64(cfg.MaxBackoff.Duration) {
		backoff = float64(cfg.MaxBackoff.Duration)
	}

	jitterRange := backoff * 0.25
	jitter := (rand.Float64() * 2 * jitterRange) - jitterRange
	backoff += jitter
	if backoff < 0 {
		backoff = 0
	}

	return time.Duration(backoff)
}

// retryWithBackoff runs fn, retrying transport-level failures with
// exponential backoff. Application-level errors are returned immediately
// on the first attempt so the caller can classify and act on them (e.g.
// range halving) without burning through the retry budget.
func retryWithBackoff(ctx context.Context, cfg *config.RetryConfig, method string, fn func() error) error {
	if cfg == nil {
		return fn()
	}

	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			if attempt > 1 {
				gatewayRetriesInc(method)
			}
			return nil
		}
		lastErr = err

		if !transportRetryableError(err) {
			return err
		}

		if attempt >= cfg.MaxAttempts {
			break
		}

		backoff := calculateBackoff(attempt, cfg)
		if backoff > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		gatewayRetriesInc(method)
	}

	return lastErr
}
