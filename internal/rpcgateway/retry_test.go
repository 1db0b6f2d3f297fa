package rpcgateway

import (
	"context"
	"errors"
	"net"
	"syscall"
	"testing"
	"time"

	evcommon "github.com/riftline/evmsync/internal/common"
	"github.com/riftline/evmsync/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockNetError struct {
	msg     string
	timeout bool
}

func (e *mockNetError) Error() string   { return e.msg }
func (e *mockNetError) Timeout() bool   { return e.timeout }
func (e *mockNetError) Temporary() bool { return e.timeout }

func TestTransportRetryableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil error", nil, false},
		{"network timeout", &mockNetError{msg: "network timeout", timeout: true}, true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"connection reset", syscall.ECONNRESET, true},
		{"broken pipe", syscall.EPIPE, true},
		{"timeout string", errors.New("operation timeout"), true},
		{"deadline exceeded", errors.New("deadline exceeded"), true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"rate limit 429", errors.New("HTTP 429"), true},
		{"too many requests", errors.New("too many requests"), true},
		{"502 bad gateway", errors.New("502 bad gateway"), true},
		{"503 service unavailable", errors.New("503 Service Unavailable"), true},
		{"504 gateway timeout", errors.New("504 Gateway Timeout"), true},
		{"connection pool exhausted", errors.New("connection pool exhausted"), true},
		{"invalid parameter", errors.New("invalid parameter"), false},
		{"401 unauthorized", errors.New("401 Unauthorized"), false},
		{"404 not found", errors.New("404 Not Found"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, transportRetryableError(tt.err))
		})
	}
}

func TestTransportRetryableErrorNetError(t *testing.T) {
	var netErr net.Error = &mockNetError{msg: "x", timeout: true}
	assert.True(t, transportRetryableError(netErr))
}

func TestCalculateBackoff(t *testing.T) {
	cfg := &config.RetryConfig{
		InitialBackoff:    evcommon.NewDuration(1 * time.Second),
		MaxBackoff:        evcommon.NewDuration(30 * time.Second),
		BackoffMultiplier: 2.0,
	}

	tests := []struct {
		name        string
		attempt     int
		minExpected time.Duration
		maxExpected time.Duration
	}{
		{"attempt 1 - no backoff", 1, 0, 0},
		{"attempt 2 - initial backoff with jitter", 2, 750 * time.Millisecond, 1250 * time.Millisecond},
		{"attempt 3 - exponential backoff", 3, 1500 * time.Millisecond, 2500 * time.Millisecond},
		{"attempt 4", 4, 3 * time.Second, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 10; i++ {
				backoff := calculateBackoff(tt.attempt, cfg)
				assert.GreaterOrEqual(t, backoff, tt.minExpected)
				assert.LessOrEqual(t, backoff, tt.maxExpected)
			}
		})
	}
}

func TestCalculateBackoffCappedAtMax(t *testing.T) {
	cfg := &config.RetryConfig{
		InitialBackoff:    evcommon.NewDuration(1 * time.Second),
		MaxBackoff:        evcommon.NewDuration(5 * time.Second),
		BackoffMultiplier: 2.0,
	}

	backoff := calculateBackoff(10, cfg)
	assert.LessOrEqual(t, backoff, 6250*time.Millisecond)
}

func TestRetryWithBackoffSuccess(t *testing.T) {
	cfg := &config.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    evcommon.NewDuration(10 * time.Millisecond),
		MaxBackoff:        evcommon.NewDuration(100 * time.Millisecond),
		BackoffMultiplier: 2.0,
	}

	callCount := 0
	err := retryWithBackoff(context.Background(), cfg, "test_operation", func() error {
		callCount++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, callCount)
}

func TestRetryWithBackoffSuccessAfterRetries(t *testing.T) {
	cfg := &config.RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    evcommon.NewDuration(10 * time.Millisecond),
		MaxBackoff:        evcommon.NewDuration(100 * time.Millisecond),
		BackoffMultiplier: 2.0,
	}

	callCount := 0
	err := retryWithBackoff(context.Background(), cfg, "test_operation", func() error {
		callCount++
		if callCount < 3 {
			return &mockNetError{msg: "temporary error", timeout: true}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestRetryWithBackoffNonRetryableStopsImmediately(t *testing.T) {
	cfg := &config.RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    evcommon.NewDuration(10 * time.Millisecond),
		MaxBackoff:        evcommon.NewDuration(100 * time.Millisecond),
		BackoffMultiplier: 2.0,
	}

	callCount := 0
	expected := errors.New("invalid parameter")
	err := retryWithBackoff(context.Background(), cfg, "test_operation", func() error {
		callCount++
		return expected
	})
	require.ErrorIs(t, err, expected)
	assert.Equal(t, 1, callCount)
}

func TestRetryWithBackoffExhaustedRetries(t *testing.T) {
	cfg := &config.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    evcommon.NewDuration(10 * time.Millisecond),
		MaxBackoff:        evcommon.NewDuration(100 * time.Millisecond),
		BackoffMultiplier: 2.0,
	}

	callCount := 0
	expected := &mockNetError{msg: "persistent error", timeout: true}
	err := retryWithBackoff(context.Background(), cfg, "test_operation", func() error {
		callCount++
		return expected
	})
	require.ErrorIs(t, err, expected)
	assert.Equal(t, 3, callCount)
}

func TestRetryWithBackoffContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &config.RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    evcommon.NewDuration(10 * time.Millisecond),
		MaxBackoff:        evcommon.NewDuration(100 * time.Millisecond),
		BackoffMultiplier: 2.0,
	}

	callCount := 0
	err := retryWithBackoff(ctx, cfg, "test_operation", func() error {
		callCount++
		if callCount == 2 {
			cancel()
		}
		return &mockNetError{msg: "temporary error", timeout: true}
	})
	require.Error(t, err)
	assert.LessOrEqual(t, callCount, 3)
}

func TestRetryWithBackoffNilConfig(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), nil, "test_operation", func() error {
		callCount++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, callCount)
}
