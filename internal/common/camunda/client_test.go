// internal/common/camunda/client_test.go
package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerr "assistant-workers/internal/common/errors"
)

func testClient() *Client {
	return &Client{
		config: &ClientConfig{
			ConnectionTimeout: time.Second,
			RetryConfig: &RetryConfig{
				MaxRetries: 2,
				BaseDelay:  time.Millisecond,
				MaxDelay:   5 * time.Millisecond,
			},
		},
	}
}

func TestExecuteWithRetry_RetriesTransientErrors(t *testing.T) {
	c := testClient()

	calls := 0
	result, err := c.ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("rpc error: connection refused")
		}
		return "topology", nil
	}, "topology")

	require.NoError(t, err)
	assert.Equal(t, "topology", result)
	assert.Equal(t, 3, calls)
}

func TestExecuteWithRetry_NonRetryableFailsImmediately(t *testing.T) {
	c := testClient()

	calls := 0
	_, err := c.ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
		calls++
		return nil, errors.New("command rejected: NOT_FOUND")
	}, "complete job")

	require.Error(t, err)
	assert.Equal(t, 1, calls, "non-retryable errors must not be retried")

	var stdErr *commonerr.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, commonerr.ErrorCode("EXTERNAL_SERVICE_ERROR"), stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestExecuteWithRetry_TimeoutMapsToTimeoutError(t *testing.T) {
	c := testClient()

	calls := 0
	_, err := c.ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
		calls++
		return nil, errors.New("rpc error: deadline exceeded")
	}, "topology")

	require.Error(t, err)
	assert.Equal(t, 3, calls, "initial attempt plus two retries")

	var stdErr *commonerr.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, commonerr.ErrorCode("TIMEOUT_ERROR"), stdErr.Code)
}

func TestExecuteWithRetry_ContextCancelledDuringBackoff(t *testing.T) {
	c := testClient()
	c.config.RetryConfig.BaseDelay = 100 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("unavailable")
	}, "topology")

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"deadline exceeded", errors.New("context deadline exceeded"), true},
		{"gateway unavailable", errors.New("rpc error: code = Unavailable"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"rejection", errors.New("command rejected: job not found"), false},
		{"validation", errors.New("invalid process definition"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, isRetryableZeebeError(tt.err))
		})
	}
}
