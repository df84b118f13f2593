package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitedClient_RetriesThenSucceeds(t *testing.T) {
	mock := NewMockLLMClient()
	mock.QueueError(errors.New("503"))
	mock.QueueError(errors.New("503"))
	mock.QueueResponse("ok")

	client := NewLimitedClient(mock, 0, 2)
	client.SetBackoff(0)

	out, err := client.Invoke(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, mock.CallCount())
}

func TestLimitedClient_RetryBudgetExhausted(t *testing.T) {
	mock := NewMockLLMClient()
	mock.QueueError(errors.New("first"))
	mock.QueueError(errors.New("second"))
	mock.QueueResponse("never reached")

	client := NewLimitedClient(mock, 0, 1)
	client.SetBackoff(0)

	_, err := client.Invoke(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 2 attempt(s)")
	assert.Contains(t, err.Error(), "second")
	assert.Equal(t, 2, mock.CallCount())
}

func TestLimitedClient_NoRetries(t *testing.T) {
	mock := NewMockLLMClient()
	mock.QueueError(errors.New("down"))

	client := NewLimitedClient(mock, 0, -3)
	_, err := client.Invoke(context.Background(), "prompt")
	require.Error(t, err)
	assert.Equal(t, 1, mock.CallCount())
}

func TestLimitedClient_CancelledDuringBackoff(t *testing.T) {
	mock := NewMockLLMClient()
	mock.QueueError(errors.New("down"))

	client := NewLimitedClient(mock, 0, 3)
	client.SetBackoff(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Invoke(ctx, "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, mock.CallCount())
}

func TestLimitedClient_RateLimited(t *testing.T) {
	mock := NewMockLLMClient("a", "b")
	// One request per minute with a burst of one: the second call must wait.
	client := NewLimitedClient(mock, 1, 0)

	out, err := client.Invoke(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "a", out)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Invoke(ctx, "p2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
	assert.Equal(t, 1, mock.CallCount())
}

func TestLimitedClient_DelegatesMetadata(t *testing.T) {
	client := NewLimitedClient(NewMockLLMClient(), 60, 0)
	assert.Equal(t, "mock", client.GetProviderName())
	assert.True(t, client.IsConfigured())
}
