package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	for _, c := range Categories {
		got, err := ParseCategory(string(c))
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	_, err := ParseCategory("fireworks")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestScheduledMessage_RecordFailure(t *testing.T) {
	msg := NewScheduledMessage(uuid.New(), "Eid salah at 07:30", time.Now())

	for i := 1; i < DefaultMaxScheduledRetries; i++ {
		msg.RecordFailure("gateway down", DefaultMaxScheduledRetries)
		assert.Equal(t, ScheduledPending, msg.Status)
		assert.Equal(t, i, msg.RetryCount)
	}

	msg.RecordFailure("gateway down", DefaultMaxScheduledRetries)
	assert.Equal(t, ScheduledFailed, msg.Status)
	assert.Equal(t, "gateway down", msg.LastError)
}

func TestScheduledMessage_MarkSent(t *testing.T) {
	msg := NewScheduledMessage(uuid.New(), "hello", time.Now())
	msg.LastError = "earlier"
	at := time.Now().UTC()

	msg.MarkSent(at)

	assert.Equal(t, ScheduledSent, msg.Status)
	require.NotNil(t, msg.SentAt)
	assert.Equal(t, at, *msg.SentAt)
	assert.Empty(t, msg.LastError)
}

func TestScheduledMessage_Abandon(t *testing.T) {
	msg := NewScheduledMessage(uuid.New(), "hello", time.Now())
	msg.Status = ScheduledProcessing
	msg.RetryCount = DefaultMaxScheduledRetries
	at := time.Now().UTC()

	msg.Abandon(at)

	assert.Equal(t, ScheduledFailed, msg.Status)
	assert.Equal(t, DefaultMaxScheduledRetries, msg.RetryCount)
	assert.Nil(t, msg.SentAt)
	assert.Equal(t, at, msg.UpdatedAt)
}

func TestProviderError(t *testing.T) {
	gone := NewProviderError(410, "subscription expired", false)
	wrapped := fmt.Errorf("send: %w", gone)

	assert.True(t, IsPermanentFailure(wrapped))
	assert.False(t, IsRetryable(wrapped))
	assert.True(t, errors.Is(wrapped, ErrProviderError))

	busy := NewProviderError(503, "unavailable", true)
	assert.False(t, IsPermanentFailure(busy))
	assert.True(t, IsRetryable(busy))

	assert.False(t, IsPermanentFailure(errors.New("boom")))
	assert.False(t, IsRetryable(nil))
}
