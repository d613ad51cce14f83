package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxScheduledRetries is the retry ceiling for scheduled announcements.
const DefaultMaxScheduledRetries = 5

type ScheduledStatus string

const (
	ScheduledPending    ScheduledStatus = "pending"
	ScheduledProcessing ScheduledStatus = "processing"
	ScheduledSent       ScheduledStatus = "sent"
	ScheduledFailed     ScheduledStatus = "failed"
)

// ScheduledMessage is an announcement queued for delivery at ScheduledAt.
type ScheduledMessage struct {
	ID          uuid.UUID       `json:"id"`
	MosqueID    uuid.UUID       `json:"mosque_id"`
	Content     string          `json:"content"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	Status      ScheduledStatus `json:"status"`
	RetryCount  int             `json:"retry_count"`
	LastError   string          `json:"last_error,omitempty"`
	SentAt      *time.Time      `json:"sent_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func NewScheduledMessage(mosqueID uuid.UUID, content string, at time.Time) *ScheduledMessage {
	now := time.Now().UTC()
	return &ScheduledMessage{
		ID:          uuid.New(),
		MosqueID:    mosqueID,
		Content:     content,
		ScheduledAt: at.UTC(),
		Status:      ScheduledPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// MarkSent records a successful delivery.
func (m *ScheduledMessage) MarkSent(at time.Time) {
	m.Status = ScheduledSent
	m.SentAt = &at
	m.LastError = ""
	m.UpdatedAt = at
}

// RecordFailure bumps the retry count. The message goes back to pending
// until the ceiling is reached, then it is failed for good.
func (m *ScheduledMessage) RecordFailure(cause string, ceiling int) {
	m.RetryCount++
	m.LastError = cause
	m.UpdatedAt = time.Now().UTC()
	if m.RetryCount >= ceiling {
		m.Status = ScheduledFailed
		return
	}
	m.Status = ScheduledPending
}

// Abandon fails a message whose retries were used up by expired processing
// leases, without another delivery attempt.
func (m *ScheduledMessage) Abandon(at time.Time) {
	m.Status = ScheduledFailed
	m.UpdatedAt = at
}

// ScheduledMessageRepository defines the interface for scheduled message persistence
type ScheduledMessageRepository interface {
	// ClaimDue moves up to limit due pending rows to processing and returns
	// them. Rows left in processing since before staleBefore are reclaimed
	// with their retry count bumped.
	ClaimDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]*ScheduledMessage, error)
	Update(ctx context.Context, msg *ScheduledMessage) error
}
