package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PushKeys are the web-push subscription keys of a push recipient.
type PushKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Recipient is one addressable endpoint of a subscriber.
type Recipient struct {
	SubscriberID uuid.UUID `json:"subscriber_id"`
	Channel      Channel   `json:"channel"`
	Address      string    `json:"address"`
	PushKeys     *PushKeys `json:"push_keys,omitempty"`
}

// Message is the rendered payload handed to a transport.
type Message struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// SendResult represents a transport's acknowledgement
type SendResult struct {
	MessageID string    `json:"messageId"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Transport sends one message to one recipient. Permanent endpoint failures
// are reported as a ProviderError with status 410.
type Transport interface {
	Send(ctx context.Context, to Recipient, msg Message) (*SendResult, error)
}

// RecipientResult is the outcome of one send inside a batch.
type RecipientResult struct {
	SubscriberID uuid.UUID `json:"subscriber_id"`
	Success      bool      `json:"success"`
	Permanent    bool      `json:"permanent,omitempty"`
	Error        string    `json:"error,omitempty"`
	Attempts     int       `json:"attempts"`
}

// DispatchResult aggregates a batch.
type DispatchResult struct {
	Total      int               `json:"total"`
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Succeeded  []uuid.UUID       `json:"succeeded"`
	Expired    []uuid.UUID       `json:"expired"`
	Results    []RecipientResult `json:"results"`
}

// RateLimiter defines the interface for outbound rate limiting
type RateLimiter interface {
	// Wait blocks until a send on channel is allowed
	Wait(ctx context.Context, channel Channel) error
}
