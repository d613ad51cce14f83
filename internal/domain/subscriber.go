package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Channel represents the delivery channel of a subscriber
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelPush     Channel = "push"
)

func (c Channel) IsValid() bool {
	switch c {
	case ChannelWhatsApp, ChannelPush:
		return true
	}
	return false
}

type SubscriberStatus string

const (
	SubscriberActive       SubscriberStatus = "active"
	SubscriberPaused       SubscriberStatus = "paused"
	SubscriberUnsubscribed SubscriberStatus = "unsubscribed"
	SubscriberInactive     SubscriberStatus = "inactive"
)

// DefaultReminderOffset is used when a subscriber's stored offset is not one
// of the supported values.
const DefaultReminderOffset = 15

// ReminderOffsets are the offsets a subscriber can choose from, in minutes.
var ReminderOffsets = []int{5, 10, 15, 30}

// Preferences are the per-category opt-ins of a subscriber.
type Preferences struct {
	DailyPrayers  bool `json:"daily_prayers"`
	Jumuah        bool `json:"jumuah"`
	Ramadan       bool `json:"ramadan"`
	Nafl          bool `json:"nafl"`
	Hadith        bool `json:"hadith"`
	Announcements bool `json:"announcements"`
}

// Subscriber represents a person receiving reminders from one mosque
type Subscriber struct {
	ID             uuid.UUID        `json:"id"`
	MosqueID       uuid.UUID        `json:"mosque_id"`
	Channel        Channel          `json:"channel"`
	Phone          string           `json:"phone,omitempty"`
	PushEndpoint   string           `json:"push_endpoint,omitempty"`
	PushP256dh     string           `json:"push_p256dh,omitempty"`
	PushAuth       string           `json:"push_auth,omitempty"`
	Preferences    Preferences      `json:"preferences"`
	Status         SubscriberStatus `json:"status"`
	PausedUntil    *time.Time       `json:"paused_until,omitempty"`
	ReminderOffset int              `json:"reminder_offset"`
	LastMessageAt  *time.Time       `json:"last_message_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Wants reports whether the subscriber opted into category.
func (s *Subscriber) Wants(category Category) bool {
	switch category {
	case CategoryPrayer:
		return s.Preferences.DailyPrayers
	case CategoryJumuah:
		return s.Preferences.Jumuah
	case CategoryRamadan:
		return s.Preferences.Ramadan
	case CategoryNafl:
		return s.Preferences.Nafl
	case CategoryHadith:
		return s.Preferences.Hadith
	case CategoryAnnouncements:
		return s.Preferences.Announcements
	}
	return false
}

// Eligible reports whether the subscriber should receive category right now.
func (s *Subscriber) Eligible(category Category) bool {
	return s.Status == SubscriberActive && s.Wants(category) && s.Recipient().Address != ""
}

// NormalizedOffset returns the reminder offset, falling back to the default
// for values outside the supported set.
func (s *Subscriber) NormalizedOffset() int {
	for _, o := range ReminderOffsets {
		if s.ReminderOffset == o {
			return o
		}
	}
	return DefaultReminderOffset
}

// PauseExpired reports whether a paused subscriber is due to resume.
func (s *Subscriber) PauseExpired(now time.Time) bool {
	return s.Status == SubscriberPaused && s.PausedUntil != nil && !s.PausedUntil.After(now)
}

// Recipient builds the transport address for the subscriber's channel.
func (s *Subscriber) Recipient() Recipient {
	r := Recipient{
		SubscriberID: s.ID,
		Channel:      s.Channel,
	}
	switch s.Channel {
	case ChannelWhatsApp:
		r.Address = s.Phone
	case ChannelPush:
		r.Address = s.PushEndpoint
		r.PushKeys = &PushKeys{P256dh: s.PushP256dh, Auth: s.PushAuth}
	}
	return r
}

// SubscriberRepository defines the interface for subscriber persistence
type SubscriberRepository interface {
	ListEligible(ctx context.Context, mosqueID uuid.UUID, category Category) ([]*Subscriber, error)
	TouchLastMessage(ctx context.Context, ids []uuid.UUID, at time.Time) error
	Deactivate(ctx context.Context, ids []uuid.UUID) error
	ResumeExpiredPauses(ctx context.Context, now time.Time) (int64, error)
}
