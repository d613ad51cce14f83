package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Category is a family of reminders triggered by one scheduler endpoint.
type Category string

const (
	CategoryPrayer        Category = "prayer"
	CategoryJumuah        Category = "jumuah"
	CategoryRamadan       Category = "ramadan"
	CategoryNafl          Category = "nafl"
	CategoryHadith        Category = "hadith"
	CategoryAnnouncements Category = "announcements"
)

// Categories lists every reminder category in trigger order.
var Categories = []Category{
	CategoryPrayer,
	CategoryJumuah,
	CategoryRamadan,
	CategoryNafl,
	CategoryHadith,
	CategoryAnnouncements,
}

func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory validates a category name from a route or CLI argument.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.IsValid() {
		return "", ErrUnknownCategory
	}
	return c, nil
}

// Direction says whether a reminder fires before or after its event.
type Direction int

const (
	Before Direction = iota
	After
)

func (d Direction) String() string {
	if d == After {
		return "after"
	}
	return "before"
}

// ReminderLock is the claim record that makes a reminder fire once per day.
type ReminderLock struct {
	ID           uuid.UUID `json:"id"`
	MosqueID     uuid.UUID `json:"mosque_id"`
	ReminderKey  string    `json:"reminder_key"`
	ReminderDate string    `json:"reminder_date"`
	Offset       int       `json:"offset_minutes"`
	ClaimedAt    time.Time `json:"claimed_at"`
}

func NewReminderLock(mosqueID uuid.UUID, key, date string, offset int) *ReminderLock {
	return &ReminderLock{
		ID:           uuid.New(),
		MosqueID:     mosqueID,
		ReminderKey:  key,
		ReminderDate: date,
		Offset:       offset,
		ClaimedAt:    time.Now().UTC(),
	}
}

// ReminderLockRepository claims locks atomically. TryClaim returns false with
// a nil error when the key already exists.
type ReminderLockRepository interface {
	TryClaim(ctx context.Context, lock *ReminderLock) (bool, error)
	DeleteBefore(ctx context.Context, date string) (int64, error)
}

// MessageLog is an immutable record of one dispatch.
type MessageLog struct {
	ID             uuid.UUID      `json:"id"`
	MosqueID       uuid.UUID      `json:"mosque_id"`
	Type           Category       `json:"type"`
	Subtype        string         `json:"subtype"`
	Content        string         `json:"content"`
	RecipientCount int            `json:"recipient_count"`
	SuccessCount   int            `json:"success_count"`
	FailCount      int            `json:"fail_count"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

func NewMessageLog(mosqueID uuid.UUID, category Category, subtype, content string) *MessageLog {
	return &MessageLog{
		ID:        uuid.New(),
		MosqueID:  mosqueID,
		Type:      category,
		Subtype:   subtype,
		Content:   content,
		Metadata:  make(map[string]any),
		CreatedAt: time.Now().UTC(),
	}
}

// MessageLogRepository defines the interface for the append-only message log
type MessageLogRepository interface {
	Create(ctx context.Context, entry *MessageLog) error
	CreateWithoutMetadata(ctx context.Context, entry *MessageLog) error
	ExistsSince(ctx context.Context, mosqueID uuid.UUID, category Category, subtype string, since time.Time) (bool, error)
}

// DispatchEvent is broadcast to dashboard listeners after each dispatch.
type DispatchEvent struct {
	MosqueID    uuid.UUID `json:"mosque_id"`
	Category    Category  `json:"category"`
	ReminderKey string    `json:"reminder_key"`
	Offset      int       `json:"offset"`
	Total       int       `json:"total"`
	Successful  int       `json:"successful"`
	Failed      int       `json:"failed"`
	At          time.Time `json:"at"`
}

// Hadith is one entry of the daily hadith rotation.
type Hadith struct {
	ID     int    `json:"id"`
	Text   string `json:"text"`
	Source string `json:"source"`
}

// HadithRepository serves the daily hadith.
type HadithRepository interface {
	ForDay(ctx context.Context, dayOfYear int) (*Hadith, error)
}
