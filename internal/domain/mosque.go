package domain

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Madhab string

const (
	MadhabShafi  Madhab = "shafi"
	MadhabHanafi Madhab = "hanafi"
)

// School returns the timetable provider's Asr school code.
func (m Madhab) School() int {
	if m == MadhabHanafi {
		return 1
	}
	return 0
}

// ReminderAnchor selects whether prayer reminders count down to the adhan or
// to the congregation.
type ReminderAnchor string

const (
	AnchorJamaat ReminderAnchor = "jamaat"
	AnchorAdhan  ReminderAnchor = "adhan"
)

// CustomTimes holds operator-entered fixed prayer times in HH:MM.
type CustomTimes struct {
	Fajr    string `json:"fajr"`
	Sunrise string `json:"sunrise"`
	Dhuhr   string `json:"dhuhr"`
	Asr     string `json:"asr"`
	Maghrib string `json:"maghrib"`
	Isha    string `json:"isha"`
}

// Complete reports whether all six times are present and parseable. A partial
// set is never used.
func (c CustomTimes) Complete() bool {
	for _, v := range []string{c.Fajr, c.Sunrise, c.Dhuhr, c.Asr, c.Maghrib, c.Isha} {
		if _, err := ParseClock(v); err != nil {
			return false
		}
	}
	return true
}

// Mosque represents a mosque and its reminder settings
type Mosque struct {
	ID                uuid.UUID      `json:"id" validate:"required"`
	Name              string         `json:"name" validate:"required"`
	Latitude          float64        `json:"latitude" validate:"latitude"`
	Longitude         float64        `json:"longitude" validate:"longitude"`
	CalculationMethod int            `json:"calculation_method" validate:"gte=0,lte=23"`
	Madhab            Madhab         `json:"madhab" validate:"omitempty,oneof=shafi hanafi"`
	Timezone          string         `json:"timezone" validate:"required,timezone"`
	ReminderAnchor    ReminderAnchor `json:"reminder_anchor" validate:"omitempty,oneof=jamaat adhan"`
	UseCustomTimes    bool           `json:"use_custom_times"`
	CustomTimes       CustomTimes    `json:"custom_times"`
	RamadanMode       bool           `json:"ramadan_mode"`
	SuhoorOffset      int            `json:"suhoor_offset" validate:"gte=0,lte=180"`
	IftarOffset       int            `json:"iftar_offset" validate:"gte=0,lte=180"`
	JumuahTimes       []string       `json:"jumuah_times"`
	HadithTime        string         `json:"hadith_time"`
	Active            bool           `json:"active"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Location loads the mosque's IANA zone.
func (m *Mosque) Location() (*time.Location, error) {
	if m.Timezone == "" {
		return nil, ErrInvalidTimezone
	}
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return nil, ErrInvalidTimezone
	}
	return loc, nil
}

// Anchor returns the configured reminder anchor, defaulting to jamaat.
func (m *Mosque) Anchor() ReminderAnchor {
	if m.ReminderAnchor == AnchorAdhan {
		return AnchorAdhan
	}
	return AnchorJamaat
}

// ParseClock parses "HH:MM" into minutes since midnight. Provider suffixes such
// as "05:30 (SAST)" are tolerated.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, ErrInvalidClock
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, ErrInvalidClock
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, ErrInvalidClock
	}
	return h*60 + m, nil
}

// FormatClock renders minutes since midnight as HH:MM, wrapping into a day.
func FormatClock(minutes int) string {
	minutes = ((minutes % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	h, m := minutes/60, minutes%60
	return twoDigits(h) + ":" + twoDigits(m)
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// MosqueRepository defines the interface for mosque persistence
type MosqueRepository interface {
	ListActive(ctx context.Context) ([]*Mosque, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Mosque, error)
}
