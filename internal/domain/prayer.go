package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	MinutesPerDay = 1440

	// DefaultJamaatDelay is the gap between adhan and congregation for every
	// prayer except Maghrib.
	DefaultJamaatDelay = 15

	ishraqAfterSunrise = 20

	DateLayout = "2006-01-02"
)

type Prayer string

const (
	PrayerFajr    Prayer = "fajr"
	PrayerSunrise Prayer = "sunrise"
	PrayerDhuhr   Prayer = "dhuhr"
	PrayerAsr     Prayer = "asr"
	PrayerMaghrib Prayer = "maghrib"
	PrayerIsha    Prayer = "isha"
)

// DailyPrayers are the five obligatory prayers in order.
var DailyPrayers = []Prayer{PrayerFajr, PrayerDhuhr, PrayerAsr, PrayerMaghrib, PrayerIsha}

// Title returns the display name used in rendered messages.
func (p Prayer) Title() string {
	switch p {
	case PrayerFajr:
		return "Fajr"
	case PrayerSunrise:
		return "Sunrise"
	case PrayerDhuhr:
		return "Dhuhr"
	case PrayerAsr:
		return "Asr"
	case PrayerMaghrib:
		return "Maghrib"
	case PrayerIsha:
		return "Isha"
	}
	return string(p)
}

type TimeSource string

const (
	SourceCustom   TimeSource = "custom"
	SourceComputed TimeSource = "computed"
)

// AdhanTimes are the six canonical prayer and sun times in HH:MM.
type AdhanTimes struct {
	Fajr    string `json:"fajr"`
	Sunrise string `json:"sunrise"`
	Dhuhr   string `json:"dhuhr"`
	Asr     string `json:"asr"`
	Maghrib string `json:"maghrib"`
	Isha    string `json:"isha"`
}

// Get returns the adhan time for p.
func (a AdhanTimes) Get(p Prayer) string {
	switch p {
	case PrayerFajr:
		return a.Fajr
	case PrayerSunrise:
		return a.Sunrise
	case PrayerDhuhr:
		return a.Dhuhr
	case PrayerAsr:
		return a.Asr
	case PrayerMaghrib:
		return a.Maghrib
	case PrayerIsha:
		return a.Isha
	}
	return ""
}

// JamaatTimes are the congregation times for the five daily prayers.
type JamaatTimes struct {
	Fajr    string `json:"fajr"`
	Dhuhr   string `json:"dhuhr"`
	Asr     string `json:"asr"`
	Maghrib string `json:"maghrib"`
	Isha    string `json:"isha"`
}

// Get returns the jamaat time for p.
func (j JamaatTimes) Get(p Prayer) string {
	switch p {
	case PrayerFajr:
		return j.Fajr
	case PrayerDhuhr:
		return j.Dhuhr
	case PrayerAsr:
		return j.Asr
	case PrayerMaghrib:
		return j.Maghrib
	case PrayerIsha:
		return j.Isha
	}
	return ""
}

// VoluntaryTimes are the start times of the voluntary prayers.
type VoluntaryTimes struct {
	Tahajjud string `json:"tahajjud"`
	Ishraq   string `json:"ishraq"`
	Duha     string `json:"duha"`
}

// EventTimeSet is one mosque's resolved times for one local calendar date.
type EventTimeSet struct {
	MosqueID  uuid.UUID      `json:"mosque_id"`
	Date      string         `json:"date"`
	Timezone  string         `json:"timezone"`
	Source    TimeSource     `json:"source"`
	Adhan     AdhanTimes     `json:"adhan"`
	Jamaat    JamaatTimes    `json:"jamaat"`
	Voluntary VoluntaryTimes `json:"voluntary"`
	HijriDate string         `json:"hijri_date,omitempty"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// JamaatFor applies the congregation rule to a single adhan time.
func JamaatFor(p Prayer, adhan string, delay int) (string, error) {
	minutes, err := ParseClock(adhan)
	if err != nil {
		return "", err
	}
	if p == PrayerMaghrib {
		return FormatClock(minutes), nil
	}
	return FormatClock(minutes + delay), nil
}

// ApplyJamaat derives congregation times from the adhan times.
func (s *EventTimeSet) ApplyJamaat(delay int) error {
	var err error
	if s.Jamaat.Fajr, err = JamaatFor(PrayerFajr, s.Adhan.Fajr, delay); err != nil {
		return err
	}
	if s.Jamaat.Dhuhr, err = JamaatFor(PrayerDhuhr, s.Adhan.Dhuhr, delay); err != nil {
		return err
	}
	if s.Jamaat.Asr, err = JamaatFor(PrayerAsr, s.Adhan.Asr, delay); err != nil {
		return err
	}
	if s.Jamaat.Maghrib, err = JamaatFor(PrayerMaghrib, s.Adhan.Maghrib, delay); err != nil {
		return err
	}
	if s.Jamaat.Isha, err = JamaatFor(PrayerIsha, s.Adhan.Isha, delay); err != nil {
		return err
	}
	return nil
}

// DeriveVoluntary fills the voluntary prayer times. lastThird is the
// provider's start of the last third of the night and may be empty.
func (s *EventTimeSet) DeriveVoluntary(lastThird string) error {
	sunrise, err := ParseClock(s.Adhan.Sunrise)
	if err != nil {
		return err
	}
	dhuhr, err := ParseClock(s.Adhan.Dhuhr)
	if err != nil {
		return err
	}
	s.Voluntary.Ishraq = FormatClock(sunrise + ishraqAfterSunrise)
	s.Voluntary.Duha = FormatClock(sunrise + (dhuhr-sunrise)/2)

	if lt, err := ParseClock(lastThird); err == nil {
		s.Voluntary.Tahajjud = FormatClock(lt)
		return nil
	}

	fajr, err := ParseClock(s.Adhan.Fajr)
	if err != nil {
		return err
	}
	maghrib, err := ParseClock(s.Adhan.Maghrib)
	if err != nil {
		return err
	}
	night := (fajr - maghrib + MinutesPerDay) % MinutesPerDay
	s.Voluntary.Tahajjud = FormatClock(maghrib + night*2/3)
	return nil
}

// Complete reports whether every field the scheduler reads is present. Cache
// entries written before a field existed fail this check and are recomputed.
func (s *EventTimeSet) Complete() bool {
	if s == nil || s.Date == "" {
		return false
	}
	fields := []string{
		s.Adhan.Fajr, s.Adhan.Sunrise, s.Adhan.Dhuhr, s.Adhan.Asr, s.Adhan.Maghrib, s.Adhan.Isha,
		s.Jamaat.Fajr, s.Jamaat.Dhuhr, s.Jamaat.Asr, s.Jamaat.Maghrib, s.Jamaat.Isha,
		s.Voluntary.Tahajjud, s.Voluntary.Ishraq, s.Voluntary.Duha,
	}
	for _, f := range fields {
		if _, err := ParseClock(f); err != nil {
			return false
		}
	}
	return true
}

// TimetableRequest carries the parameters of one remote timetable lookup.
type TimetableRequest struct {
	Date      time.Time
	Latitude  float64
	Longitude float64
	Method    int
	School    int
}

// Timetable is the provider's answer for one day.
type Timetable struct {
	Adhan     AdhanTimes
	LastThird string
	HijriDate string
}

// TimetableProvider fetches computed prayer times from a remote service.
type TimetableProvider interface {
	Timings(ctx context.Context, req TimetableRequest) (*Timetable, error)
	HijriDate(ctx context.Context, date time.Time) (string, error)
}

// PrayerTimeCache stores resolved sets keyed by mosque and local date.
type PrayerTimeCache interface {
	Get(ctx context.Context, mosqueID uuid.UUID, date string) (*EventTimeSet, error)
	Set(ctx context.Context, set *EventTimeSet) error
	DeleteBefore(ctx context.Context, date string) (int64, error)
}
