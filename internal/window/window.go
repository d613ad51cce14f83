// Package window decides whether "now" falls inside the send window of a
// reminder that fires a fixed offset before or after a local event time.
package window

import (
	"time"

	"github.com/masjidconnect/reminder-service/internal/domain"
)

// DefaultWindow is the tolerance, in minutes, used when none is configured.
// It must be at least the trigger interval or reminders can be skipped.
const DefaultWindow = 5

// Target returns the minute of day at which a reminder offset minutes away
// from event should fire.
func Target(event, offset int, dir domain.Direction) int {
	t := event - offset
	if dir == domain.After {
		t = event + offset
	}
	return ((t % domain.MinutesPerDay) + domain.MinutesPerDay) % domain.MinutesPerDay
}

// Delta is the signed circular offset of now from target in minutes, in the
// range (-720, 720]. Positive means now is past target.
func Delta(target, now int) int {
	d := ((now-target)%domain.MinutesPerDay + domain.MinutesPerDay) % domain.MinutesPerDay
	if d > domain.MinutesPerDay/2 {
		d -= domain.MinutesPerDay
	}
	return d
}

// Distance is the shortest circular distance between two minutes of day.
func Distance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	d %= domain.MinutesPerDay
	if alt := domain.MinutesPerDay - d; alt < d {
		return alt
	}
	return d
}

// MinuteOfDay returns minutes since local midnight for t.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// LocalDate returns the calendar date of now in the given zone.
func LocalDate(now time.Time, loc *time.Location) string {
	return now.In(loc).Format(domain.DateLayout)
}

// Evaluator checks reminder windows against a clock.
type Evaluator struct {
	Window int
	Now    func() time.Time
}

func NewEvaluator(window int) *Evaluator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Evaluator{Window: window, Now: time.Now}
}

// IsWithinWindow reports whether the current time in tz is within Window
// minutes, either side, of target, where target is eventLocal shifted by
// offset in direction dir. Distances are circular so windows span midnight.
func (e *Evaluator) IsWithinWindow(eventLocal string, offset int, tz string, dir domain.Direction) (bool, error) {
	if tz == "" {
		return false, domain.ErrInvalidTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return false, domain.ErrInvalidTimezone
	}
	return e.IsWithinWindowIn(eventLocal, offset, loc, dir)
}

// IsWithinWindowIn is IsWithinWindow for an already loaded zone.
func (e *Evaluator) IsWithinWindowIn(eventLocal string, offset int, loc *time.Location, dir domain.Direction) (bool, error) {
	_, ok, err := e.Occurrence(eventLocal, offset, loc, dir)
	return ok, err
}

// Occurrence returns the target instant nearest to the current time, in loc,
// and whether the current time is within the window of it. Every invocation
// inside one window sees the same occurrence, even across midnight, so its
// date identifies the reminder.
func (e *Evaluator) Occurrence(eventLocal string, offset int, loc *time.Location, dir domain.Direction) (time.Time, bool, error) {
	event, err := domain.ParseClock(eventLocal)
	if err != nil {
		return time.Time{}, false, err
	}
	local := e.Now().In(loc).Truncate(time.Minute)
	target, now := Target(event, offset, dir), MinuteOfDay(local)
	occurrence := local.Add(-time.Duration(Delta(target, now)) * time.Minute)
	return occurrence, Distance(target, now) <= e.Window, nil
}
