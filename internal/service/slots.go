package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/masjidconnect/reminder-service/internal/domain"
)

// reminderSlot is one reminder a mosque may send in a category, e.g. the Fajr
// prayer reminder or the iftar reminder.
type reminderSlot struct {
	key       string
	event     string
	direction domain.Direction

	// offset is fixed for the slot unless cohort is set, in which case every
	// subscriber offset is evaluated separately.
	offset int
	cohort bool

	template string
	vars     map[string]string

	// load supplies extra template variables right before the lock is claimed.
	load func(ctx context.Context) (map[string]string, error)
}

// subtype is the message log subtype. Cohorts are told apart so the log
// guard never confuses two offsets of the same prayer.
func (s reminderSlot) subtype(offset int) string {
	if s.cohort {
		return s.key + ":" + strconv.Itoa(offset)
	}
	return s.key
}

// needsTimes reports whether the category reads resolved prayer times.
func needsTimes(category domain.Category) bool {
	switch category {
	case domain.CategoryPrayer, domain.CategoryRamadan, domain.CategoryNafl:
		return true
	}
	return false
}

// slotsFor lists the reminder slots of category for a mosque on the local day
// of local. set is nil for categories that do not read prayer times.
func (s *ReminderService) slotsFor(category domain.Category, mosque *domain.Mosque, set *domain.EventTimeSet, local time.Time) []reminderSlot {
	switch category {
	case domain.CategoryPrayer:
		return prayerSlots(mosque, set)
	case domain.CategoryJumuah:
		if local.Weekday() != time.Friday {
			return nil
		}
		return s.jumuahSlots(mosque)
	case domain.CategoryRamadan:
		if !mosque.RamadanMode {
			return nil
		}
		return ramadanSlots(mosque, set)
	case domain.CategoryNafl:
		return naflSlots(mosque, set)
	case domain.CategoryHadith:
		return s.hadithSlots(mosque, local)
	}
	return nil
}

func prayerSlots(mosque *domain.Mosque, set *domain.EventTimeSet) []reminderSlot {
	anchor := mosque.Anchor()
	slots := make([]reminderSlot, 0, len(domain.DailyPrayers))
	for _, p := range domain.DailyPrayers {
		event := set.Jamaat.Get(p)
		if anchor == domain.AnchorAdhan {
			event = set.Adhan.Get(p)
		}
		slots = append(slots, reminderSlot{
			key:       string(p),
			event:     event,
			direction: domain.Before,
			cohort:    true,
			template:  domain.TemplatePrayer,
			vars: map[string]string{
				"mosque": mosque.Name,
				"prayer": p.Title(),
				"anchor": string(anchor),
				"time":   event,
			},
		})
	}
	return slots
}

func (s *ReminderService) jumuahSlots(mosque *domain.Mosque) []reminderSlot {
	slots := make([]reminderSlot, 0, len(mosque.JumuahTimes))
	for i, t := range mosque.JumuahTimes {
		minutes, err := domain.ParseClock(t)
		if err != nil {
			s.logger.Warn("invalid jumuah time", "mosque_id", mosque.ID, "time", t)
			continue
		}
		event := domain.FormatClock(minutes)
		slots = append(slots, reminderSlot{
			key:       fmt.Sprintf("jumuah_%d", i+1),
			event:     event,
			direction: domain.Before,
			cohort:    true,
			template:  domain.TemplateJumuah,
			vars: map[string]string{
				"mosque": mosque.Name,
				"time":   event,
			},
		})
	}
	return slots
}

func ramadanSlots(mosque *domain.Mosque, set *domain.EventTimeSet) []reminderSlot {
	return []reminderSlot{
		{
			key:       "suhoor",
			event:     set.Adhan.Fajr,
			direction: domain.Before,
			offset:    mosque.SuhoorOffset,
			template:  domain.TemplateSuhoor,
			vars:      map[string]string{"mosque": mosque.Name, "time": set.Adhan.Fajr},
		},
		{
			key:       "iftar",
			event:     set.Adhan.Maghrib,
			direction: domain.Before,
			offset:    mosque.IftarOffset,
			template:  domain.TemplateIftar,
			vars:      map[string]string{"mosque": mosque.Name, "time": set.Adhan.Maghrib},
		},
	}
}

func naflSlots(mosque *domain.Mosque, set *domain.EventTimeSet) []reminderSlot {
	nafl := func(key, title, event string, offset int, at string) reminderSlot {
		return reminderSlot{
			key:       key,
			event:     event,
			direction: domain.After,
			offset:    offset,
			template:  domain.TemplateNafl,
			vars:      map[string]string{"mosque": mosque.Name, "prayer": title, "time": at},
		}
	}
	return []reminderSlot{
		nafl("tahajjud", "Tahajjud", set.Voluntary.Tahajjud, 0, set.Voluntary.Tahajjud),
		nafl("ishraq", "Ishraq", set.Adhan.Sunrise, 20, set.Voluntary.Ishraq),
		nafl("duha", "Duha", set.Voluntary.Duha, 0, set.Voluntary.Duha),
	}
}

func (s *ReminderService) hadithSlots(mosque *domain.Mosque, local time.Time) []reminderSlot {
	if mosque.HadithTime == "" || s.hadiths == nil {
		return nil
	}
	day := local.YearDay()
	return []reminderSlot{{
		key:       "hadith",
		event:     mosque.HadithTime,
		direction: domain.After,
		template:  domain.TemplateHadith,
		vars:      map[string]string{"mosque": mosque.Name},
		load: func(ctx context.Context) (map[string]string, error) {
			h, err := s.hadiths.ForDay(ctx, day)
			if err != nil {
				return nil, err
			}
			return map[string]string{"hadith": h.Text, "source": h.Source}, nil
		},
	}}
}
