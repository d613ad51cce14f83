// Package prayertimes resolves a mosque's prayer and voluntary times for its
// current local day, from operator-entered custom times or from the remote
// timetable provider behind a per-day cache.
package prayertimes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/masjidconnect/reminder-service/internal/domain"
	"github.com/masjidconnect/reminder-service/internal/metrics"
)

// Cache lookup outcomes recorded in metrics.
const (
	resultCustom  = "custom"
	resultHit     = "hit"
	resultMiss    = "miss"
	resultStale   = "stale"
	resultFailure = "provider_error"
)

// Resolver produces EventTimeSets.
type Resolver struct {
	provider    domain.TimetableProvider
	cache       domain.PrayerTimeCache
	logger      *slog.Logger
	metrics     *metrics.Metrics
	jamaatDelay int
	now         func() time.Time
}

// NewResolver creates a Resolver. metrics may be nil.
func NewResolver(provider domain.TimetableProvider, cache domain.PrayerTimeCache, logger *slog.Logger, m *metrics.Metrics, jamaatDelay int) *Resolver {
	if jamaatDelay <= 0 {
		jamaatDelay = domain.DefaultJamaatDelay
	}
	return &Resolver{
		provider:    provider,
		cache:       cache,
		logger:      logger,
		metrics:     m,
		jamaatDelay: jamaatDelay,
		now:         time.Now,
	}
}

// Resolve returns the set for the mosque's local calendar date at now.
func (r *Resolver) Resolve(ctx context.Context, mosque *domain.Mosque, now time.Time) (*domain.EventTimeSet, error) {
	loc, err := mosque.Location()
	if err != nil {
		return nil, err
	}
	local := now.In(loc)
	date := local.Format(domain.DateLayout)

	if mosque.UseCustomTimes {
		if mosque.CustomTimes.Complete() {
			return r.fromCustom(ctx, mosque, local)
		}
		r.logger.Warn("custom times incomplete, using computed times",
			"mosque_id", mosque.ID,
		)
	}

	cached, err := r.cache.Get(ctx, mosque.ID, date)
	switch {
	case err == nil && cached.Complete():
		r.record(resultHit)
		return cached, nil
	case err == nil:
		r.record(resultStale)
	case errors.Is(err, domain.ErrNotFound):
		r.record(resultMiss)
	default:
		r.logger.Warn("prayer time cache read failed",
			"mosque_id", mosque.ID,
			"date", date,
			"error", err,
		)
		r.record(resultMiss)
	}

	set, err := r.fromProvider(ctx, mosque, local)
	if err != nil {
		r.record(resultFailure)
		return nil, err
	}

	if err := r.cache.Set(ctx, set); err != nil {
		r.logger.Warn("prayer time cache write failed",
			"mosque_id", mosque.ID,
			"date", date,
			"error", err,
		)
	}

	return set, nil
}

// fromCustom builds the set straight from the operator's times. The cache is
// neither read nor written on this path.
func (r *Resolver) fromCustom(ctx context.Context, mosque *domain.Mosque, local time.Time) (*domain.EventTimeSet, error) {
	r.record(resultCustom)

	ct := mosque.CustomTimes
	set := &domain.EventTimeSet{
		MosqueID: mosque.ID,
		Date:     local.Format(domain.DateLayout),
		Timezone: mosque.Timezone,
		Source:   domain.SourceCustom,
		Adhan: domain.AdhanTimes{
			Fajr:    normalize(ct.Fajr),
			Sunrise: normalize(ct.Sunrise),
			Dhuhr:   normalize(ct.Dhuhr),
			Asr:     normalize(ct.Asr),
			Maghrib: normalize(ct.Maghrib),
			Isha:    normalize(ct.Isha),
		},
		FetchedAt: r.now().UTC(),
	}
	if err := set.ApplyJamaat(r.jamaatDelay); err != nil {
		return nil, err
	}
	if err := set.DeriveVoluntary(""); err != nil {
		return nil, err
	}

	if hijri, err := r.provider.HijriDate(ctx, local); err == nil {
		set.HijriDate = hijri
	} else {
		r.logger.Debug("hijri date lookup failed", "mosque_id", mosque.ID, "error", err)
	}

	return set, nil
}

func (r *Resolver) fromProvider(ctx context.Context, mosque *domain.Mosque, local time.Time) (*domain.EventTimeSet, error) {
	table, err := r.provider.Timings(ctx, domain.TimetableRequest{
		Date:      local,
		Latitude:  mosque.Latitude,
		Longitude: mosque.Longitude,
		Method:    mosque.CalculationMethod,
		School:    mosque.Madhab.School(),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch timetable for mosque %s: %w", mosque.ID, err)
	}

	set := &domain.EventTimeSet{
		MosqueID:  mosque.ID,
		Date:      local.Format(domain.DateLayout),
		Timezone:  mosque.Timezone,
		Source:    domain.SourceComputed,
		Adhan:     table.Adhan,
		HijriDate: table.HijriDate,
		FetchedAt: r.now().UTC(),
	}
	if err := set.ApplyJamaat(r.jamaatDelay); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIncompleteTimes, err)
	}
	if err := set.DeriveVoluntary(table.LastThird); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIncompleteTimes, err)
	}
	return set, nil
}

func (r *Resolver) record(result string) {
	if r.metrics != nil {
		r.metrics.RecordCacheLookup(result)
	}
}

// normalize rewrites a parseable clock as zero-padded HH:MM.
func normalize(clock string) string {
	m, err := domain.ParseClock(clock)
	if err != nil {
		return clock
	}
	return domain.FormatClock(m)
}
