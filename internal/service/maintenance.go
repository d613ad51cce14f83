package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/masjidconnect/reminder-service/internal/domain"
)

// PurgeResult counts the rows removed by a maintenance run.
type PurgeResult struct {
	Locks int64 `json:"locks"`
	Cache int64 `json:"cache"`
}

// MaintenanceService removes expired reminder locks and cached prayer times.
type MaintenanceService struct {
	locks          domain.ReminderLockRepository
	cache          domain.PrayerTimeCache
	logger         *slog.Logger
	lockRetention  int
	cacheRetention int
}

func NewMaintenanceService(locks domain.ReminderLockRepository, cache domain.PrayerTimeCache, logger *slog.Logger, lockRetentionDays, cacheRetentionDays int) *MaintenanceService {
	if lockRetentionDays <= 0 {
		lockRetentionDays = 7
	}
	if cacheRetentionDays <= 0 {
		cacheRetentionDays = 3
	}
	return &MaintenanceService{
		locks:          locks,
		cache:          cache,
		logger:         logger,
		lockRetention:  lockRetentionDays,
		cacheRetention: cacheRetentionDays,
	}
}

// Purge deletes locks and cache rows dated before the retention cutoffs. Both
// deletes are attempted even if the first fails.
func (s *MaintenanceService) Purge(ctx context.Context, now time.Time) (*PurgeResult, error) {
	result := &PurgeResult{}
	var errs []error

	lockCutoff := now.UTC().AddDate(0, 0, -s.lockRetention).Format(domain.DateLayout)
	n, err := s.locks.DeleteBefore(ctx, lockCutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("purge reminder locks: %w", err))
	}
	result.Locks = n

	cacheCutoff := now.UTC().AddDate(0, 0, -s.cacheRetention).Format(domain.DateLayout)
	n, err = s.cache.DeleteBefore(ctx, cacheCutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("purge prayer time cache: %w", err))
	}
	result.Cache = n

	s.logger.Info("maintenance purge completed",
		"locks", result.Locks,
		"cache", result.Cache,
		"lock_cutoff", lockCutoff,
		"cache_cutoff", cacheCutoff,
	)
	return result, errors.Join(errs...)
}
