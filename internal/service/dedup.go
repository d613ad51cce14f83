package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/masjidconnect/reminder-service/internal/domain"
	"github.com/masjidconnect/reminder-service/internal/metrics"
)

// ClaimResult is the outcome of a reminder lock claim.
type ClaimResult int

const (
	// ClaimAcquired means this caller owns the reminder and must send it.
	ClaimAcquired ClaimResult = iota
	// ClaimHeld means another invocation already owns it.
	ClaimHeld
	// ClaimUnavailable means the lock store could not answer.
	ClaimUnavailable
)

func (r ClaimResult) String() string {
	switch r {
	case ClaimAcquired:
		return "acquired"
	case ClaimHeld:
		return "held"
	default:
		return "unavailable"
	}
}

// ReminderLocker claims reminder locks and reports store failures as
// ClaimUnavailable instead of errors.
type ReminderLocker struct {
	repo     domain.ReminderLockRepository
	failOpen bool
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewReminderLocker creates a ReminderLocker. m may be nil.
func NewReminderLocker(repo domain.ReminderLockRepository, failOpen bool, logger *slog.Logger, m *metrics.Metrics) *ReminderLocker {
	return &ReminderLocker{
		repo:     repo,
		failOpen: failOpen,
		logger:   logger,
		metrics:  m,
	}
}

// FailOpen reports whether an unavailable lock store should still let the
// reminder through.
func (l *ReminderLocker) FailOpen() bool {
	return l.failOpen
}

// Claim tries to take the lock for (mosque, key, date, offset).
func (l *ReminderLocker) Claim(ctx context.Context, mosqueID uuid.UUID, key, date string, offset int) ClaimResult {
	result := ClaimAcquired
	claimed, err := l.repo.TryClaim(ctx, domain.NewReminderLock(mosqueID, key, date, offset))
	switch {
	case err != nil:
		result = ClaimUnavailable
		l.logger.Warn("reminder lock unavailable",
			"mosque_id", mosqueID,
			"reminder_key", key,
			"date", date,
			"offset", offset,
			"fail_open", l.failOpen,
			"error", err,
		)
	case !claimed:
		result = ClaimHeld
	}

	if l.metrics != nil {
		l.metrics.RecordLockClaim(result.String())
	}
	return result
}

// RecentSendGuard scans the message log for a recent send of the same
// reminder. It only backs up the lock when the lock store is unavailable.
type RecentSendGuard struct {
	logs   domain.MessageLogRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewRecentSendGuard(logs domain.MessageLogRepository, logger *slog.Logger) *RecentSendGuard {
	return &RecentSendGuard{
		logs:   logs,
		logger: logger,
		now:    time.Now,
	}
}

// WasAlreadySent reports whether a log entry for (mosque, category, subtype)
// exists within the last lookbackMinutes. Lookup errors count as not sent.
func (g *RecentSendGuard) WasAlreadySent(ctx context.Context, mosqueID uuid.UUID, category domain.Category, subtype string, lookbackMinutes int) bool {
	since := g.now().Add(-time.Duration(lookbackMinutes) * time.Minute)
	exists, err := g.logs.ExistsSince(ctx, mosqueID, category, subtype, since)
	if err != nil {
		g.logger.Warn("recent send lookup failed",
			"mosque_id", mosqueID,
			"type", category,
			"subtype", subtype,
			"error", err,
		)
		return false
	}
	return exists
}
