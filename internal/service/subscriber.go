package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/masjidconnect/reminder-service/internal/domain"
)

// SubscriberService handles subscriber lifecycle tasks
type SubscriberService struct {
	repo   domain.SubscriberRepository
	logger *slog.Logger
}

func NewSubscriberService(repo domain.SubscriberRepository, logger *slog.Logger) *SubscriberService {
	return &SubscriberService{
		repo:   repo,
		logger: logger,
	}
}

// AutoResume reactivates paused subscribers whose pause has lapsed.
func (s *SubscriberService) AutoResume(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.repo.ResumeExpiredPauses(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to resume paused subscribers: %w", err)
	}
	if n > 0 {
		s.logger.Info("paused subscribers resumed", "count", n)
	}
	return n, nil
}
