package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/masjidconnect/reminder-service/internal/domain"
	"github.com/masjidconnect/reminder-service/internal/worker"
)

const (
	scheduledBatchSize = 50

	// scheduledLease outlives the trigger timeout; a row still processing
	// after it was abandoned by a crashed or timed out run.
	scheduledLease = 10 * time.Minute
)

// ScheduledMessageService delivers announcements queued for a future time.
type ScheduledMessageService struct {
	repo        domain.ScheduledMessageRepository
	mosques     domain.MosqueRepository
	subscribers domain.SubscriberRepository
	templates   *TemplateService
	dispatcher  BatchDispatcher
	logs        *MessageLogWriter
	logger      *slog.Logger
	maxRetries  int
	batchSize   int
}

func NewScheduledMessageService(
	repo domain.ScheduledMessageRepository,
	mosques domain.MosqueRepository,
	subscribers domain.SubscriberRepository,
	templates *TemplateService,
	dispatcher BatchDispatcher,
	logs *MessageLogWriter,
	logger *slog.Logger,
	maxRetries int,
) *ScheduledMessageService {
	if maxRetries <= 0 {
		maxRetries = domain.DefaultMaxScheduledRetries
	}
	return &ScheduledMessageService{
		repo:        repo,
		mosques:     mosques,
		subscribers: subscribers,
		templates:   templates,
		dispatcher:  dispatcher,
		logs:        logs,
		logger:      logger,
		maxRetries:  maxRetries,
		batchSize:   scheduledBatchSize,
	}
}

// ProcessDue claims the due messages and delivers each one. A failed message
// goes back to pending until it has failed maxRetries times. It returns the
// number of successful sends.
func (s *ScheduledMessageService) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	messages, err := s.repo.ClaimDue(ctx, now, now.Add(-scheduledLease), s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to claim scheduled messages: %w", err)
	}
	if len(messages) == 0 {
		return 0, nil
	}

	s.logger.Info("processing scheduled messages", "count", len(messages))

	sent := 0
	for _, msg := range messages {
		if msg.RetryCount >= s.maxRetries {
			msg.Abandon(now.UTC())
			s.logger.Warn("scheduled message abandoned",
				"message_id", msg.ID,
				"mosque_id", msg.MosqueID,
				"retry_count", msg.RetryCount,
				"error", msg.LastError,
			)
			s.update(ctx, msg)
			continue
		}

		n, err := s.deliver(ctx, msg, now)
		if err != nil {
			msg.RecordFailure(err.Error(), s.maxRetries)
			s.logger.Warn("scheduled message failed",
				"message_id", msg.ID,
				"mosque_id", msg.MosqueID,
				"retry_count", msg.RetryCount,
				"status", msg.Status,
				"error", err,
			)
		} else {
			msg.MarkSent(now.UTC())
			sent += n
		}

		s.update(ctx, msg)
	}
	return sent, nil
}

func (s *ScheduledMessageService) update(ctx context.Context, msg *domain.ScheduledMessage) {
	if err := s.repo.Update(ctx, msg); err != nil {
		s.logger.Error("failed to update scheduled message",
			"message_id", msg.ID,
			"error", err,
		)
	}
}

func (s *ScheduledMessageService) deliver(ctx context.Context, scheduled *domain.ScheduledMessage, now time.Time) (int, error) {
	mosque, err := s.mosques.GetByID(ctx, scheduled.MosqueID)
	if err != nil {
		return 0, fmt.Errorf("load mosque: %w", err)
	}

	subscribers, err := s.subscribers.ListEligible(ctx, mosque.ID, domain.CategoryAnnouncements)
	if err != nil {
		return 0, fmt.Errorf("list subscribers: %w", err)
	}
	recipients := make([]domain.Recipient, 0, len(subscribers))
	for _, sub := range subscribers {
		if sub.Eligible(domain.CategoryAnnouncements) {
			recipients = append(recipients, sub.Recipient())
		}
	}
	if len(recipients) == 0 {
		return 0, nil
	}

	msg, err := s.templates.Render(ctx, domain.TemplateAnnouncement, map[string]string{
		"mosque":  mosque.Name,
		"content": scheduled.Content,
	})
	if err != nil {
		return 0, err
	}
	msg.Data = map[string]string{
		"category":   string(domain.CategoryAnnouncements),
		"message_id": scheduled.ID.String(),
		"mosque_id":  mosque.ID.String(),
	}

	result := s.dispatcher.Dispatch(ctx, recipients, msg)

	entry := domain.NewMessageLog(mosque.ID, domain.CategoryAnnouncements, "scheduled", msg.Body)
	entry.RecipientCount = result.Total
	entry.SuccessCount = result.Successful
	entry.FailCount = result.Failed
	entry.Metadata["scheduled_message_id"] = scheduled.ID.String()
	entry.Metadata["attempt"] = scheduled.RetryCount + 1
	s.logs.Record(ctx, entry)

	if result.Successful == 0 && result.Failed > 0 {
		return 0, errors.New("every recipient failed")
	}

	err = worker.ForEachChunk(result.Succeeded, 100, func(ids []uuid.UUID) error {
		return s.subscribers.TouchLastMessage(ctx, ids, now)
	})
	if err != nil {
		s.logger.Warn("failed to update last message time", "mosque_id", mosque.ID, "error", err)
	}
	return result.Successful, nil
}
