package service

import (
	"context"
	"log/slog"

	"github.com/masjidconnect/reminder-service/internal/domain"
)

// MessageLogWriter appends message log entries on a best-effort basis. A
// failed insert is retried once without metadata, for databases that predate
// the metadata column. Record never fails the caller.
type MessageLogWriter struct {
	repo   domain.MessageLogRepository
	logger *slog.Logger
}

func NewMessageLogWriter(repo domain.MessageLogRepository, logger *slog.Logger) *MessageLogWriter {
	return &MessageLogWriter{
		repo:   repo,
		logger: logger,
	}
}

// Record stores entry and reports whether it was written.
func (w *MessageLogWriter) Record(ctx context.Context, entry *domain.MessageLog) bool {
	err := w.repo.Create(ctx, entry)
	if err == nil {
		return true
	}

	w.logger.Debug("message log insert failed, retrying without metadata",
		"mosque_id", entry.MosqueID,
		"type", entry.Type,
		"error", err,
	)

	if err := w.repo.CreateWithoutMetadata(ctx, entry); err != nil {
		w.logger.Warn("failed to write message log",
			"mosque_id", entry.MosqueID,
			"type", entry.Type,
			"subtype", entry.Subtype,
			"error", err,
		)
		return false
	}
	return true
}
