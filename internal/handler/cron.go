package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/masjidconnect/reminder-service/internal/domain"
	"github.com/masjidconnect/reminder-service/internal/service"
)

// MaintenanceCategory is the trigger route that purges expired locks and
// cached prayer times instead of sending reminders.
const MaintenanceCategory = "maintenance"

// ReminderRunner runs one reminder category.
type ReminderRunner interface {
	Run(ctx context.Context, category domain.Category) (*service.RunSummary, error)
}

// Purger removes expired bookkeeping rows.
type Purger interface {
	Purge(ctx context.Context, now time.Time) (*service.PurgeResult, error)
}

// TriggerResponse is the body returned to the external scheduler.
type TriggerResponse struct {
	Success    bool                 `json:"success"`
	Sent       int                  `json:"sent"`
	DurationMs int64                `json:"durationMs"`
	Category   string               `json:"category,omitempty"`
	Skipped    int                  `json:"skipped,omitempty"`
	Purged     *service.PurgeResult `json:"purged,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// CronHandler serves the scheduler trigger endpoints
type CronHandler struct {
	reminders   ReminderRunner
	maintenance Purger
	logger      *slog.Logger
}

// NewCronHandler creates a new CronHandler
func NewCronHandler(reminders ReminderRunner, maintenance Purger, logger *slog.Logger) *CronHandler {
	return &CronHandler{
		reminders:   reminders,
		maintenance: maintenance,
		logger:      logger,
	}
}

// RegisterRoutes registers cron routes
func (h *CronHandler) RegisterRoutes(r chi.Router) {
	r.Get("/cron/{category}", h.Trigger)
}

// Trigger runs one reminder category
// @Summary Run a reminder category
// @Description Evaluates every active mosque for the category and sends the reminders that are due
// @Tags cron
// @Produce json
// @Param category path string true "prayer, jumuah, ramadan, nafl, hadith, announcements or maintenance"
// @Success 200 {object} TriggerResponse
// @Failure 401 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} TriggerResponse
// @Router /cron/{category} [get]
func (h *CronHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := chi.URLParam(r, "category")

	if name == MaintenanceCategory && h.maintenance != nil {
		h.purge(w, r, start)
		return
	}

	category, err := domain.ParseCategory(name)
	if err != nil {
		HandleError(w, err)
		return
	}

	summary, err := h.reminders.Run(r.Context(), category)
	if err != nil {
		h.logger.Error("reminder run failed", "category", category, "error", err)
		writeJSON(w, http.StatusInternalServerError, TriggerResponse{
			Success:    false,
			DurationMs: time.Since(start).Milliseconds(),
			Category:   name,
			Error:      "reminder run failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, TriggerResponse{
		Success:    true,
		Sent:       summary.Sent,
		DurationMs: time.Since(start).Milliseconds(),
		Category:   name,
		Skipped:    summary.Skipped,
	})
}

func (h *CronHandler) purge(w http.ResponseWriter, r *http.Request, start time.Time) {
	result, err := h.maintenance.Purge(r.Context(), time.Now())
	if err != nil {
		// partial purges are retried on the next run
		h.logger.Warn("maintenance purge incomplete", "error", err)
	}
	writeJSON(w, http.StatusOK, TriggerResponse{
		Success:    true,
		DurationMs: time.Since(start).Milliseconds(),
		Category:   MaintenanceCategory,
		Purged:     result,
	})
}
