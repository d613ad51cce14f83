package service

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/masjidconnect/reminder-service/internal/domain"
	"github.com/masjidconnect/reminder-service/internal/metrics"
	"github.com/masjidconnect/reminder-service/internal/window"
	"github.com/masjidconnect/reminder-service/internal/worker"
)

// TimeResolver produces a mosque's event times for the local day of now.
type TimeResolver interface {
	Resolve(ctx context.Context, mosque *domain.Mosque, now time.Time) (*domain.EventTimeSet, error)
}

// BatchDispatcher sends one message to many recipients.
type BatchDispatcher interface {
	Dispatch(ctx context.Context, recipients []domain.Recipient, msg domain.Message) *domain.DispatchResult
}

// AuxiliaryTask runs after the reminder loop of every invocation.
type AuxiliaryTask struct {
	Name string
	Run  func(ctx context.Context, now time.Time) error
}

// RunSummary is the aggregate outcome of one invocation.
type RunSummary struct {
	Category   domain.Category `json:"category"`
	Mosques    int             `json:"mosques"`
	Dispatches int             `json:"dispatches"`
	Sent       int             `json:"sent"`
	Failed     int             `json:"failed"`
	Skipped    int             `json:"skipped"`
	Duration   time.Duration   `json:"-"`
}

// ReminderDeps are the collaborators of a ReminderService.
type ReminderDeps struct {
	Mosques     domain.MosqueRepository
	Subscribers domain.SubscriberRepository
	Resolver    TimeResolver
	Evaluator   *window.Evaluator
	Locker      *ReminderLocker
	Guard       *RecentSendGuard
	Logs        *MessageLogWriter
	Templates   *TemplateService
	Hadiths     domain.HadithRepository
	Dispatcher  BatchDispatcher
}

// ReminderService runs one reminder category across all active mosques.
type ReminderService struct {
	mosques     domain.MosqueRepository
	subscribers domain.SubscriberRepository
	resolver    TimeResolver
	evaluator   *window.Evaluator
	locker      *ReminderLocker
	guard       *RecentSendGuard
	logs        *MessageLogWriter
	templates   *TemplateService
	hadiths     domain.HadithRepository
	dispatcher  BatchDispatcher
	logger      *slog.Logger
	metrics     *metrics.Metrics
	validate    *validator.Validate

	guardLookback   int
	updateBatchSize int
	auxiliary       []AuxiliaryTask
	eventBroadcast  func(event domain.DispatchEvent)
}

// NewReminderService creates a new ReminderService. m may be nil.
func NewReminderService(deps ReminderDeps, logger *slog.Logger, m *metrics.Metrics, guardLookback, updateBatchSize int) *ReminderService {
	if deps.Evaluator == nil {
		deps.Evaluator = window.NewEvaluator(window.DefaultWindow)
	}
	if guardLookback <= 0 {
		guardLookback = 2 * deps.Evaluator.Window
	}
	if updateBatchSize <= 0 {
		updateBatchSize = 100
	}
	return &ReminderService{
		mosques:         deps.Mosques,
		subscribers:     deps.Subscribers,
		resolver:        deps.Resolver,
		evaluator:       deps.Evaluator,
		locker:          deps.Locker,
		guard:           deps.Guard,
		logs:            deps.Logs,
		templates:       deps.Templates,
		hadiths:         deps.Hadiths,
		dispatcher:      deps.Dispatcher,
		logger:          logger,
		metrics:         m,
		validate:        validator.New(),
		guardLookback:   guardLookback,
		updateBatchSize: updateBatchSize,
	}
}

// SetEventBroadcast sets the function to broadcast dispatch events
func (s *ReminderService) SetEventBroadcast(fn func(event domain.DispatchEvent)) {
	s.eventBroadcast = fn
}

// AddAuxiliaryTask registers a task to run after the reminder loop.
func (s *ReminderService) AddAuxiliaryTask(name string, fn func(ctx context.Context, now time.Time) error) {
	s.auxiliary = append(s.auxiliary, AuxiliaryTask{Name: name, Run: fn})
}

// Run evaluates every reminder of category for every active mosque and sends
// the ones whose window is open and whose lock this invocation wins. Only a
// failure to list mosques is returned as an error.
func (s *ReminderService) Run(ctx context.Context, category domain.Category) (*RunSummary, error) {
	start := time.Now()
	if !category.IsValid() {
		return nil, domain.ErrUnknownCategory
	}

	now := s.evaluator.Now()
	summary := &RunSummary{Category: category}

	if category != domain.CategoryAnnouncements {
		mosques, err := s.mosques.ListActive(ctx)
		if err != nil {
			s.recordTrigger(category, "error", time.Since(start))
			return nil, fmt.Errorf("failed to list mosques: %w", err)
		}
		summary.Mosques = len(mosques)

		for _, mosque := range mosques {
			if ctx.Err() != nil {
				break
			}
			s.runMosque(ctx, category, mosque, now, summary)
		}
	}

	s.runAuxiliary(ctx, now)

	summary.Duration = time.Since(start)
	s.recordTrigger(category, "success", summary.Duration)

	s.logger.Info("reminder run completed",
		"category", category,
		"mosques", summary.Mosques,
		"dispatches", summary.Dispatches,
		"sent", summary.Sent,
		"failed", summary.Failed,
		"duration_ms", summary.Duration.Milliseconds(),
	)
	return summary, nil
}

func (s *ReminderService) runMosque(ctx context.Context, category domain.Category, mosque *domain.Mosque, now time.Time, summary *RunSummary) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("panic while processing mosque",
				"mosque_id", mosque.ID,
				"category", category,
				"panic", p,
			)
		}
	}()

	if err := s.validate.Struct(mosque); err != nil {
		s.logger.Warn("skipping misconfigured mosque",
			"mosque_id", mosque.ID,
			"error", err,
		)
		return
	}
	loc, err := mosque.Location()
	if err != nil {
		s.logger.Warn("skipping mosque with invalid timezone",
			"mosque_id", mosque.ID,
			"timezone", mosque.Timezone,
		)
		return
	}
	local := now.In(loc)

	var set *domain.EventTimeSet
	if needsTimes(category) {
		set, err = s.resolver.Resolve(ctx, mosque, now)
		if err != nil {
			s.logger.Warn("failed to resolve prayer times, skipping mosque",
				"mosque_id", mosque.ID,
				"category", category,
				"error", err,
			)
			return
		}
	}

	var subscribers []*domain.Subscriber
	loaded := false

	for _, slot := range s.slotsFor(category, mosque, set, local) {
		offsets := []int{slot.offset}
		if slot.cohort {
			offsets = domain.ReminderOffsets
		}

		for _, offset := range offsets {
			occurrence, match, err := s.evaluator.Occurrence(slot.event, offset, loc, slot.direction)
			if err != nil {
				s.logger.Warn("invalid event time",
					"mosque_id", mosque.ID,
					"reminder_key", slot.key,
					"event", slot.event,
					"error", err,
				)
				break
			}
			if !match {
				continue
			}

			if !loaded {
				subscribers, err = s.subscribers.ListEligible(ctx, mosque.ID, category)
				if err != nil {
					s.logger.Error("failed to list subscribers",
						"mosque_id", mosque.ID,
						"category", category,
						"error", err,
					)
					return
				}
				loaded = true
			}

			cohort := cohortOf(subscribers, category, slot, offset)
			if len(cohort) == 0 {
				continue
			}
			s.deliver(ctx, category, mosque, slot, offset, occurrence.Format(domain.DateLayout), now, cohort, summary)
		}
	}
}

func cohortOf(subscribers []*domain.Subscriber, category domain.Category, slot reminderSlot, offset int) []*domain.Subscriber {
	cohort := make([]*domain.Subscriber, 0, len(subscribers))
	for _, sub := range subscribers {
		if !sub.Eligible(category) {
			continue
		}
		if slot.cohort && sub.NormalizedOffset() != offset {
			continue
		}
		cohort = append(cohort, sub)
	}
	return cohort
}

func (s *ReminderService) deliver(
	ctx context.Context,
	category domain.Category,
	mosque *domain.Mosque,
	slot reminderSlot,
	offset int,
	date string,
	now time.Time,
	cohort []*domain.Subscriber,
	summary *RunSummary,
) {
	vars := maps.Clone(slot.vars)
	vars["offset"] = strconv.Itoa(offset)
	if slot.load != nil {
		extra, err := slot.load(ctx)
		if err != nil {
			s.logger.Warn("failed to load reminder content",
				"mosque_id", mosque.ID,
				"reminder_key", slot.key,
				"error", err,
			)
			return
		}
		maps.Copy(vars, extra)
	}

	msg, err := s.templates.Render(ctx, slot.template, vars)
	if err != nil {
		s.logger.Error("failed to render reminder",
			"mosque_id", mosque.ID,
			"reminder_key", slot.key,
			"error", err,
		)
		return
	}

	subtype := slot.subtype(offset)
	switch s.locker.Claim(ctx, mosque.ID, slot.key, date, offset) {
	case ClaimHeld:
		summary.Skipped++
		return
	case ClaimUnavailable:
		if !s.locker.FailOpen() {
			summary.Skipped++
			return
		}
		if s.guard != nil && s.guard.WasAlreadySent(ctx, mosque.ID, category, subtype, s.guardLookback) {
			summary.Skipped++
			return
		}
	}

	msg.Data = map[string]string{
		"category":     string(category),
		"reminder_key": slot.key,
		"mosque_id":    mosque.ID.String(),
		"date":         date,
	}

	recipients := make([]domain.Recipient, 0, len(cohort))
	channels := make(map[uuid.UUID]domain.Channel, len(cohort))
	for _, sub := range cohort {
		recipients = append(recipients, sub.Recipient())
		channels[sub.ID] = sub.Channel
	}

	result := s.dispatcher.Dispatch(ctx, recipients, msg)

	if len(result.Succeeded) > 0 {
		err := worker.ForEachChunk(result.Succeeded, s.updateBatchSize, func(ids []uuid.UUID) error {
			return s.subscribers.TouchLastMessage(ctx, ids, now)
		})
		if err != nil {
			s.logger.Warn("failed to update last message time",
				"mosque_id", mosque.ID,
				"error", err,
			)
		}
	}

	entry := domain.NewMessageLog(mosque.ID, category, subtype, msg.Body)
	entry.RecipientCount = result.Total
	entry.SuccessCount = result.Successful
	entry.FailCount = result.Failed
	entry.Metadata["reminder_key"] = slot.key
	entry.Metadata["offset"] = offset
	entry.Metadata["date"] = date
	entry.Metadata["direction"] = slot.direction.String()
	entry.Metadata["event_time"] = slot.event
	entry.Metadata["expired"] = len(result.Expired)
	s.logs.Record(ctx, entry)

	summary.Dispatches++
	summary.Sent += result.Successful
	summary.Failed += result.Failed

	s.logger.Info("reminder dispatched",
		"mosque_id", mosque.ID,
		"category", category,
		"reminder_key", slot.key,
		"offset", offset,
		"total", result.Total,
		"successful", result.Successful,
		"failed", result.Failed,
	)

	s.recordDelivery(category, result, channels)
	s.broadcastEvent(domain.DispatchEvent{
		MosqueID:    mosque.ID,
		Category:    category,
		ReminderKey: slot.key,
		Offset:      offset,
		Total:       result.Total,
		Successful:  result.Successful,
		Failed:      result.Failed,
		At:          now.UTC(),
	})
}

// runAuxiliary runs each auxiliary task behind its own recover so a failing
// task never affects the invocation's result.
func (s *ReminderService) runAuxiliary(ctx context.Context, now time.Time) {
	for _, task := range s.auxiliary {
		func() {
			defer func() {
				if p := recover(); p != nil {
					s.logger.Error("auxiliary task panicked", "task", task.Name, "panic", p)
				}
			}()
			if err := task.Run(ctx, now); err != nil {
				s.logger.Error("auxiliary task failed", "task", task.Name, "error", err)
			}
		}()
	}
}

func (s *ReminderService) recordDelivery(category domain.Category, result *domain.DispatchResult, channels map[uuid.UUID]domain.Channel) {
	if s.metrics == nil {
		return
	}
	sent := make(map[domain.Channel]int)
	for _, id := range result.Succeeded {
		sent[channels[id]]++
	}
	for channel, n := range sent {
		s.metrics.RecordSent(string(category), string(channel), n)
	}
	if expired := len(result.Expired); expired > 0 {
		s.metrics.RecordFailed(string(category), "gone", expired)
	}
	if other := result.Failed - len(result.Expired); other > 0 {
		s.metrics.RecordFailed(string(category), "delivery", other)
	}
}

func (s *ReminderService) recordTrigger(category domain.Category, outcome string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordTrigger(string(category), outcome, d)
	}
}

func (s *ReminderService) broadcastEvent(event domain.DispatchEvent) {
	if s.eventBroadcast != nil {
		s.eventBroadcast(event)
	}
}
