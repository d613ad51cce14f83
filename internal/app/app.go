// Package app builds the reminder engine from configuration. The HTTP server
// and the reminderctl CLI share it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/masjidconnect/reminder-service/internal/config"
	"github.com/masjidconnect/reminder-service/internal/domain"
	"github.com/masjidconnect/reminder-service/internal/handler"
	"github.com/masjidconnect/reminder-service/internal/metrics"
	"github.com/masjidconnect/reminder-service/internal/middleware"
	"github.com/masjidconnect/reminder-service/internal/prayertimes"
	"github.com/masjidconnect/reminder-service/internal/provider"
	"github.com/masjidconnect/reminder-service/internal/repository/postgres"
	"github.com/masjidconnect/reminder-service/internal/repository/redis"
	"github.com/masjidconnect/reminder-service/internal/service"
	"github.com/masjidconnect/reminder-service/internal/window"
	"github.com/masjidconnect/reminder-service/internal/worker"
)

// App holds the wired services and their connections.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	DB    *postgres.DB
	Redis *redis.Client

	Reminders   *service.ReminderService
	Maintenance *service.MaintenanceService
	Hub         *handler.WebSocketHub
}

// NewLogger builds the JSON logger used by every binary.
func NewLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.App.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}

// New connects to Postgres and Redis and wires the reminder engine.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("connected to PostgreSQL")

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Metrics:  m,
		DB:       db,
		Redis:    redisClient,
		Hub:      handler.NewWebSocketHub(logger),
	}
	a.wire()
	return a, nil
}

func (a *App) wire() {
	cfg, logger, m := a.Config, a.Logger, a.Metrics

	mosqueRepo := postgres.NewMosqueRepository(a.DB)
	subscriberRepo := postgres.NewSubscriberRepository(a.DB)
	messageLogRepo := postgres.NewMessageLogRepository(a.DB)
	scheduledRepo := postgres.NewScheduledMessageRepository(a.DB)
	templateRepo := postgres.NewTemplateRepository(a.DB)
	hadithRepo := postgres.NewHadithRepository(a.DB)

	var locks domain.ReminderLockRepository = postgres.NewReminderLockRepository(a.DB)
	if cfg.Scheduler.LockBackend == config.BackendRedis {
		retention := time.Duration(cfg.Scheduler.LockRetentionDays) * 24 * time.Hour
		locks = redis.NewReminderLockStore(a.Redis, retention)
		if err := a.Redis.CheckLockDurability(context.Background()); err != nil {
			logger.Warn("redis lock backend may lose locks", "error", err)
		}
	}

	var cache domain.PrayerTimeCache = postgres.NewPrayerTimeCache(a.DB)
	if cfg.PrayerTimes.CacheBackend == config.BackendRedis {
		cache = redis.NewPrayerTimeCache(a.Redis, cfg.PrayerTimes.CacheTTL)
	}

	transport := provider.NewRouter(map[domain.Channel]domain.Transport{
		domain.ChannelWhatsApp: provider.NewWhatsAppProvider(cfg.WhatsApp),
		domain.ChannelPush:     provider.NewPushProvider(cfg.Push),
	})

	var limiter domain.RateLimiter
	if cfg.Dispatch.RateLimitPerSec > 0 {
		limiter = redis.NewRateLimiter(a.Redis, cfg.Dispatch.RateLimitPerSec)
	}
	dispatcher := worker.NewDispatcher(transport, limiter, subscriberRepo, logger, m, cfg.Dispatch, cfg.Retry)

	templates := service.NewTemplateService(templateRepo, logger)
	logs := service.NewMessageLogWriter(messageLogRepo, logger)
	resolver := prayertimes.NewResolver(
		provider.NewAladhanClient(cfg.PrayerTimes, logger),
		cache, logger, m, cfg.Scheduler.JamaatDelayMinutes,
	)

	a.Reminders = service.NewReminderService(service.ReminderDeps{
		Mosques:     mosqueRepo,
		Subscribers: subscriberRepo,
		Resolver:    resolver,
		Evaluator:   window.NewEvaluator(cfg.Scheduler.WindowMinutes),
		Locker:      service.NewReminderLocker(locks, cfg.Scheduler.FailOpenOnLockUnavailable, logger, m),
		Guard:       service.NewRecentSendGuard(messageLogRepo, logger),
		Logs:        logs,
		Templates:   templates,
		Hadiths:     hadithRepo,
		Dispatcher:  dispatcher,
	}, logger, m, cfg.Scheduler.GuardLookbackMinutes, cfg.Dispatch.UpdateBatchSize)
	a.Reminders.SetEventBroadcast(a.Hub.BroadcastDispatch)

	scheduled := service.NewScheduledMessageService(
		scheduledRepo, mosqueRepo, subscriberRepo, templates, dispatcher, logs, logger, cfg.Retry.ScheduledMaxCount,
	)
	a.Reminders.AddAuxiliaryTask("scheduled_messages", func(ctx context.Context, now time.Time) error {
		_, err := scheduled.ProcessDue(ctx, now)
		return err
	})

	subscribers := service.NewSubscriberService(subscriberRepo, logger)
	a.Reminders.AddAuxiliaryTask("auto_resume", func(ctx context.Context, now time.Time) error {
		_, err := subscribers.AutoResume(ctx, now)
		return err
	})

	a.Maintenance = service.NewMaintenanceService(
		locks, cache, logger, cfg.Scheduler.LockRetentionDays, cfg.Scheduler.CacheRetentionDays,
	)
}

// Router builds the HTTP surface: health probes, metrics, the dashboard
// websocket and the authenticated cron triggers.
func (a *App) Router() http.Handler {
	health := handler.NewHealthHandler()
	health.AddChecker("postgres", a.DB)
	health.AddChecker("redis", a.Redis)

	cron := handler.NewCronHandler(a.Reminders, a.Maintenance, a.Logger)
	ws := handler.NewWebSocketHandler(a.Hub, a.Config.Server.AllowedOrigins)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Correlation)
	r.Use(middleware.Recovery(a.Logger))
	r.Use(middleware.Logging(a.Logger, a.Metrics))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: a.Config.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet},
		AllowedHeaders: []string{"Authorization", middleware.CorrelationIDHeader},
	}).Handler)

	r.Get("/health", health.Health)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
	r.Get("/ws", ws.HandleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.CronAuth(a.Config.Cron.Secret, a.Logger))
		cron.RegisterRoutes(r)
	})

	return r
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	if err := a.Redis.Close(); err != nil {
		a.Logger.Warn("failed to close Redis", "error", err)
	}
	a.DB.Close()
}
