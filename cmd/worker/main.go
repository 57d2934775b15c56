package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/noah-isme/glassworks/internal/app"
	"github.com/noah-isme/glassworks/internal/backup"
	"github.com/noah-isme/glassworks/internal/common"
	"github.com/noah-isme/glassworks/internal/config"
	"github.com/noah-isme/glassworks/internal/lead"
	"github.com/noah-isme/glassworks/internal/obs"
	"github.com/noah-isme/glassworks/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "glassworks"), nil)
	if err := resilience.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		logger.Error().Err(err).Msg("register breaker metrics")
	}
	go serveMetrics(envOrDefault("WORKER_METRICS_ADDR", ":9091"), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, cfg, logger, app.Options{ServiceName: "glassworks-worker", RedisTracing: true, SkipMigrations: true})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	backupService, err := backup.NewService(backup.Config{
		Redis:  deps.Redis,
		Store:  deps.Store,
		TTL:    cfg.BackupTTL,
		Logger: logger.With().Str("task", backup.TypeScheduled).Logger(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise backup service")
	}

	webhook := resilience.NewHTTPClient(resilience.ClientConfig{
		Target:      "lead-webhook",
		Timeout:     cfg.OutboundTimeout,
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseBackoff: cfg.RetryBase,
		Jitter:      cfg.RetryJitterPercent,
	})
	webhook.Breaker.WithLogger(logger)
	webhook.Sign = lead.SignWebhook(cfg.LeadWebhookSecret, time.Now)

	notifier := &lead.NotifyHandler{
		Email:      mailer(cfg, logger),
		EmailTo:    cfg.NotifyEmailTo,
		Webhook:    webhook,
		WebhookURL: cfg.LeadWebhookURL,
		Replay:     lead.RedisReplayGuard{Client: deps.Redis},
		Logger:     logger.With().Str("task", lead.TypeNotify).Logger(),
	}

	mux := asynq.NewServeMux()
	mux.Use(taskMetrics(deps.Meter, logger))
	mux.Handle(lead.TypeNotify, notifier)
	claimWindow := time.Minute
	if strings.TrimSpace(cfg.BackupSchedule) != "" {
		if claimWindow, err = backup.ClaimWindow(cfg.BackupSchedule, time.Now()); err != nil {
			logger.Fatal().Err(err).Msg("parse backup schedule")
		}
	}
	mux.Handle(backup.TypeScheduled, &backup.ScheduledHandler{
		Svc:    backupService,
		Keep:   cfg.BackupKeep,
		Locker: deps.Locker,
		Window: claimWindow,
	})

	connOpt := deps.Queue

	srv := asynq.NewServer(connOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues:      map[string]int{"default": 6, "maintenance": 1},
		Logger:      asynqLogger{logger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("task", task.Type()).Msg("task failed")
		}),
	})

	scheduler := asynq.NewScheduler(connOpt, &asynq.SchedulerOpts{Logger: asynqLogger{logger}})
	if strings.TrimSpace(cfg.BackupSchedule) != "" {
		entryID, err := scheduler.Register(cfg.BackupSchedule, backup.NewScheduledTask())
		if err != nil {
			logger.Fatal().Err(err).Str("schedule", cfg.BackupSchedule).Msg("register backup schedule")
		}
		logger.Info().Str("entry_id", entryID).Str("schedule", cfg.BackupSchedule).Msg("backup scheduled")
	}

	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start scheduler")
	}
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")

	<-ctx.Done()
	logger.Info().Msg("worker shutting down")
	srv.Shutdown()
	scheduler.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
	}
}

func mailer(cfg *config.Config, logger zerolog.Logger) common.EmailSender {
	if cfg.SMTPAddr == "" {
		return common.LogEmailSender{Logger: logger.With().Str("mailer", "log").Logger()}
	}
	return common.SMTPSender{
		Addr:     cfg.SMTPAddr,
		From:     cfg.NotifyEmailFrom,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
	}
}

// taskMetrics counts processed tasks by type and outcome.
func taskMetrics(meter metric.Meter, logger zerolog.Logger) asynq.MiddlewareFunc {
	processed, err := meter.Int64Counter("worker.tasks.processed", metric.WithDescription("Tasks handled by the worker"))
	if err != nil {
		logger.Error().Err(err).Msg("create task counter")
	}
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			start := time.Now()
			err := next.ProcessTask(ctx, t)
			result := "ok"
			if err != nil {
				result = "error"
			}
			if processed != nil {
				processed.Add(ctx, 1, metric.WithAttributes(attribute.String("type", t.Type()), attribute.String("result", result)))
			}
			logger.Debug().Str("task", t.Type()).Str("result", result).Dur("took", time.Since(start)).Msg("task processed")
			return err
		})
	}
}

type asynqLogger struct{ l zerolog.Logger }

func (a asynqLogger) Debug(args ...any) { a.l.Debug().Msg(sprint(args)) }
func (a asynqLogger) Info(args ...any)  { a.l.Info().Msg(sprint(args)) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn().Msg(sprint(args)) }
func (a asynqLogger) Error(args ...any) { a.l.Error().Msg(sprint(args)) }
func (a asynqLogger) Fatal(args ...any) { a.l.Fatal().Msg(sprint(args)) }

func sprint(args []any) string {
	return strings.TrimSpace(fmt.Sprint(args...))
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
