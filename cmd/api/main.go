package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/glassworks/internal/app"
	"github.com/noah-isme/glassworks/internal/audit"
	"github.com/noah-isme/glassworks/internal/auth"
	"github.com/noah-isme/glassworks/internal/backup"
	"github.com/noah-isme/glassworks/internal/catalog"
	"github.com/noah-isme/glassworks/internal/checkout"
	"github.com/noah-isme/glassworks/internal/common"
	"github.com/noah-isme/glassworks/internal/config"
	"github.com/noah-isme/glassworks/internal/health"
	"github.com/noah-isme/glassworks/internal/lead"
	"github.com/noah-isme/glassworks/internal/media"
	"github.com/noah-isme/glassworks/internal/obs"
	"github.com/noah-isme/glassworks/internal/pricing"
	"github.com/noah-isme/glassworks/internal/queue"
	"github.com/noah-isme/glassworks/internal/ratelimit"
	"github.com/noah-isme/glassworks/internal/security"
	"github.com/noah-isme/glassworks/internal/voucher"
)

// contactBodyLimit caps the public contact form well below the admin payload size.
const contactBodyLimit = 32 << 10

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "glassworks")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:    "glassworks-api",
			ServiceVersion: envOrDefault("APP_VERSION", ""),
			Endpoint:       envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:       envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio:  sampling,
			Environment:    cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	deps, err := app.Build(ctx, cfg, logger, app.Options{
		ServiceName:  "glassworks-api",
		RedisTracing: tracingEnabled,
		RedisMetrics: metricsEnabled,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	calc := pricing.NewCalculator(cfg.CurrencySymbol)

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Store:      deps.Store,
		Cache:      catalog.NewCache(deps.Redis, cfg.CatalogCacheTTL),
		Calculator: calc,
		Logger:     logger.With().Str("component", "catalog").Logger(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}

	couponService, err := voucher.NewService(voucher.Config{
		Store:      deps.Store,
		Calculator: calc,
		Logger:     logger.With().Str("component", "coupons").Logger(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise coupon service")
	}

	quoteService := &checkout.Service{Store: deps.Store, Calculator: calc, Tiers: cfg.QuoteTiers}

	leadService, err := lead.NewService(lead.Config{
		Store:    deps.Leads,
		Enqueuer: deps.Tasks,
		Logger:   logger.With().Str("component", "leads").Logger(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise lead service")
	}

	backupService, err := backup.NewService(backup.Config{
		Redis:  deps.Redis,
		Store:  deps.Store,
		TTL:    cfg.BackupTTL,
		Logger: logger.With().Str("component", "backups").Logger(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise backup service")
	}

	cleaner, err := media.NewCleaner(cfg.MediaDir, deps.Store, logger.With().Str("component", "media").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise media cleaner")
	}

	limiter := ratelimit.Limiter{Client: deps.Redis}
	authService, err := auth.NewService(auth.Config{
		Username:       cfg.AdminUsername,
		PasswordHash:   cfg.AdminPasswordHash,
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
		Throttle:       limiter,
		LoginMax:       cfg.LoginRateLimit,
		LoginWindow:    cfg.LoginRateWindow,
		Logger:         logger.With().Str("component", "auth").Logger(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}

	trustedProxies, err := common.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse TRUSTED_PROXIES")
	}

	publicLimit, err := ratelimit.NewPublicMiddleware(deps.Redis, cfg.PublicRateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise public rate limit")
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	var pprofHandler http.Handler
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		pprofHandler = protectPprof(newPprofMux(), user, pass)
	}

	auditService := audit.Service{
		Store:   &audit.RedisStore{Client: deps.Redis, MaxEntries: cfg.AuditMaxEntries},
		Enabled: cfg.AuditEnabled,
		Logger:  logger.With().Str("component", "audit").Logger(),
	}

	inspector := asynq.NewInspector(deps.Queue)
	defer func() { _ = inspector.Close() }()
	if err := queue.RegisterMetrics(nil); err != nil {
		logger.Error().Err(err).Msg("register queue metrics")
	}

	handler := routes{
		Logger:      logger,
		RealIP:      common.RealIP{Trusted: trustedProxies},
		CORSOrigins: cfg.CORSAllowedOrigins,
		Headers:     security.Headers{Enable: cfg.SecureHeaders, EnableHSTS: cfg.CookieSecure},
		BodyLimit:   security.BodyLimit{Max: cfg.BodyLimitBytes, Overrides: map[string]int64{"/api/v1/contact": contactBodyLimit}},
		HTTPMetrics: httpMetrics,
		Tracing:     tracingEnabled,
		Pprof:       pprofHandler,
		PublicLimit: publicLimit,
		ContactLimit: ratelimit.Handler{
			Limiter: limiter,
			Config:  ratelimit.Config{Scope: "contact", Key: ratelimit.KeyByIP("contact"), Window: cfg.ContactRateWindow, Max: cfg.ContactRateLimit},
			OnError: func(err error) { logger.Warn().Err(err).Msg("contact rate limit unavailable") },
		},
		Idem: common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL},
		Health: health.Handler{
			Checker:      health.Probes{DB: deps.DB, Redis: deps.Redis, Store: deps.Store},
			DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
			RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
		},
		Catalog: catalog.NewHandler(catalog.HandlerConfig{Service: catalogService}),
		Coupons: &voucher.Handler{Svc: couponService},
		Quote:   &checkout.Handler{Svc: quoteService},
		Leads:   &lead.Handler{Svc: leadService},
		Backups: &backup.Handler{Svc: backupService},
		Images:  &media.Handler{Cleaner: cleaner},
		Auth: &auth.Handler{
			Service:          authService,
			AccessCookieName: cfg.AccessCookieName,
			CookieDomain:     cfg.CookieDomain,
			CookieSecure:     cfg.CookieSecure,
			CookieSameSite:   cfg.CookieSameSite,
		},
		AuthMW: auth.Middleware{Service: authService, AccessCookie: cfg.AccessCookieName},
		CSRF:   security.CSRF{Header: auth.CSRFCookieName},
		Audit: audit.HTTPRecorder{
			Service: auditService,
			OnError: func(err error) { logger.Error().Err(err).Msg("record audit entry") },
		},
		AuditLog: audit.Handler{Store: auditService.Store},
		Tasks:    &queue.AdminHandler{Inspector: inspector, Logger: logger.With().Str("component", "tasks").Logger()},
	}.handler()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("data_file", cfg.DataFile).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-sigCtx.Done():
		health.SetReady(false)
		logger.Info().Msg("shutting down")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}
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

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
