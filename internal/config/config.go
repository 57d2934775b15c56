package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/glassworks/internal/pricing"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	DatabaseURL        string
	DataFile           string
	MediaDir           string
	CurrencySymbol     string
	CORSAllowedOrigins []string
	TrustedProxies     []string

	JWTSecret         string
	AdminUsername     string
	AdminPasswordHash string
	AccessTokenTTL    time.Duration
	AccessCookieName  string
	CookieDomain      string
	CookieSecure      bool
	CookieSameSite    http.SameSite

	CatalogCacheTTL    time.Duration
	IdempotencyTTL     time.Duration
	LoginRateLimit     int
	LoginRateWindow    time.Duration
	ContactRateLimit   int
	ContactRateWindow  time.Duration
	PublicRateLimit    string
	BodyLimitBytes     int64
	SecureHeaders      bool
	LockTTL            time.Duration
	LockRetryBackoff   time.Duration
	AuditEnabled       bool
	AuditMaxEntries    int64
	LeadsMaxEntries    int64
	QuoteTiers         []pricing.Tier
	BackupTTL          time.Duration
	BackupKeep         int
	BackupSchedule     string
	WorkerConcurrency  int
	NotifyEmailTo      string
	NotifyEmailFrom    string
	SMTPAddr           string
	SMTPUsername       string
	SMTPPassword       string
	LeadWebhookURL     string
	LeadWebhookSecret  string
	OutboundTimeout    time.Duration
	RetryMaxAttempts   int
	RetryBase          time.Duration
	RetryJitterPercent float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           k.String("REDIS_URL"),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		DataFile:           valueOrDefault(k.String("DATA_FILE"), "data/catalog.json"),
		MediaDir:           valueOrDefault(k.String("MEDIA_DIR"), "public/images"),
		CurrencySymbol:     valueOrDefault(k.String("CURRENCY_SYMBOL"), pricing.DefaultCurrency),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		TrustedProxies:     splitAndTrim(k.String("TRUSTED_PROXIES")),
		JWTSecret:          k.String("JWT_SECRET"),
		AdminUsername:      valueOrDefault(k.String("ADMIN_USERNAME"), "admin"),
		AdminPasswordHash:  strings.TrimSpace(k.String("ADMIN_PASSWORD_HASH")),
		AccessTokenTTL:     parseDuration(k.String("ACCESS_TOKEN_TTL"), "8h"),
		AccessCookieName:   valueOrDefault(k.String("ACCESS_COOKIE_NAME"), "admin_session"),
		CookieDomain:       strings.TrimSpace(k.String("COOKIE_DOMAIN")),
		CookieSecure:       parseBool(k.String("COOKIE_SECURE")),
		CookieSameSite:     parseSameSite(k.String("COOKIE_SAMESITE")),
		CatalogCacheTTL:    parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		LoginRateLimit:     parseInt(k.String("LOGIN_RATE_LIMIT"), 5),
		LoginRateWindow:    parseDuration(k.String("LOGIN_RATE_WINDOW"), "15m"),
		ContactRateLimit:   parseInt(k.String("CONTACT_RATE_LIMIT"), 3),
		ContactRateWindow:  parseDuration(k.String("CONTACT_RATE_WINDOW"), "10m"),
		PublicRateLimit:    valueOrDefault(k.String("PUBLIC_RATE_LIMIT"), "300-M"),
		BodyLimitBytes:     int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		SecureHeaders:      parseBoolDefault(k.String("SECURE_HEADERS_ENABLED"), true),
		LockTTL:            parseDuration(k.String("LOCK_TTL"), "10s"),
		LockRetryBackoff:   parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),
		AuditEnabled:       parseBoolDefault(k.String("AUDIT_ENABLED"), true),
		AuditMaxEntries:    int64(parseInt(k.String("AUDIT_MAX_ENTRIES"), 1000)),
		LeadsMaxEntries:    int64(parseInt(k.String("LEADS_MAX_ENTRIES"), 5000)),
		QuoteTiers:         parseTiers(k.String("QUOTE_TIERS")),
		BackupTTL:          parseDuration(k.String("BACKUP_TTL"), "0s"),
		BackupKeep:         parseInt(k.String("BACKUP_KEEP"), 30),
		BackupSchedule:     valueOrDefault(k.String("BACKUP_SCHEDULE"), "@daily"),
		WorkerConcurrency:  parseInt(k.String("WORKER_CONCURRENCY"), 5),
		NotifyEmailTo:      strings.TrimSpace(k.String("NOTIFY_EMAIL_TO")),
		NotifyEmailFrom:    valueOrDefault(k.String("NOTIFY_EMAIL_FROM"), "no-reply@glassworks.local"),
		SMTPAddr:           strings.TrimSpace(k.String("SMTP_ADDR")),
		SMTPUsername:       k.String("SMTP_USERNAME"),
		SMTPPassword:       k.String("SMTP_PASSWORD"),
		LeadWebhookURL:     strings.TrimSpace(k.String("LEAD_WEBHOOK_URL")),
		LeadWebhookSecret:  k.String("LEAD_WEBHOOK_SECRET"),
		OutboundTimeout:    parseDuration(k.String("OUTBOUND_TIMEOUT"), "5s"),
		RetryMaxAttempts:   parseInt(k.String("RETRY_MAX_ATTEMPTS"), 3),
		RetryBase:          parseDuration(k.String("RETRY_BASE"), "200ms"),
		RetryJitterPercent: parseFloat(k.String("RETRY_JITTER_PERCENT"), 0.2),
	}

	if cfg.CookieSameSite == http.SameSiteDefaultMode {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}
	if len(cfg.QuoteTiers) == 0 {
		cfg.QuoteTiers = DefaultQuoteTiers()
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.AdminPasswordHash == "" {
		return nil, errors.New("ADMIN_PASSWORD_HASH is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// DefaultQuoteTiers is the order-value schedule used when QUOTE_TIERS is unset.
func DefaultQuoteTiers() []pricing.Tier {
	return []pricing.Tier{
		{MinValue: 50000, DiscountPercent: 15},
		{MinValue: 20000, DiscountPercent: 10},
		{MinValue: 10000, DiscountPercent: 5},
	}
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseTiers reads "minValue:percent" pairs such as "500:15,200:10". Malformed pairs are skipped.
func parseTiers(value string) []pricing.Tier {
	var tiers []pricing.Tier
	for _, part := range splitAndTrim(value) {
		minRaw, pctRaw, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		minValue, err := strconv.ParseFloat(strings.TrimSpace(minRaw), 64)
		if err != nil || minValue < 0 {
			continue
		}
		pct, err := strconv.ParseFloat(strings.TrimSpace(pctRaw), 64)
		if err != nil {
			continue
		}
		tiers = append(tiers, pricing.Tier{MinValue: minValue, DiscountPercent: pct})
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinValue > tiers[j].MinValue })
	return tiers
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteDefaultMode
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
