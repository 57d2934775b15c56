package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexedwards/argon2id"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/noah-isme/glassworks/internal/config"
	"github.com/noah-isme/glassworks/internal/lead"
	"github.com/noah-isme/glassworks/internal/lock"
	"github.com/noah-isme/glassworks/internal/obs"
	"github.com/noah-isme/glassworks/internal/store"
)

// Options tunes how Build instruments shared clients.
type Options struct {
	ServiceName    string
	RedisTracing   bool
	RedisMetrics   bool
	SkipMigrations bool
}

// Dependencies holds the clients shared by the API, the worker and the tools.
type Dependencies struct {
	Config *config.Config
	Logger zerolog.Logger
	Redis  *redis.Client
	DB     *pgxpool.Pool
	Locker lock.Locker
	Store  *store.Store
	Leads  lead.Store
	Tasks  *asynq.Client
	Queue  asynq.RedisClientOpt
	Meter  metric.Meter
}

// Build connects Redis, the optional Postgres pool and the catalog store.
// Leads go to Postgres when DATABASE_URL is set and to a capped Redis list otherwise.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "glassworks-api"
	}
	deps := &Dependencies{Config: cfg, Logger: logger, Meter: Meter(opts.ServiceName)}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	deps.Redis = redis.NewClient(redisOpts)
	if opts.RedisTracing {
		if err := redisotel.InstrumentTracing(deps.Redis); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
	}
	if opts.RedisMetrics {
		if err := redisotel.InstrumentMetrics(deps.Redis); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := deps.Redis.Ping(ctx).Err(); err != nil {
		deps.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	deps.Locker = lock.Locker{R: deps.Redis, RetryBackoff: cfg.LockRetryBackoff}
	deps.Store, err = store.New(store.Config{Path: cfg.DataFile, Locker: deps.Locker, LockTTL: cfg.LockTTL})
	if err != nil {
		deps.Close()
		return nil, err
	}

	if cfg.DatabaseURL != "" {
		if !opts.SkipMigrations {
			if err := lead.Migrate(cfg.DatabaseURL); err != nil {
				deps.Close()
				return nil, err
			}
		}
		deps.DB, err = NewPool(ctx, cfg.DatabaseURL, opts.ServiceName)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.Leads = &lead.PostgresStore{DB: deps.DB}
	} else {
		deps.Leads = &lead.RedisStore{Client: deps.Redis, MaxEntries: cfg.LeadsMaxEntries}
	}

	deps.Queue = RedisConnOpt(redisOpts)
	deps.Tasks = asynq.NewClient(deps.Queue)
	return deps, nil
}

// NewPool opens a traced pgx pool.
func NewPool(ctx context.Context, databaseURL, applicationName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// RedisConnOpt converts go-redis options into the asynq connection options.
func RedisConnOpt(o *redis.Options) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Network:   o.Network,
		Addr:      o.Addr,
		Username:  o.Username,
		Password:  o.Password,
		DB:        o.DB,
		TLSConfig: o.TLSConfig,
	}
}

// Close releases every client that was opened.
func (d *Dependencies) Close() {
	if d == nil {
		return
	}
	if d.Tasks != nil {
		if err := d.Tasks.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close task client")
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close redis")
		}
	}
}

// HashPassword produces the argon2id hash expected in ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is required")
	}
	return argon2id.CreateHash(password, argon2id.DefaultParams)
}

// Meter returns the default OpenTelemetry meter for instrumentation hooks.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}
