package health

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/glassworks/internal/store"
)

type documentLoader interface {
	Load(ctx context.Context) (store.Document, error)
}

// Probes checks the live dependencies. DB is optional.
type Probes struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
	Store documentLoader
}

// PingDB implements Checker.
func (p Probes) PingDB(ctx context.Context, timeout time.Duration) error {
	if p.DB == nil {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.DB.Ping(ctx)
}

// PingRedis implements Checker.
func (p Probes) PingRedis(ctx context.Context, timeout time.Duration) error {
	if p.Redis == nil {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Redis.Ping(ctx).Err()
}

// PingStore implements Checker by reading the catalog document.
func (p Probes) PingStore(ctx context.Context) error {
	if p.Store == nil {
		return ErrNotConfigured
	}
	_, err := p.Store.Load(ctx)
	return err
}
