package lead

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Querier is the subset of *pgxpool.Pool the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists leads in the leads table.
type PostgresStore struct {
	DB Querier
}

const (
	insertLeadSQL = `INSERT INTO leads (id, name, email, phone, company, message, products, source_ip, user_agent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	listLeadsSQL = `SELECT id::text, name, email, phone, company, message, products, source_ip, user_agent, created_at
FROM leads ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	countLeadsSQL = `SELECT count(*) FROM leads`
)

// Save implements Store.
func (s *PostgresStore) Save(ctx context.Context, l Lead) error {
	products := l.Products
	if products == nil {
		products = []string{}
	}
	_, err := s.DB.Exec(ctx, insertLeadSQL,
		l.ID, l.Name, l.Email, l.Phone, l.Company, l.Message, products, l.IP, l.UserAgent, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("lead: insert: %w", err)
	}
	return nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context, offset, limit int) ([]Lead, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, countLeadsSQL).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("lead: count: %w", err)
	}
	rows, err := s.DB.Query(ctx, listLeadsSQL, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("lead: list: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Lead, error) {
		var l Lead
		err := row.Scan(&l.ID, &l.Name, &l.Email, &l.Phone, &l.Company, &l.Message, &l.Products, &l.IP, &l.UserAgent, &l.CreatedAt)
		return l, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("lead: scan: %w", err)
	}
	if out == nil {
		out = []Lead{}
	}
	return out, total, nil
}

// Migrate applies the embedded leads migrations to databaseURL.
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("lead: migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, MigrationURL(databaseURL))
	if err != nil {
		return fmt.Errorf("lead: migrate init: %w", err)
	}
	defer func() { _, _ = m.Close() }()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("lead: migrate up: %w", err)
	}
	return nil
}

// MigrationURL rewrites a postgres:// URL to the pgx5:// scheme the migrate driver registers.
func MigrationURL(databaseURL string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}
