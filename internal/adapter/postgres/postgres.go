// Package postgres stores the knowledge base and the approval audit trail in
// PostgreSQL and owns the schema migrations for both.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver "pgx" for goose
	"github.com/pressly/goose/v3"

	"github.com/Strob0t/answerdesk/internal/config"
)

//go:embed migrations/*.sql
var embedded embed.FS

// NewPool opens a pool sized from cfg and verifies it with a ping.
func NewPool(ctx context.Context, cfg config.Postgres) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.HealthCheckPeriod = cfg.HealthCheck

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Migrator applies the embedded schema migrations. It holds its own
// database/sql handle, separate from the pgx pool used by Store.
type Migrator struct {
	db       *sql.DB
	provider *goose.Provider
}

// NewMigrator opens a migration session against dsn. Call Close when done.
func NewMigrator(dsn string) (*Migrator, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open migration db: %w", err)
	}
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations fs: %w", err)
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, sub)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{db: db, provider: p}, nil
}

// Up applies every pending migration and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("migrate up: %w", err)
	}
	for _, r := range results {
		slog.Info("migration applied", "version", r.Source.Version, "duration", r.Duration)
	}
	return len(results), nil
}

// Down rolls back up to steps migrations, stopping early at version zero.
func (m *Migrator) Down(ctx context.Context, steps int) (int, error) {
	n := 0
	for ; n < steps; n++ {
		v, err := m.Version(ctx)
		if err != nil {
			return n, err
		}
		if v == 0 {
			break
		}
		r, err := m.provider.Down(ctx)
		if err != nil {
			return n, fmt.Errorf("migrate down from %d: %w", v, err)
		}
		slog.Info("migration rolled back", "version", r.Source.Version)
	}
	return n, nil
}

// Version reports the highest applied migration, zero for an empty schema.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	v, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("migration version: %w", err)
	}
	return v, nil
}

// Close releases the migration connection.
func (m *Migrator) Close() error {
	return m.db.Close()
}

// Migrate is the startup path: open, apply everything pending, close.
func Migrate(ctx context.Context, dsn string) error {
	m, err := NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	_, err = m.Up(ctx)
	return err
}
