package db

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/journeymanlabs/trafficguard/configs"
)

// Pool defaults for the session-write workload: short bursts of small
// INSERTs behind the postgres bulkhead, so a modest pool suffices and idle
// connections are trimmed quickly.
const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute

	connectTimeout = 5 * time.Second
)

// Database wraps the sqlx handle for the game session store.
type Database struct {
	DB *sqlx.DB
}

// Connect opens the session store, applies pool settings and verifies the
// server is reachable before the protection stack starts routing writes
// through it.
func Connect(cfg *configs.DatabaseConfig) (*Database, error) {
	dbx, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	configurePool(dbx, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := dbx.PingContext(ctx); err != nil {
		dbx.Close()
		return nil, fmt.Errorf("ping session store: %w", err)
	}

	return &Database{DB: dbx}, nil
}

func configurePool(dbx *sqlx.DB, cfg *configs.DatabaseConfig) {
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConns
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = defaultConnMaxLifetime
	}
	idleTime := cfg.ConnMaxIdleTime
	if idleTime <= 0 {
		idleTime = defaultConnMaxIdleTime
	}
	dbx.SetMaxOpenConns(maxOpen)
	dbx.SetMaxIdleConns(maxIdle)
	dbx.SetConnMaxLifetime(lifetime)
	dbx.SetConnMaxIdleTime(idleTime)
}

func (d *Database) Close() error {
	return d.DB.Close()
}

// Migrate applies pending schema migrations from the given directory.
func (d *Database) Migrate(migrationsPath string) error {
	driver, err := postgres.WithInstance(d.DB.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", migrationsPath), "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}
