// Package sqldb implements the repositories on database/sql, backed by
// PostgreSQL in production and SQLite for local development.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/ryanvade/infra-demo-lnl/config"
	"github.com/ryanvade/infra-demo-lnl/repositories"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	driver Driver
	logger *zap.Logger
}

// NewDB opens a connection pool for the driver detected from the DSN
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	dsn := cfg.DSN()
	driver := DetectDriver(dsn)

	maxOpen, maxIdle, lifetime := cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime
	if driver == SQLite {
		// one writer; the pool would only produce SQLITE_BUSY
		maxOpen, maxIdle, lifetime = 1, 1, 0
		if !strings.Contains(dsn, "?") {
			dsn += "?_busy_timeout=10000&_journal_mode=WAL&_foreign_keys=on"
		}
	}

	db, err := sql.Open(string(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("driver", string(driver)),
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		driver: driver,
		logger: logger,
	}, nil
}

// Wrap adapts an existing pool, typically a sqlmock in tests
func Wrap(db *sql.DB, driver Driver, logger *zap.Logger) *DB {
	return &DB{DB: db, driver: driver, logger: logger}
}

// Driver returns the driver the pool was opened with
func (db *DB) Driver() Driver {
	return db.driver
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

type migration struct {
	version  int64
	postgres []string
	sqlite   []string
}

func (m migration) statements(driver Driver) []string {
	if driver == Postgres {
		return m.postgres
	}
	return m.sqlite
}

var migrations = []migration{
	{
		version: 1,
		postgres: []string{
			`CREATE TABLE IF NOT EXISTS todos (
				id UUID PRIMARY KEY,
				owner VARCHAR(255) NOT NULL,
				descr TEXT NOT NULL,
				completed BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_todos_owner_id ON todos(owner, id)`,
		},
		sqlite: []string{
			`CREATE TABLE IF NOT EXISTS todos (
				id TEXT PRIMARY KEY,
				owner TEXT NOT NULL,
				descr TEXT NOT NULL,
				completed BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_todos_owner_id ON todos(owner, id)`,
		},
	},
}

// Migrate applies pending schema migrations. Each migration and its
// bookkeeping row commit in one transaction.
func (db *DB) Migrate(ctx context.Context) error {
	createMigrationsTable := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version BIGINT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)`
	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return err
	}

	tm := NewTransactionManager(db, db.logger)
	for _, m := range migrations {
		if applied[m.version] {
			continue
		}

		err := tm.InTransaction(ctx, func(ctx context.Context, _ repositories.Transaction) error {
			executor := GetExecutor(ctx, db)
			for _, stmt := range m.statements(db.driver) {
				if _, err := executor.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("migration %d: %w", m.version, err)
				}
			}
			insert := db.driver.Rebind("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)")
			if _, err := executor.ExecContext(ctx, insert, m.version, time.Now().UTC()); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", m.version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		db.logger.Info("migration applied", zap.Int64("version", m.version))
	}

	return nil
}

func (db *DB) appliedVersions(ctx context.Context) (map[int64]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]bool)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
