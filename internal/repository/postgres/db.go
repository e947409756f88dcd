package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/config"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

type DB struct {
	*sqlx.DB
	sem *semaphore.Weighted
}

// NewDB connects with the key/value settings of cfg, or with cfg.URL when set.
func NewDB(cfg *config.DatabaseConfig) (*DB, error) {
	if cfg.URL != "" {
		return Open(cfg.URL, cfg.MaxConns)
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sqlx.Connect("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return wrap(db, cfg.MaxConns), nil
}

// Open connects through the pgx driver using a postgres:// URL.
func Open(url string, maxConns int) (*DB, error) {
	db, err := sqlx.Connect("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return wrap(db, maxConns), nil
}

func wrap(db *sqlx.DB, maxConns int) *DB {
	if maxConns <= 0 {
		maxConns = 10
	}

	// Configure connection pool
	db.SetMaxOpenConns(maxConns + 2)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Transactions are capped below the pool size.
	return &DB{
		DB:  db,
		sem: semaphore.NewWeighted(int64(maxConns)),
	}
}

// WithTx executes a function within a transaction
func (db *DB) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	// Acquire semaphore
	if err := db.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("could not acquire semaphore: %w", err)
	}
	defer db.sem.Release(1)

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Debug().Err(rbErr).Msg("could not rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}
