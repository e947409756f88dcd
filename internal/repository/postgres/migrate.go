package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies every embedded migration not yet recorded in schema_migrations, in name order.
func Migrate(ctx context.Context, db *DB) ([]string, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(names)

	var applied []string
	for _, name := range names {
		done, err := migrationApplied(ctx, db, name)
		if err != nil {
			return applied, err
		}
		if done {
			continue
		}

		body, err := migrationFiles.ReadFile(name)
		if err != nil {
			return applied, fmt.Errorf("failed to read %s: %w", name, err)
		}

		err = db.WithTx(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, string(body)); err != nil {
				return fmt.Errorf("failed to apply %s: %w", name, err)
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name)
			return err
		})
		if err != nil {
			return applied, err
		}

		log.Info().Str("migration", name).Msg("migration applied")
		applied = append(applied, name)
	}

	return applied, nil
}

func migrationApplied(ctx context.Context, db *DB, name string) (bool, error) {
	var exists bool
	err := db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, name)
	if err != nil {
		return false, fmt.Errorf("failed to check migration %s: %w", name, err)
	}
	return exists, nil
}
