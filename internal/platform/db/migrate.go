package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Inspector answers schema questions inside a migration transaction so
// upgrades can stay idempotent on databases created by older releases.
type Inspector interface {
	TableExists(ctx context.Context, table string) (bool, error)
	ColumnExists(ctx context.Context, table, column string) (bool, error)
}

// Migration is one versioned schema step. Migrations run in slice order, each
// in its own transaction, and are recorded in schema_migrations by ID.
type Migration struct {
	ID          string
	Description string
	Upgrade     func(ctx context.Context, tx *sql.Tx, schema Inspector) error
}

// ErrDuplicateMigration is returned when two migrations share an ID.
var ErrDuplicateMigration = errors.New("platform/db: duplicate migration id")

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	id TEXT PRIMARY KEY,
	description TEXT NOT NULL DEFAULT '',
	applied_at TEXT NOT NULL
)`

// Migrate applies every migration not yet recorded and returns the IDs it applied.
func Migrate(ctx context.Context, conn *sql.DB, migrations []Migration, logger *slog.Logger) ([]string, error) {
	if _, err := conn.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("platform/db: create schema_migrations: %w", err)
	}

	seen := make(map[string]struct{}, len(migrations))
	for _, m := range migrations {
		if _, ok := seen[m.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateMigration, m.ID)
		}
		seen[m.ID] = struct{}{}
	}

	applied, err := appliedMigrations(ctx, conn)
	if err != nil {
		return nil, err
	}

	var ran []string
	for _, m := range migrations {
		if _, ok := applied[m.ID]; ok {
			continue
		}
		err := WithTx(ctx, conn, func(tx *sql.Tx) error {
			if m.Upgrade != nil {
				if err := m.Upgrade(ctx, tx, txInspector{tx: tx}); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (id, description, applied_at) VALUES (?, ?, ?)`,
				m.ID, m.Description, time.Now().UTC().Format(time.RFC3339Nano))
			return err
		})
		if err != nil {
			return ran, fmt.Errorf("platform/db: migration %s: %w", m.ID, err)
		}
		if logger != nil {
			logger.Info("migration applied", slog.String("id", m.ID))
		}
		ran = append(ran, m.ID)
	}
	return ran, nil
}

func appliedMigrations(ctx context.Context, conn *sql.DB) (map[string]struct{}, error) {
	rows, err := conn.QueryContext(ctx, `SELECT id FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("platform/db: list migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

type txInspector struct {
	tx *sql.Tx
}

func (i txInspector) TableExists(ctx context.Context, table string) (bool, error) {
	var n int
	err := i.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (i txInspector) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	var n int
	err := i.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// addColumnIfMissing is the common idempotent ALTER used by upgrade steps.
func addColumnIfMissing(ctx context.Context, tx *sql.Tx, schema Inspector, table, column, decl string) error {
	ok, err := schema.ColumnExists(ctx, table, column)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, strings.TrimSpace(decl))
	_, err = tx.ExecContext(ctx, stmt)
	return err
}
