package db

import (
	"context"
	"database/sql"
)

// Migrations is the ordered schema history of the back-office database.
var Migrations = []Migration{
	{
		ID:          "2025_09_01_create_core_tables",
		Description: "employees, daily balance reports and their employee entries",
		Upgrade:     createCoreTables,
	},
	{
		ID:          "2025_11_10_add_settings_table",
		Description: "key-value settings with backup retention default",
		Upgrade:     addSettingsTable,
	},
	{
		ID:          "2026_02_01_add_log_settings",
		Description: "log rotation settings",
		Upgrade:     addLogSettings,
	},
	{
		ID:          "2026_02_16_add_report_metadata_fields",
		Description: "generated/edited/finalized audit columns on daily_balance",
		Upgrade:     addReportMetadataFields,
	},
}

func createCoreTables(ctx context.Context, tx *sql.Tx, _ Inspector) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS employees (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			position TEXT NOT NULL DEFAULT '',
			active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS daily_balance (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL UNIQUE,
			day_of_week TEXT NOT NULL,
			total_cash_sales TEXT NOT NULL DEFAULT '0',
			total_card_sales TEXT NOT NULL DEFAULT '0',
			total_tips_collected TEXT NOT NULL DEFAULT '0',
			notes TEXT NOT NULL DEFAULT '',
			finalized INTEGER NOT NULL DEFAULT 0,
			created_by_source TEXT NOT NULL DEFAULT 'user'
		)`,
		`CREATE TABLE IF NOT EXISTS daily_employee_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			daily_balance_id INTEGER NOT NULL REFERENCES daily_balance(id) ON DELETE CASCADE,
			employee_id INTEGER NOT NULL REFERENCES employees(id),
			bank_card_sales TEXT NOT NULL DEFAULT '0',
			bank_card_tips TEXT NOT NULL DEFAULT '0',
			cash_tips TEXT NOT NULL DEFAULT '0',
			total_sales TEXT NOT NULL DEFAULT '0',
			adjustments TEXT NOT NULL DEFAULT '0',
			calculated_take_home TEXT NOT NULL DEFAULT '0',
			UNIQUE (daily_balance_id, employee_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_daily_employee_entries_report ON daily_employee_entries(daily_balance_id)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func addSettingsTable(ctx context.Context, tx *sql.Tx, schema Inspector) error {
	ok, err := schema.TableExists(ctx, "settings")
	if err != nil {
		return err
	}
	if !ok {
		if _, err := tx.ExecContext(ctx, `CREATE TABLE settings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key TEXT UNIQUE NOT NULL,
			value TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO settings (key, value, description)
		VALUES ('backup_retention_count', '7', 'Number of database backups to keep')`)
	return err
}

func addLogSettings(ctx context.Context, tx *sql.Tx, _ Inspector) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO settings (key, value, description) VALUES
		('log_max_size_mb', '10', 'Maximum size of log file in MB before rotation'),
		('log_backup_count', '5', 'Number of rotated log files to keep')`)
	return err
}

func addReportMetadataFields(ctx context.Context, tx *sql.Tx, schema Inspector) error {
	columns := []struct{ name, decl string }{
		{"generated_by_id", "INTEGER NOT NULL DEFAULT 0"},
		{"generated_by_name", "TEXT NOT NULL DEFAULT ''"},
		{"generated_at", "TEXT"},
		{"edited_at", "TEXT"},
		{"finalized_by_id", "INTEGER"},
		{"finalized_by_name", "TEXT"},
		{"finalized_by_source", "TEXT"},
		{"finalized_at", "TEXT"},
	}
	for _, c := range columns {
		if err := addColumnIfMissing(ctx, tx, schema, "daily_balance", c.name, c.decl); err != nil {
			return err
		}
	}
	// Rows written before audit tracking existed get a midnight generated_at
	// on their own date, which keeps generated_at <= finalized_at.
	if _, err := tx.ExecContext(ctx, `UPDATE daily_balance
		SET generated_at = date || 'T00:00:00Z'
		WHERE generated_at IS NULL`); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `UPDATE daily_balance
		SET finalized_at = generated_at,
		    finalized_by_id = generated_by_id,
		    finalized_by_name = generated_by_name,
		    finalized_by_source = created_by_source
		WHERE finalized = 1 AND finalized_at IS NULL`)
	return err
}
