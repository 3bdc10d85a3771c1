package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/tipbook/backoffice/internal/logsink"
	"github.com/tipbook/backoffice/internal/platform/db"
	"github.com/tipbook/backoffice/internal/settings"
)

// TipReportSubdir holds saved tip reports under the reports directory.
const TipReportSubdir = "tip_report"

// OpenDatabase opens the SQLite file and applies pending migrations.
func OpenDatabase(ctx context.Context, cfg *Config, logger *slog.Logger) (*sql.DB, error) {
	conn, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	ran, err := db.Migrate(ctx, conn, db.Migrations, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if len(ran) > 0 {
		logger.Info("database migrated", slog.Int("applied", len(ran)))
	}
	return conn, nil
}

// NewLogSink builds the rotating error log. Stored settings take precedence
// over the configured rotation size and backup count.
func NewLogSink(ctx context.Context, cfg *Config, store *settings.Store) (*logsink.Sink, error) {
	maxSize, maxBackups := cfg.LogMaxSizeMB, cfg.LogMaxBackups
	if store != nil {
		var err error
		if maxSize, err = store.PositiveInt(ctx, settings.KeyLogMaxSizeMB, maxSize); err != nil {
			return nil, fmt.Errorf("read %s: %w", settings.KeyLogMaxSizeMB, err)
		}
		if maxBackups, err = store.PositiveInt(ctx, settings.KeyLogBackupCount, maxBackups); err != nil {
			return nil, fmt.Errorf("read %s: %w", settings.KeyLogBackupCount, err)
		}
	}
	return logsink.New(logsink.Config{
		Dir:        cfg.LogDir,
		MaxSizeMB:  maxSize,
		MaxBackups: maxBackups,
	})
}

// TipReportDir is where saved tip reports are written.
func (c *Config) TipReportDir() string {
	return filepath.Join(c.ReportsDir, TipReportSubdir)
}
