package app

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"60s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat     string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	LogDir        string `envconfig:"LOG_DIR" default:"data/logs"`
	LogMaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"10"`
	LogMaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"5"`

	DataDir    string `envconfig:"DATA_DIR" default:"data"`
	DBPath     string `envconfig:"DB_PATH" default:"data/database.db"`
	BackupDir  string `envconfig:"BACKUP_DIR" default:"data/backups"`
	ReportsDir string `envconfig:"REPORTS_DIR" default:"data/reports"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	TipReportTTL  time.Duration `envconfig:"TIP_REPORT_CACHE_TTL" default:"10m"`
	BackupCron    string        `envconfig:"BACKUP_CRON" default:"0 3 * * *"`
	PruneCron     string        `envconfig:"PRUNE_CRON" default:"15 3 * * *"`
	FinalizeCron  string        `envconfig:"FINALIZE_CRON" default:"30 4 * * *"`
	ScheduleZone  string        `envconfig:"SCHEDULE_TZ" default:"UTC"`
	RateLimit     int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`
	BackupLimit   int           `envconfig:"BACKUP_RATE_LIMIT_PER_MINUTE" default:"5"`
	WorkerThreads int           `envconfig:"WORKER_CONCURRENCY" default:"1"`
	WorkerMetrics string        `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("database path must be provided")
	}
	switch c.LogFormat {
	case "pretty", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.LogFormat)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogMaxSizeMB <= 0 || c.LogMaxBackups <= 0 {
		return errors.New("log rotation size and backup count must be positive")
	}
	if c.RateLimit <= 0 || c.BackupLimit <= 0 {
		return errors.New("rate limits must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the time zone cron schedules run in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ScheduleZone)
	if err != nil {
		return nil, fmt.Errorf("schedule time zone %q: %w", c.ScheduleZone, err)
	}
	return loc, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

func parseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level %q", raw)
	}
}
