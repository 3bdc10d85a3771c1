package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/tipbook/backoffice/cmd/backoffice/cli"
	"github.com/tipbook/backoffice/internal/app"
	"github.com/tipbook/backoffice/internal/backup"
	backuphttp "github.com/tipbook/backoffice/internal/backup/http"
	logshttp "github.com/tipbook/backoffice/internal/logsink/http"
	"github.com/tipbook/backoffice/internal/observability"
	"github.com/tipbook/backoffice/internal/platform/artifact"
	"github.com/tipbook/backoffice/internal/platform/cache"
	"github.com/tipbook/backoffice/internal/platform/lock"
	"github.com/tipbook/backoffice/internal/reports"
	reportshttp "github.com/tipbook/backoffice/internal/reports/http"
	"github.com/tipbook/backoffice/internal/settings"
	"github.com/tipbook/backoffice/internal/tipreports"
	tipreportshttp "github.com/tipbook/backoffice/internal/tipreports/http"
	"github.com/tipbook/backoffice/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	if len(os.Args) > 1 {
		if err := cli.Run(ctx, cfg.RedisAddr, os.Args[1:], os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	bootLogger := app.NewLogger(cfg, nil)
	conn, err := app.OpenDatabase(ctx, cfg, bootLogger)
	if err != nil {
		bootLogger.Error("open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer conn.Close()

	settingsStore := settings.NewStore(conn)
	sink, err := app.NewLogSink(ctx, cfg, settingsStore)
	if err != nil {
		bootLogger.Error("open error log", slog.Any("error", err))
		os.Exit(1)
	}
	defer sink.Close()
	logger := app.NewLogger(cfg, sink)

	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, tip report cache and shared locks disabled", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	reportService := reports.NewService(reports.NewSQLRepository(conn), artifact.NewDir(cfg.ReportsDir), logger)
	if redisClient != nil {
		reportService.WithLocker(lock.NewRedis(redisClient, 0, 0, logger))
	}

	var tipCache *tipreports.Cache
	if redisClient != nil {
		tipCache = tipreports.NewCache(redisClient, cfg.TipReportTTL)
	}
	tipService := tipreports.NewService(artifact.NewDir(cfg.TipReportDir()), reportService, tipCache, logger)

	backupEngine := backup.NewEngine(conn, artifact.NewDir(cfg.BackupDir),
		backup.WithRetention(settingsStore),
		backup.WithRecorder(metrics),
		backup.WithLogger(logger),
	)

	var inspector *asynq.Inspector
	if redisClient != nil {
		inspector = asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer inspector.Close()
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Metrics:          metrics,
		ReportHandler:    reportshttp.NewHandler(logger, reportService),
		TipReportHandler: tipreportshttp.NewHandler(logger, tipService),
		BackupHandler:    backuphttp.NewHandler(logger, backupEngine, app.BackupLimiter(cfg)),
		LogHandler:       logshttp.NewHandler(logger, sink),
		JobHandler:       jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
