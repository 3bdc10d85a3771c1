package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tipbook/backoffice/internal/app"
	"github.com/tipbook/backoffice/internal/backup"
	jobmetrics "github.com/tipbook/backoffice/internal/jobs"
	"github.com/tipbook/backoffice/internal/observability"
	"github.com/tipbook/backoffice/internal/platform/artifact"
	"github.com/tipbook/backoffice/internal/platform/cache"
	"github.com/tipbook/backoffice/internal/platform/lock"
	"github.com/tipbook/backoffice/internal/reports"
	"github.com/tipbook/backoffice/internal/settings"
	"github.com/tipbook/backoffice/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
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
	logger := app.NewLogger(cfg, sink).With(slog.String("component", "worker"))

	location, err := cfg.Location()
	if err != nil {
		logger.Error("schedule location", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	backupEngine := backup.NewEngine(conn, artifact.NewDir(cfg.BackupDir),
		backup.WithRetention(settingsStore),
		backup.WithRecorder(metrics),
		backup.WithLogger(logger),
	)
	reportService := reports.NewService(reports.NewSQLRepository(conn), artifact.NewDir(cfg.ReportsDir), logger)
	if redisClient, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, shared report locks disabled", slog.Any("error", err))
	} else {
		defer redisClient.Close()
		reportService.WithLocker(lock.NewRedis(redisClient, 0, 0, logger))
	}

	backupJob := jobs.NewBackupJob(backupEngine, logger, jobMetrics)
	finalizeJob := jobs.NewFinalizeJob(reportService, logger, jobMetrics, location)

	backupTask, err := jobs.NewBackupTask("")
	if err != nil {
		logger.Error("build backup task", slog.Any("error", err))
		os.Exit(1)
	}
	pruneTask, err := jobs.NewPruneTask()
	if err != nil {
		logger.Error("build prune task", slog.Any("error", err))
		os.Exit(1)
	}
	finalizeTask, err := jobs.NewFinalizeTask(time.Time{})
	if err != nil {
		logger.Error("build finalize task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerThreads,
		Location:    location,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskBackupCreate, Handler: backupJob.HandleCreate},
			{Type: jobs.TaskBackupPrune, Handler: backupJob.HandlePrune},
			{Type: jobs.TaskReportFinalize, Handler: finalizeJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.BackupCron, Task: backupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.PruneCron, Task: pruneTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
			{Spec: cfg.FinalizeCron, Task: finalizeTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetrics != "" {
		metricsServer := &http.Server{Addr: cfg.WorkerMetrics, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
