package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/tipbook/backoffice/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

type backupRunner interface {
	CreateBackup(ctx context.Context) (string, error)
	Prune(ctx context.Context) (int, error)
}

// BackupJob runs scheduled database backups and retention pruning.
type BackupJob struct {
	Engine  backupRunner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewBackupJob wires dependencies for the backup handlers.
func NewBackupJob(engine backupRunner, logger *slog.Logger, metrics *jobmetrics.Metrics) *BackupJob {
	return &BackupJob{Engine: engine, Logger: logger, Metrics: metrics}
}

// HandleCreate processes backup:create tasks.
func (j *BackupJob) HandleCreate(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Engine == nil {
		return errors.New("backup job: handler not configured")
	}
	var payload BackupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RequestID == "" {
		payload.RequestID = uuid.NewString()
	}

	tracker := j.metrics().Track(TaskBackupCreate)
	defer func() { err = tracker.End(err) }()

	logger := j.logger().With(slog.String("request_id", payload.RequestID))
	name, err := j.Engine.CreateBackup(ctx)
	if err != nil {
		logger.Error("scheduled backup failed", slog.Any("error", err))
		return err
	}
	logger.Info("scheduled backup created", slog.String("filename", name))
	return nil
}

// HandlePrune processes backup:prune tasks.
func (j *BackupJob) HandlePrune(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Engine == nil {
		return errors.New("backup job: handler not configured")
	}
	tracker := j.metrics().Track(TaskBackupPrune)
	defer func() { err = tracker.End(err) }()

	removed, err := j.Engine.Prune(ctx)
	if err != nil {
		j.logger().Error("prune backups", slog.Int("removed", removed), slog.Any("error", err))
		return err
	}
	j.logger().Info("backups pruned", slog.Int("removed", removed))
	return nil
}

func (j *BackupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *BackupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
