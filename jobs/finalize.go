package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/tipbook/backoffice/internal/jobs"
	"github.com/tipbook/backoffice/internal/reports"
	"github.com/tipbook/backoffice/internal/shared"
)

// FinalizeTaskName identifies the scheduler as the finalizing actor.
const FinalizeTaskName = "auto_finalize_reports"

type reportFinalizer interface {
	Finalize(ctx context.Context, date time.Time, actor shared.Actor) (reports.DailyBalanceReport, error)
}

// FinalizeJob finalizes the previous day's report on behalf of the scheduler.
// The previous day is taken on the calendar of the schedule location.
type FinalizeJob struct {
	Reports  reportFinalizer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	Location *time.Location
	clock    func() time.Time
}

// NewFinalizeJob wires dependencies for the finalize handler. A nil loc
// means UTC.
func NewFinalizeJob(finalizer reportFinalizer, logger *slog.Logger, metrics *jobmetrics.Metrics, loc *time.Location) *FinalizeJob {
	return &FinalizeJob{
		Reports:  finalizer,
		Logger:   logger,
		Metrics:  metrics,
		Location: loc,
		clock:    time.Now,
	}
}

// Handle processes report:finalize tasks. Missing or already finalized
// reports are logged and skipped without retry.
func (j *FinalizeJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Reports == nil {
		return errors.New("finalize job: handler not configured")
	}
	var payload FinalizePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	date := reports.NormalizeDate(j.now()).AddDate(0, 0, -1)
	if payload.Date != "" {
		parsed, err := reports.ParseDate(payload.Date)
		if err != nil {
			return asynq.SkipRetry
		}
		date = parsed
	}

	tracker := j.metrics().Track(TaskReportFinalize)
	logger := j.logger().With(slog.String("date", date.Format(reports.DateLayout)))

	_, err = j.Reports.Finalize(ctx, date, shared.ScheduledTaskActor(FinalizeTaskName))
	switch {
	case errors.Is(err, reports.ErrNotFound):
		tracker.Skip("not_found")
		logger.Info("no report to finalize")
		return nil
	case errors.Is(err, reports.ErrAlreadyFinalized):
		tracker.Skip("already_finalized")
		logger.Info("report already finalized")
		return nil
	case err != nil:
		logger.Error("finalize report", slog.Any("error", err))
		return tracker.End(err)
	}
	logger.Info("report finalized by schedule")
	return tracker.End(nil)
}

func (j *FinalizeJob) now() time.Time {
	now := time.Now()
	if j.clock != nil {
		now = j.clock()
	}
	if j.Location == nil {
		return now.UTC()
	}
	return now.In(j.Location)
}

func (j *FinalizeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *FinalizeJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
