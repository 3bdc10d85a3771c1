package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/tipbook/backoffice/internal/jobs"
	"github.com/tipbook/backoffice/internal/reports"
	"github.com/tipbook/backoffice/internal/shared"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubBackupRunner struct {
	createFn func(ctx context.Context) (string, error)
	pruneFn  func(ctx context.Context) (int, error)
}

func (s *stubBackupRunner) CreateBackup(ctx context.Context) (string, error) { return s.createFn(ctx) }
func (s *stubBackupRunner) Prune(ctx context.Context) (int, error) { return s.pruneFn(ctx) }

type stubFinalizer struct {
	finalizeFn func(ctx context.Context, date time.Time, actor shared.Actor) (reports.DailyBalanceReport, error)
}

func (s *stubFinalizer) Finalize(ctx context.Context, date time.Time, actor shared.Actor) (reports.DailyBalanceReport, error) {
	return s.finalizeFn(ctx, date, actor)
}

func TestTaskPayloads(t *testing.T) {
	task, err := NewFinalizeTask(time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, TaskReportFinalize, task.Type())
	require.JSONEq(t, `{"date":"2025-06-01"}`, string(task.Payload()))

	task, err = NewFinalizeTask(time.Time{})
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(task.Payload()))

	for _, name := range []string{TaskBackupCreate, TaskBackupPrune, TaskReportFinalize} {
		task, err := NewTaskByName(name)
		require.NoError(t, err)
		require.Equal(t, name, task.Type())
	}
	_, err = NewTaskByName("mail:send")
	require.Error(t, err)
}

func TestBackupJobCreate(t *testing.T) {
	calls := 0
	job := NewBackupJob(&stubBackupRunner{createFn: func(context.Context) (string, error) {
		calls++
		return "backup_20250601_030000.db", nil
	}}, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewBackupTask("req-1")
	require.NoError(t, err)
	require.NoError(t, job.HandleCreate(context.Background(), task))
	require.Equal(t, 1, calls)

	require.ErrorIs(t, job.HandleCreate(context.Background(), asynq.NewTask(TaskBackupCreate, []byte("{"))), asynq.SkipRetry)
	require.Equal(t, 1, calls)
}

func TestBackupJobCreateReturnsFailure(t *testing.T) {
	boom := errors.New("disk full")
	job := NewBackupJob(&stubBackupRunner{createFn: func(context.Context) (string, error) {
		return "", boom
	}}, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewBackupTask("")
	require.NoError(t, err)
	require.ErrorIs(t, job.HandleCreate(context.Background(), task), boom)
}

func TestBackupJobPrune(t *testing.T) {
	job := NewBackupJob(&stubBackupRunner{pruneFn: func(context.Context) (int, error) {
		return 3, nil
	}}, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewPruneTask()
	require.NoError(t, err)
	require.NoError(t, job.HandlePrune(context.Background(), task))

	var unconfigured *BackupJob
	require.Error(t, unconfigured.HandlePrune(context.Background(), task))
}

func TestFinalizeJobUsesPreviousDayAndScheduledActor(t *testing.T) {
	var gotDate time.Time
	var gotActor shared.Actor
	job := NewFinalizeJob(&stubFinalizer{finalizeFn: func(_ context.Context, date time.Time, actor shared.Actor) (reports.DailyBalanceReport, error) {
		gotDate, gotActor = date, actor
		return reports.DailyBalanceReport{Date: date}, nil
	}}, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()), nil)
	job.clock = func() time.Time { return time.Date(2025, 6, 2, 4, 30, 0, 0, time.UTC) }

	task, err := NewFinalizeTask(time.Time{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, "2025-06-01", gotDate.Format(reports.DateLayout))
	require.Equal(t, shared.ActorScheduledTask, gotActor.Kind)
	require.Equal(t, FinalizeTaskName, gotActor.Name)
	require.Zero(t, gotActor.ID)

	task, err = NewFinalizeTask(time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, "2025-05-20", gotDate.Format(reports.DateLayout))
}

func TestFinalizeJobTakesPreviousDayInScheduleZone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	var gotDate time.Time
	job := NewFinalizeJob(&stubFinalizer{finalizeFn: func(_ context.Context, date time.Time, _ shared.Actor) (reports.DailyBalanceReport, error) {
		gotDate = date
		return reports.DailyBalanceReport{Date: date}, nil
	}}, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()), tokyo)
	task, err := NewFinalizeTask(time.Time{})
	require.NoError(t, err)

	// 04:30 in Tokyo on June 2 is still June 1 in UTC.
	job.clock = func() time.Time { return time.Date(2025, 6, 1, 19, 30, 0, 0, time.UTC) }
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, "2025-06-01", gotDate.Format(reports.DateLayout))

	job.clock = func() time.Time { return time.Date(2025, 6, 2, 4, 30, 0, 0, tokyo) }
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, "2025-06-01", gotDate.Format(reports.DateLayout))
}

func TestFinalizeJobSkipsMissingAndFinalized(t *testing.T) {
	for _, skipErr := range []error{
		fmt.Errorf("%w: 2025-06-01", reports.ErrNotFound),
		reports.ErrAlreadyFinalized,
	} {
		job := NewFinalizeJob(&stubFinalizer{finalizeFn: func(context.Context, time.Time, shared.Actor) (reports.DailyBalanceReport, error) {
			return reports.DailyBalanceReport{}, skipErr
		}}, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()), nil)
		task, err := NewFinalizeTask(time.Time{})
		require.NoError(t, err)
		require.NoError(t, job.Handle(context.Background(), task))
	}
}

func TestFinalizeJobRetriesOtherErrors(t *testing.T) {
	boom := errors.New("database is locked")
	job := NewFinalizeJob(&stubFinalizer{finalizeFn: func(context.Context, time.Time, shared.Actor) (reports.DailyBalanceReport, error) {
		return reports.DailyBalanceReport{}, boom
	}}, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()), nil)
	task, err := NewFinalizeTask(time.Time{})
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, asynq.SkipRetry)

	bad := asynq.NewTask(TaskReportFinalize, []byte(`{"date":"June 1"}`))
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func TestHealthHandler(t *testing.T) {
	cases := map[string]struct {
		inspector queueInspector
		code      int
		pending   int
	}{
		"no inspector": {code: http.StatusOK},
		"queue info":   {inspector: stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4}}, code: http.StatusOK, pending: 4},
		"redis down":   {inspector: stubInspector{err: errors.New("dial tcp: refused")}, code: http.StatusServiceUnavailable},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := NewHandler(nil, discardLogger())
			h.inspector = tc.inspector
			r := chi.NewRouter()
			r.Route("/jobs", h.MountRoutes)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
			require.Equal(t, tc.code, rec.Code)
			if tc.code != http.StatusOK {
				return
			}
			var body queueHealth
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, QueueDefault, body.Queue)
			require.Equal(t, tc.pending, body.Pending)
		})
	}
}
