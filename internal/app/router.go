package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	backuphttp "github.com/tipbook/backoffice/internal/backup/http"
	logshttp "github.com/tipbook/backoffice/internal/logsink/http"
	"github.com/tipbook/backoffice/internal/observability"
	"github.com/tipbook/backoffice/internal/platform/httpx"
	reportshttp "github.com/tipbook/backoffice/internal/reports/http"
	tipreportshttp "github.com/tipbook/backoffice/internal/tipreports/http"
	"github.com/tipbook/backoffice/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	ReportHandler    *reportshttp.Handler
	TipReportHandler *tipreportshttp.Handler
	BackupHandler    *backuphttp.Handler
	LogHandler       *logshttp.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with back-office defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.ReportHandler != nil {
		params.ReportHandler.MountRoutes(r)
	}
	if params.TipReportHandler != nil {
		params.TipReportHandler.MountRoutes(r)
	}
	if params.BackupHandler != nil {
		params.BackupHandler.MountRoutes(r)
	}
	if params.LogHandler != nil {
		params.LogHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}
