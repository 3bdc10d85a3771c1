package tipreportshttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tipbook/backoffice/internal/csvcodec"
	"github.com/tipbook/backoffice/internal/platform/httpx"
	"github.com/tipbook/backoffice/internal/reports"
	"github.com/tipbook/backoffice/internal/tipreports"
)

const defaultListLimit = 10

type tipReportService interface {
	List(ctx context.Context, limit int) ([]tipreports.SavedReport, error)
	Load(ctx context.Context, filename string) (*csvcodec.ParsedTipReport, error)
	Build(ctx context.Context, start, end time.Time) (tipreports.SavedReport, error)
}

// Handler wires HTTP endpoints for saved tip reports.
type Handler struct {
	logger  *slog.Logger
	service tipReportService
}

// NewHandler constructs a tip reports HTTP handler.
func NewHandler(logger *slog.Logger, service tipReportService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/tip-reports", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.build)
		r.Get("/{filename}", h.show)
	})
}

type buildRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type listResponse struct {
	Reports []tipreports.SavedReport `json:"reports"`
}

type showResponse struct {
	Filename string                    `json:"filename"`
	Report   *csvcodec.ParsedTipReport `json:"report"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	items, err := h.service.List(r.Context(), limit)
	if err != nil {
		h.fail(w, "list tip reports", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Reports: items})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	parsed, err := h.service.Load(r.Context(), filename)
	if err != nil {
		h.fail(w, "load tip report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, showResponse{Filename: filename, Report: parsed})
}

func (h *Handler) build(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	start, err := reports.ParseDate(req.StartDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	end, err := reports.ParseDate(req.EndDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	saved, err := h.service.Build(r.Context(), start, end)
	if err != nil {
		h.fail(w, "build tip report", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, saved)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
