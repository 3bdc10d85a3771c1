package reportshttp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tipbook/backoffice/internal/platform/artifact"
	"github.com/tipbook/backoffice/internal/platform/httpx"
	"github.com/tipbook/backoffice/internal/reports"
	"github.com/tipbook/backoffice/internal/shared"
)

type reportService interface {
	Generate(ctx context.Context, in reports.GenerateInput, actor shared.Actor) (reports.DailyBalanceReport, error)
	Finalize(ctx context.Context, date time.Time, actor shared.Actor) (reports.DailyBalanceReport, error)
	Get(ctx context.Context, date time.Time) (reports.DailyBalanceReport, error)
	ListFinalized(ctx context.Context, month time.Time) ([]reports.DailyBalanceReport, error)
	Export(ctx context.Context, date time.Time) (artifact.Artifact, error)
}

// Handler wires HTTP endpoints for daily balance reports.
type Handler struct {
	logger  *slog.Logger
	service reportService
	now     func() time.Time
}

// NewHandler constructs a reports HTTP handler.
func NewHandler(logger *slog.Logger, service reportService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, now: time.Now}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/", h.listFinalized)
		r.Get("/{date}", h.show)
		r.Post("/{date}", h.generate)
		r.Post("/{date}/finalize", h.finalize)
		r.Post("/{date}/export", h.export)
	})
}

type reportView struct {
	reports.DailyBalanceReport
	State reports.State      `json:"state"`
	Audit reports.AuditTrail `json:"audit"`
}

func viewOf(r reports.DailyBalanceReport) reportView {
	return reportView{DailyBalanceReport: r, State: r.State(), Audit: r.Audit()}
}

type monthListing struct {
	Month     string       `json:"month"`
	PrevMonth string       `json:"prev_month"`
	NextMonth string       `json:"next_month"`
	Reports   []reportView `json:"reports"`
}

type generateRequest struct {
	TotalCashSales     decimal.Decimal      `json:"total_cash_sales"`
	TotalCardSales     decimal.Decimal      `json:"total_card_sales"`
	TotalTipsCollected decimal.Decimal      `json:"total_tips_collected"`
	Notes              string               `json:"notes"`
	Entries            []reports.EntryInput `json:"entries"`
}

type exportResponse struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// listFinalized falls back to the current month when month is missing or
// malformed.
func (h *Handler) listFinalized(w http.ResponseWriter, r *http.Request) {
	month := firstOfMonth(h.now())
	if raw := strings.TrimSpace(r.URL.Query().Get("month")); raw != "" {
		if parsed, err := time.Parse("2006-01", raw); err == nil {
			month = parsed
		}
	}
	list, err := h.service.ListFinalized(r.Context(), month)
	if err != nil {
		h.fail(w, "list finalized reports", err)
		return
	}
	views := make([]reportView, 0, len(list))
	for _, report := range list {
		views = append(views, viewOf(report))
	}
	httpx.JSON(w, http.StatusOK, monthListing{
		Month:     month.Format("2006-01"),
		PrevMonth: month.AddDate(0, -1, 0).Format("2006-01"),
		NextMonth: month.AddDate(0, 1, 0).Format("2006-01"),
		Reports:   views,
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	date, err := reports.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.Get(r.Context(), date)
	if err != nil {
		h.fail(w, "get report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(report))
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.RequireActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := reports.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req generateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.Generate(r.Context(), reports.GenerateInput{
		Date:          date,
		CashSales:     req.TotalCashSales,
		CardSales:     req.TotalCardSales,
		TipsCollected: req.TotalTipsCollected,
		Notes:         req.Notes,
		Entries:       req.Entries,
	}, actor)
	if err != nil {
		h.fail(w, "generate report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(report))
}

func (h *Handler) finalize(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.RequireActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := reports.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.Finalize(r.Context(), date, actor)
	if err != nil {
		h.fail(w, "finalize report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(report))
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	date, err := reports.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.Export(r.Context(), date)
	if err != nil {
		h.fail(w, "export report", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, exportResponse{Filename: a.Name, Size: a.Size})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func firstOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
