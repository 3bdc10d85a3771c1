package logshttp

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tipbook/backoffice/internal/logsink"
	"github.com/tipbook/backoffice/internal/platform/httpx"
)

type logReader interface {
	Stats() (logsink.Stats, error)
	Tail(name string, limit int) ([]string, error)
}

// Handler serves the error log viewer endpoints.
type Handler struct {
	logger *slog.Logger
	sink   logReader
}

// NewHandler constructs a logs HTTP handler.
func NewHandler(logger *slog.Logger, sink logReader) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, sink: sink}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/logs", func(r chi.Router) {
		r.Get("/", h.index)
		r.Get("/{name}", h.show)
	})
}

type tailResponse struct {
	Name  string   `json:"name"`
	Lines []string `json:"lines"`
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sink.Stats()
	if err != nil {
		h.logger.Warn("log stats", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	limit := logsink.DefaultTailLines
	if raw := r.URL.Query().Get("lines"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n < limit {
			limit = n
		}
	}
	lines, err := h.sink.Tail(name, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tailResponse{Name: name, Lines: lines})
}
