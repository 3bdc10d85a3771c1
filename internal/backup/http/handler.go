package backuphttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tipbook/backoffice/internal/backup"
	"github.com/tipbook/backoffice/internal/platform/httpx"
)

type backupEngine interface {
	CreateBackup(ctx context.Context) (string, error)
	ListBackups(ctx context.Context) ([]backup.Artifact, error)
	RemoveBackup(ctx context.Context, filename string) error
	BackupPath(ctx context.Context, filename string) (string, error)
}

// Handler exposes database backups over HTTP.
type Handler struct {
	logger      *slog.Logger
	engine      backupEngine
	createLimit func(http.Handler) http.Handler
}

// NewHandler constructs the handler. createLimit guards POST /backups and
// may be nil.
func NewHandler(logger *slog.Logger, engine backupEngine, createLimit func(http.Handler) http.Handler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, engine: engine, createLimit: createLimit}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/backups", func(r chi.Router) {
		r.Get("/", h.list)
		if h.createLimit != nil {
			r.With(h.createLimit).Post("/", h.create)
		} else {
			r.Post("/", h.create)
		}
		r.Get("/{filename}", h.download)
		r.Delete("/{filename}", h.delete)
	})
}

type listResponse struct {
	Backups []backup.Artifact `json:"backups"`
}

type createResponse struct {
	Filename string `json:"filename"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.engine.ListBackups(r.Context())
	if err != nil {
		h.logger.Error("list backups", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []backup.Artifact{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Backups: items})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	name, err := h.engine.CreateBackup(r.Context())
	if err != nil {
		h.logger.Error("create backup", slog.Any("error", err))
		if errors.Is(err, backup.ErrBackupFailed) {
			httpx.Problem(w, http.StatusInternalServerError, "Backup Failed", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, createResponse{Filename: name})
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	path, err := h.engine.BackupPath(r.Context(), filename)
	if err != nil {
		h.logger.Warn("download backup", slog.String("filename", filename), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeFile(w, r, path)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if !backup.ValidFilename(filename) {
		httpx.RespondError(w, fmt.Errorf("%w: %q", backup.ErrInvalidFilename, filename))
		return
	}
	if err := h.engine.RemoveBackup(r.Context(), filename); err != nil {
		h.logger.Warn("delete backup", slog.String("filename", filename), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
