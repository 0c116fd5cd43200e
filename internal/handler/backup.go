package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tidebrook/choretally/internal/backup"
	"github.com/tidebrook/choretally/internal/model"
	"github.com/tidebrook/choretally/internal/points"
)

// BackupHandler exposes the backup manager. All routes are admin only,
// enforced by the router's middleware chain.
type BackupHandler struct {
	manager    *backup.Manager
	reconciler *points.Reconciler
	logger     *slog.Logger
}

func NewBackupHandler(manager *backup.Manager, reconciler *points.Reconciler, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: manager, reconciler: reconciler, logger: logger}
}

// Run handles POST /api/admin/backups
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	id, err := h.manager.RunNow(r.Context())
	if err != nil {
		h.logger.Error("run backup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "backup failed"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"backup_id": id})
}

// List handles GET /api/admin/backups
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	backups, err := h.manager.List(limit)
	if err != nil {
		h.logger.Error("list backups", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list backups"})
		return
	}
	if backups == nil {
		backups = []model.Backup{}
	}
	writeJSON(w, http.StatusOK, backups)
}

// Status handles GET /api/admin/backups/status
func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Status())
}

// Download handles GET /api/admin/backups/{id}/download
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	body, size, err := h.manager.Download(r.Context(), id)
	if err != nil {
		h.logger.Error("download backup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "download failed"})
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	io.Copy(w, body)
}

// Restore handles POST /api/admin/backups/{id}/restore. On success the
// process exits so a supervisor restarts it against the restored database.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.manager.Restore(r.Context(), id); err != nil {
		h.logger.Error("restore backup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "restore failed"})
		return
	}
}

// Reconcile handles POST /api/admin/reconcile?rebuild=true. Without rebuild
// it reports drift; with it, drifted projection rows are overwritten from
// the ledger.
func (h *BackupHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("rebuild") == "true" {
		repaired, err := h.reconciler.Rebuild()
		if err != nil {
			respondError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"repaired": repaired})
		return
	}

	drifts, err := h.reconciler.Verify()
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if drifts == nil {
		drifts = []points.Drift{}
	}
	writeJSON(w, http.StatusOK, drifts)
}
