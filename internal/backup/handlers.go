package backup

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/glassworks/internal/common"
)

// Handler exposes admin backup endpoints.
type Handler struct {
	Svc *Service
}

type createRequest struct {
	Reason string `json:"reason" validate:"max=64"`
}

// List handles GET /api/v1/admin/backups.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	items, err := h.Svc.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// Create handles POST /api/v1/admin/backups. The body is optional.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req createRequest
	if r.ContentLength != 0 {
		if err := common.BindJSON(r, &req); err != nil {
			common.WriteError(w, err)
			return
		}
	}
	meta, err := h.Svc.Create(r.Context(), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": meta})
}

// Get handles GET /api/v1/admin/backups/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	b, err := h.Svc.Get(r.Context(), idParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": b})
}

// Restore handles POST /api/v1/admin/backups/{id}/restore.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	res, err := h.Svc.Restore(r.Context(), idParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": res})
}

// Delete handles DELETE /api/v1/admin/backups/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if err := h.Svc.Delete(r.Context(), idParam(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "backup service not configured", nil)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		common.WriteError(w, common.NotFound("backup not found", err))
		return
	}
	common.WriteError(w, err)
}

func idParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "id"))
}
