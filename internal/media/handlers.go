package media

import (
	"net/http"
	"strconv"

	"github.com/noah-isme/glassworks/internal/common"
)

// Handler exposes the admin image maintenance endpoints.
type Handler struct {
	Cleaner *Cleaner
}

type cleanupRequest struct {
	DryRun bool `json:"dryRun"`
}

// Orphans handles GET /api/v1/admin/images/orphans.
func (h *Handler) Orphans(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	res, err := h.Cleaner.Scan(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": res})
}

// Cleanup handles POST /api/v1/admin/images/cleanup. dryRun may come from the body or query.
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req cleanupRequest
	if r.ContentLength != 0 {
		if err := common.DecodeJSON(r, &req); err != nil {
			common.WriteError(w, err)
			return
		}
	}
	if v := r.URL.Query().Get("dryRun"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			common.WriteError(w, common.BadRequest("dryRun must be a boolean", err))
			return
		}
		req.DryRun = parsed
	}
	res, err := h.Cleaner.Cleanup(r.Context(), req.DryRun)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": res})
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.Cleaner == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "media cleaner not configured", nil)
		return false
	}
	return true
}
