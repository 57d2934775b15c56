package audit

import (
	"net/http"

	"github.com/noah-isme/glassworks/internal/common"
)

// Handler exposes the admin audit trail.
type Handler struct {
	Store Store
}

// List handles GET /api/v1/admin/audit?limit=.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_NOT_CONFIGURED", "audit store not configured", nil)
		return
	}
	limit := common.ParseLimit(r.URL.Query().Get("limit"), 50, 500)
	entries, err := h.Store.Recent(r.Context(), limit)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch audit entries", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": entries})
}
