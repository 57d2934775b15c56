package lead

import (
	"net/http"

	"github.com/noah-isme/glassworks/internal/common"
)

// Handler exposes the contact form and the admin lead list.
type Handler struct {
	Svc *Service
}

// Submit handles POST /api/v1/contact.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var in Submission
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	l, err := h.Svc.Submit(r.Context(), in, Meta{IP: common.ClientIP(r), UserAgent: r.UserAgent()})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusAccepted, map[string]any{"data": map[string]any{"id": l.ID, "received": true}})
}

// List handles GET /api/v1/admin/leads?page=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	items, meta, err := h.Svc.List(r.Context(), page, perPage)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": meta})
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "lead service not configured", nil)
		return false
	}
	return true
}
