package voucher

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/glassworks/internal/common"
	"github.com/noah-isme/glassworks/internal/pricing"
)

// Handler exposes coupon preview and administrative coupon management endpoints.
type Handler struct {
	Svc *Service
}

type previewRequest struct {
	Code       string         `json:"code" validate:"required,max=32"`
	OrderValue float64        `json:"orderValue" validate:"gte=0"`
	Price      *pricing.Price `json:"price"`
}

// Preview handles POST /api/v1/coupons/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req previewRequest
	if err := common.BindJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	result, err := h.Svc.Preview(r.Context(), req.Code, req.OrderValue, req.Price)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// List handles GET /api/v1/admin/coupons.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	coupons, err := h.Svc.List(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": coupons})
}

// Get handles GET /api/v1/admin/coupons/{code}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	coupon, err := h.Svc.Get(r.Context(), codeParam(r))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": coupon})
}

// Create handles POST /api/v1/admin/coupons.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var in CouponInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	coupon, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": coupon})
}

// Update handles PUT /api/v1/admin/coupons/{code}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var in CouponInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	coupon, err := h.Svc.Update(r.Context(), codeParam(r), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": coupon})
}

// Delete handles DELETE /api/v1/admin/coupons/{code}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if err := h.Svc.Delete(r.Context(), codeParam(r)); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type redeemRequest struct {
	OrderValue float64 `json:"orderValue" validate:"gte=0"`
}

// Redeem handles POST /api/v1/admin/coupons/{code}/redeem, recording a use for an order
// confirmed outside the site.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req redeemRequest
	if err := common.BindJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	coupon, err := h.Svc.Redeem(r.Context(), codeParam(r), req.OrderValue)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": coupon})
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "voucher service not configured", nil)
		return false
	}
	return true
}

func codeParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "code"))
}
