package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/glassworks/internal/common"
	"github.com/noah-isme/glassworks/internal/pricing"
)

// Handler exposes public and admin catalog endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Categories handles GET /api/v1/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	rows, err := h.service.ListCategories(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// CategoryProducts handles GET /api/v1/categories/{slug}/products.
func (h *Handler) CategoryProducts(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	out, err := h.service.CategoryProducts(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Products handles GET /api/v1/products?category=&q=&featured=&inStock=.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	filter, err := ParseListFilter(r.URL.Query())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	items, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// ProductDetail handles GET /api/v1/products/{slug}.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	detail, err := h.service.ProductDetail(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": detail})
}

// AdminProducts handles GET /api/v1/admin/products.
func (h *Handler) AdminProducts(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	items, err := h.service.AdminProducts(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

type priceRequest struct {
	Price string `json:"price" validate:"required,max=200"`
}

// UpdatePrice handles PATCH /api/v1/admin/products/{id}/price.
func (h *Handler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req priceRequest
	if err := common.BindJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	view, err := h.service.UpdatePrice(r.Context(), chi.URLParam(r, "id"), req.Price)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

type inventoryRequest struct {
	Stock   *int  `json:"stock" validate:"required,min=0"`
	InStock *bool `json:"inStock"`
}

// UpdateInventory handles PATCH /api/v1/admin/products/{id}/inventory.
func (h *Handler) UpdateInventory(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req inventoryRequest
	if err := common.BindJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	view, err := h.service.UpdateInventory(r.Context(), chi.URLParam(r, "id"), *req.Stock, req.InStock)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

type discountRequest struct {
	DiscountPercent *float64 `json:"discountPercent" validate:"required,min=0,max=100"`
}

// SetDiscount handles PATCH /api/v1/admin/products/{id}/discount.
func (h *Handler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req discountRequest
	if err := common.BindJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	view, err := h.service.SetDiscount(r.Context(), chi.URLParam(r, "id"), *req.DiscountPercent)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

type previewRequest struct {
	Price           pricing.Price `json:"price"`
	DiscountPercent *float64      `json:"discountPercent" validate:"required,min=0,max=100"`
}

// PreviewPrice handles POST /api/v1/admin/prices/preview.
func (h *Handler) PreviewPrice(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req previewRequest
	if err := common.BindJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.service.PreviewPrice(req.Price, *req.DiscountPercent)})
}

// CreateCategory handles POST /api/v1/admin/categories.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var in CategoryInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	cat, err := h.service.CreateCategory(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": cat})
}

// UpdateCategory handles PUT /api/v1/admin/categories/{id}.
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var in CategoryInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	cat, err := h.service.UpdateCategory(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": cat})
}

// DeleteCategory handles DELETE /api/v1/admin/categories/{id}.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if err := h.service.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return false
	}
	return true
}
