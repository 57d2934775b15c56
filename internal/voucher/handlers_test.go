package voucher_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/glassworks/internal/voucher"
)

func TestCouponHandlers(t *testing.T) {
	svc, _ := newService(t)
	h := &voucher.Handler{Svc: svc}
	r := chi.NewRouter()
	r.Post("/api/v1/coupons/preview", h.Preview)
	r.Get("/admin/coupons", h.List)
	r.Post("/admin/coupons", h.Create)
	r.Get("/admin/coupons/{code}", h.Get)
	r.Put("/admin/coupons/{code}", h.Update)
	r.Delete("/admin/coupons/{code}", h.Delete)
	r.Post("/admin/coupons/{code}/redeem", h.Redeem)

	send := func(method, target, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := send(http.MethodPost, "/admin/coupons", `{"code":"glass20","discountPercent":20,"minOrderValue":1000}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = send(http.MethodPost, "/admin/coupons", `{"code":"glass20","discountPercent":20,"bogus":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(http.MethodGet, "/admin/coupons/GLASS20", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = send(http.MethodPost, "/api/v1/coupons/preview", `{"code":"glass20","orderValue":1500,"price":"₹1,500"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data voucher.PreviewResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Data.Valid)
	require.Equal(t, 1.0, resp.Data.Discount.OriginalPrice)

	rec = send(http.MethodPost, "/api/v1/coupons/preview", `{"code":"glass20","orderValue":400}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Data.Valid)
	require.Equal(t, "Add ₹600.00 more for this coupon", strings.Split(resp.Data.Summary, " • ")[1])

	rec = send(http.MethodPost, "/api/v1/coupons/preview", `{"orderValue":400}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(http.MethodPost, "/admin/coupons/glass20/redeem", `{"orderValue":400}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = send(http.MethodPost, "/admin/coupons/glass20/redeem", `{"orderValue":1500}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"usedCount":1`)

	rec = send(http.MethodPut, "/admin/coupons/glass20", `{"discountPercent":25}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = send(http.MethodGet, "/admin/coupons", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"discountPercent":25`)

	rec = send(http.MethodDelete, "/admin/coupons/glass20", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = send(http.MethodGet, "/admin/coupons/glass20", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
