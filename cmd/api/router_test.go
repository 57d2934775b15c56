package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/glassworks/internal/audit"
	"github.com/noah-isme/glassworks/internal/auth"
	"github.com/noah-isme/glassworks/internal/catalog"
	"github.com/noah-isme/glassworks/internal/checkout"
	"github.com/noah-isme/glassworks/internal/common"
	"github.com/noah-isme/glassworks/internal/health"
	"github.com/noah-isme/glassworks/internal/pricing"
	"github.com/noah-isme/glassworks/internal/ratelimit"
	"github.com/noah-isme/glassworks/internal/security"
	"github.com/noah-isme/glassworks/internal/store"
	"github.com/noah-isme/glassworks/internal/voucher"
)

func newTestRouter(t *testing.T) (http.Handler, *audit.RedisStore) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	st, err := store.New(store.Config{Path: filepath.Join(t.TempDir(), "catalog.json")})
	require.NoError(t, err)
	_, err = st.Replace(context.Background(), store.Document{
		Categories: []store.Category{{ID: "c1", Name: "Flasks", Slug: "flasks"}},
		Products: []store.Product{{
			ID: "p1", Name: "Conical Flask", Slug: "conical-flask", CategoryID: "c1",
			Price: "₹120.00 - ₹450.00", Stock: 4, InStock: true,
		}},
	})
	require.NoError(t, err)

	calc := pricing.NewCalculator(pricing.DefaultCurrency)
	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{Store: st, Cache: catalog.NewCache(client, 0), Calculator: calc, Logger: zerolog.Nop()})
	require.NoError(t, err)
	couponSvc, err := voucher.NewService(voucher.Config{Store: st, Calculator: calc, Logger: zerolog.Nop()})
	require.NoError(t, err)

	hash, err := argon2id.CreateHash("correct horse", &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16})
	require.NoError(t, err)
	limiter := ratelimit.Limiter{Client: client}
	authSvc, err := auth.NewService(auth.Config{
		Username: "admin", PasswordHash: hash, Secret: "test-secret",
		Throttle: limiter, LoginMax: 5, LoginWindow: time.Minute, Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	publicLimit, err := ratelimit.NewPublicMiddleware(client, "100-M")
	require.NoError(t, err)

	auditStore := &audit.RedisStore{Client: client, MaxEntries: 50}
	h := routes{
		Logger:      zerolog.Nop(),
		Headers:     security.Headers{Enable: true},
		BodyLimit:   security.BodyLimit{Max: 1 << 16},
		PublicLimit: publicLimit,
		Idem:        common.Idem{R: client},
		Health:      health.Handler{Checker: health.Probes{Redis: client, Store: st}},
		Catalog:     catalog.NewHandler(catalog.HandlerConfig{Service: catalogSvc}),
		Coupons:     &voucher.Handler{Svc: couponSvc},
		Quote:       &checkout.Handler{Svc: &checkout.Service{Store: st, Calculator: calc}},
		Auth:        &auth.Handler{Service: authSvc, AccessCookieName: "admin_session"},
		AuthMW:      auth.Middleware{Service: authSvc, AccessCookie: "admin_session"},
		CSRF:        security.CSRF{Header: auth.CSRFCookieName},
		Audit:       audit.HTTPRecorder{Service: audit.Service{Store: auditStore, Enabled: true, Logger: zerolog.Nop()}},
		AuditLog:    audit.Handler{Store: auditStore},
	}.handler()
	return h, auditStore
}

func do(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestPublicCatalogRoutes(t *testing.T) {
	h, _ := newTestRouter(t)

	rr := do(t, h, http.MethodGet, "/api/v1/products/conical-flask", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.NotEmpty(t, rr.Header().Get("X-RateLimit-Limit"))

	rr = do(t, h, http.MethodGet, "/api/v1/products/missing", "", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/health/ready", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestAdminRoutesRequireAuthAndAreAudited(t *testing.T) {
	h, auditStore := newTestRouter(t)

	rr := do(t, h, http.MethodGet, "/api/v1/admin/products", "", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/v1/admin/auth/login", `{"username":"admin","password":"correct horse"}`, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var login struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &login))
	require.NotEmpty(t, login.Data.AccessToken)

	rr = do(t, h, http.MethodPatch, "/api/v1/admin/products/p1/discount", `{"discountPercent":10}`, login.Data.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/v1/admin/products", "", login.Data.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code)

	entries, err := auditStore.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "admin", entries[0].Actor)
	require.Equal(t, "products.discount", entries[0].Resource)
	require.Equal(t, "p1", entries[0].ResourceID)

	rr = do(t, h, http.MethodGet, "/api/v1/admin/audit?limit=5", "", login.Data.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code)
}
