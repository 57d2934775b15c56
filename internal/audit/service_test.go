package audit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/glassworks/internal/common"
)

func newStore(t *testing.T, max int64) *RedisStore {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &RedisStore{Client: client, MaxEntries: max}
}

func TestBuildResource(t *testing.T) {
	require.Equal(t, "products.price", buildResource("/api/v1/admin/products/{id}/price"))
	require.Equal(t, "backups.restore", buildResource("/api/v1/admin/backups/{id}/restore"))
	require.Equal(t, "coupons", buildResource("/api/v1/admin/coupons"))
	require.Equal(t, "unknown", buildResource(""))
	require.Equal(t, "POST /x", buildAction("", "post", "/x"))
	require.Equal(t, "custom", buildAction(" custom ", "POST", "/x"))
}

func TestMiddlewareRecordsMutations(t *testing.T) {
	store := newStore(t, 10)
	fixed := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	rec := HTTPRecorder{Service: Service{Store: store, Enabled: true, Logger: zerolog.Nop(), Now: func() time.Time { return fixed }}}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(common.WithAdmin(req.Context(), "admin")))
		})
	})
	r.Use(rec.Middleware)
	r.Patch("/api/v1/admin/products/{id}/price", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	r.Get("/api/v1/admin/products", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/admin/products/p1/price", nil)
	req.Header.Set("User-Agent", "tester")
	req.RemoteAddr = "10.0.0.2:54321"
	r.ServeHTTP(httptest.NewRecorder(), req)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/admin/products", nil))

	entries, err := store.Recent(req.Context(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	require.Equal(t, "admin", e.Actor)
	require.Equal(t, "PATCH /api/v1/admin/products/{id}/price", e.Action)
	require.Equal(t, "products.price", e.Resource)
	require.Equal(t, "p1", e.ResourceID)
	require.Equal(t, http.StatusAccepted, e.Status)
	require.Equal(t, "10.0.0.2", e.IP)
	require.Equal(t, "tester", e.UserAgent)
	require.Equal(t, fixed, e.Time)
}

func TestDisabledServiceSkips(t *testing.T) {
	store := newStore(t, 10)
	svc := Service{Store: store}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/coupons", nil)
	require.NoError(t, svc.Record(req.Context(), req, "", "", "", 0))
	entries, err := store.Recent(req.Context(), 10)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestStoreCapAndHandler(t *testing.T) {
	store := newStore(t, 2)
	svc := Service{Store: store, Enabled: true, Logger: zerolog.Nop()}
	for _, path := range []string{"/a", "/b", "/c"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		require.NoError(t, svc.Record(req.Context(), req, "", "", "", http.StatusCreated))
	}

	rr := httptest.NewRecorder()
	Handler{Store: store}.List(rr, httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit?limit=5", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Data []Entry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	require.Equal(t, "/c", body.Data[0].Path)
	require.Equal(t, "anonymous", body.Data[0].Actor)

	rr = httptest.NewRecorder()
	Handler{}.List(rr, httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}
