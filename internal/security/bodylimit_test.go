package security

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func echoBody(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		_, _ = w.Write(data)
	})
}

func TestBodyLimitPassesSmallPayloads(t *testing.T) {
	h := BodyLimit{Max: 64}.Middleware(echoBody(t))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/quote", strings.NewReader(`{"items":[]}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, `{"items":[]}`, rr.Body.String())
}

func TestBodyLimitRejectsStreamedOversize(t *testing.T) {
	h := BodyLimit{Max: 8}.Middleware(echoBody(t))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quote", strings.NewReader(strings.Repeat("x", 32)))
	req.ContentLength = -1
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "PAYLOAD_TOO_LARGE", body.Error.Code)
	require.Equal(t, 8.0, body.Error.Details["limit_bytes"])
}

func TestBodyLimitDeclaredLength(t *testing.T) {
	h := BodyLimit{Max: 5}.Middleware(echoBody(t))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quote", strings.NewReader("content"))
	req.ContentLength = 100
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestBodyLimitOverrides(t *testing.T) {
	limit := BodyLimit{Max: 1024, Overrides: map[string]int64{"/api/v1/contact": 10, "/api/v1/admin": 4096}}
	require.Equal(t, int64(10), limit.limitFor("/api/v1/contact"))
	require.Equal(t, int64(4096), limit.limitFor("/api/v1/admin/backups"))
	require.Equal(t, int64(1024), limit.limitFor("/api/v1/quote"))

	h := limit.Middleware(echoBody(t))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/contact", strings.NewReader(strings.Repeat("x", 20))))
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}
