package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/noah-isme/glassworks/internal/common"
)

const defaultCSRFName = "X-CSRF-Token"

var csrfSafeMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodHead:    {},
	http.MethodOptions: {},
	http.MethodTrace:   {},
}

// CSRF guards cookie-authenticated admin mutations with a double-submit token: the value of
// the Cookie must be echoed in the Header. Both default to X-CSRF-Token. Bearer-token
// requests carry no ambient credentials and pass through.
type CSRF struct {
	Header string
	Cookie string
}

// Middleware rejects unsafe requests whose header and cookie tokens are missing or differ.
func (c CSRF) Middleware(next http.Handler) http.Handler {
	header := nameOr(c.Header, defaultCSRFName)
	cookieName := nameOr(c.Cookie, header)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, safe := csrfSafeMethods[r.Method]; safe || hasBearer(r) {
			next.ServeHTTP(w, r)
			return
		}
		sent := strings.TrimSpace(r.Header.Get(header))
		if sent == "" {
			csrfFailed(w, "missing csrf token")
			return
		}
		cookie, err := r.Cookie(cookieName)
		if err != nil || strings.TrimSpace(cookie.Value) == "" {
			csrfFailed(w, "missing csrf cookie")
			return
		}
		if subtle.ConstantTimeCompare([]byte(sent), []byte(strings.TrimSpace(cookie.Value))) != 1 {
			csrfFailed(w, "invalid csrf token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func hasBearer(r *http.Request) bool {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	return len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ")
}

func nameOr(name, fallback string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return fallback
}

func csrfFailed(w http.ResponseWriter, message string) {
	common.JSONError(w, http.StatusForbidden, "CSRF_FAILED", message, nil)
}
