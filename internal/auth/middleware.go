package auth

import (
	"net/http"
	"strings"

	"github.com/noah-isme/glassworks/internal/common"
)

const bearerPrefix = "bearer "

// Middleware authenticates admin requests from a bearer token or the session cookie.
type Middleware struct {
	Service      *Service
	AccessCookie string
}

// RequireAuth rejects unauthenticated requests with 401 and a WWW-Authenticate challenge.
// On success the admin username is available through common.Admin.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Service == nil {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "auth service not configured", nil)
			return
		}
		token, source := m.token(r)
		if token == "" {
			challenge(w, "missing or invalid token")
			return
		}
		subject, err := m.Service.ParseAccessToken(token)
		if err == nil {
			_, err = m.Service.Me(subject)
		}
		if err != nil {
			if _, ok := common.AsAppError(err); ok && common.StatusOf(err) != http.StatusUnauthorized {
				common.WriteError(w, err)
				return
			}
			m.Service.logger.Debug().Err(err).Str("source", source).Msg("admin token rejected")
			challenge(w, "missing or invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithAdmin(r.Context(), subject)))
	})
}

// token returns the credential and where it came from ("bearer" or "cookie").
func (m Middleware) token(r *http.Request) (string, string) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > len(bearerPrefix) && strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(header[len(bearerPrefix):]), "bearer"
	}
	if m.AccessCookie == "" {
		return "", ""
	}
	cookie, err := r.Cookie(m.AccessCookie)
	if err != nil {
		return "", ""
	}
	return strings.TrimSpace(cookie.Value), "cookie"
}

func challenge(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="glassworks-admin"`)
	common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}
