package auth

import (
	"net/http"

	"github.com/noah-isme/glassworks/internal/common"
)

// CSRFCookieName is readable by the admin UI, which echoes it in the X-CSRF-Token header.
const CSRFCookieName = "X-CSRF-Token"

// Handler exposes the admin session endpoints.
type Handler struct {
	Service          *Service
	AccessCookieName string
	CookieDomain     string
	CookieSecure     bool
	CookieSameSite   http.SameSite
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=200"`
}

// Login handles POST /api/v1/admin/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req loginRequest
	if err := common.BindJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	result, err := h.Service.Login(r.Context(), req.Username, req.Password, common.ClientIP(r))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.setCookies(w, result)
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// Logout handles POST /api/v1/admin/auth/logout. Tokens are stateless, so only the cookies are cleared.
func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.clearCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/admin/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	name, ok := common.Admin(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	admin, err := h.Service.Me(name)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": admin})
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "auth service not configured", nil)
		return false
	}
	return true
}

func (h *Handler) setCookies(w http.ResponseWriter, result LoginResult) {
	if h.AccessCookieName != "" {
		http.SetCookie(w, h.cookie(h.AccessCookieName, result.AccessToken, true, result))
	}
	http.SetCookie(w, h.cookie(CSRFCookieName, result.CSRFToken, false, result))
}

func (h *Handler) cookie(name, value string, httpOnly bool, result LoginResult) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Domain:   h.CookieDomain,
		Path:     "/",
		Expires:  result.AccessExpiry,
		HttpOnly: httpOnly,
		Secure:   h.CookieSecure,
		SameSite: h.CookieSameSite,
	}
}

func (h *Handler) clearCookies(w http.ResponseWriter) {
	for _, name := range []string{h.AccessCookieName, CSRFCookieName} {
		if name == "" {
			continue
		}
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Domain:   h.CookieDomain,
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: name == h.AccessCookieName,
			Secure:   h.CookieSecure,
			SameSite: h.CookieSameSite,
		})
	}
}
