package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/glassworks/internal/common"
	"github.com/noah-isme/glassworks/internal/obs"
)

// Config sets the window for one limited route group. Scope names the group in metrics.
type Config struct {
	Scope  string
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler enforces a sliding-window limit in front of next. When the limiter errors the
// request goes through and OnError is told.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
}

// KeyByIP buckets requests by scope and client IP.
func KeyByIP(scope string) func(*http.Request) string {
	return func(r *http.Request) string {
		return scope + ":" + common.ClientIP(r)
	}
}

func (h Handler) Middleware(next http.Handler) http.Handler {
	cfg := h.Config
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.Key == nil {
			next.ServeHTTP(w, r)
			return
		}
		ok, remaining, resetAt, err := h.Limiter.Allow(r.Context(), cfg.Key(r), cfg.Window, cfg.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}
		writeQuota(w.Header(), cfg.Max, remaining, resetAt)
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		wait := max(int(time.Until(resetAt).Seconds()), 0)
		w.Header().Set("Retry-After", strconv.Itoa(wait))
		obs.Inc(obs.RateLimitedTotal, scopeLabel(cfg.Scope))
		common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded",
			map[string]any{"retry_after_seconds": wait})
	})
}

func writeQuota(h http.Header, limit, remaining int, resetAt time.Time) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(max(limit, 0)))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

func scopeLabel(scope string) string {
	if scope == "" {
		return "default"
	}
	return scope
}
