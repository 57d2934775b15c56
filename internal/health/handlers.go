package health

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/noah-isme/glassworks/internal/common"
)

// ErrNotConfigured marks an optional dependency that is switched off.
var ErrNotConfigured = errors.New("not configured")

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady flips the readiness flag. The API clears it when shutdown begins.
func SetReady(v bool) { ready.Store(v) }

// Checker represents dependencies that can be checked for readiness.
type Checker interface {
	PingDB(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
	PingStore(ctx context.Context) error
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker      Checker
	DBTimeout    time.Duration
	RedisTimeout time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency checks. A database that is not
// configured reports "disabled" and does not fail the check.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Checker == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "NOT_READY", "dependencies unavailable", nil)
		return
	}
	if !ready.Load() {
		common.JSONError(w, http.StatusServiceUnavailable, "SHUTTING_DOWN", "server is shutting down", nil)
		return
	}
	ctx := r.Context()
	status := map[string]string{
		"db":    checkStatus(h.Checker.PingDB(ctx, h.dbTimeout())),
		"redis": checkStatus(h.Checker.PingRedis(ctx, h.redisTimeout())),
		"store": checkStatus(h.Checker.PingStore(ctx)),
	}
	code := http.StatusOK
	for _, v := range status {
		if v != "ok" && v != "disabled" {
			code = http.StatusServiceUnavailable
		}
	}
	common.JSON(w, code, status)
}

func checkStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotConfigured):
		return "disabled"
	default:
		return err.Error()
	}
}

func (h Handler) dbTimeout() time.Duration {
	if h.DBTimeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.DBTimeout
}

func (h Handler) redisTimeout() time.Duration {
	if h.RedisTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.RedisTimeout
}
