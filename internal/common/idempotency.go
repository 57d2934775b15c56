package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	idempotencyHeader  = "Idempotency-Key"
	maxIdempotencyKey  = 128
	defaultIdemTTL     = 24 * time.Hour
	idempotencyPending = "pending"
)

// Idem makes write endpoints safe to retry. The first request carrying a given
// Idempotency-Key claims it in Redis; repeats within TTL get 409 IDEMPOTENT_REPLAY. A 5xx
// response releases the claim so the client may retry. Requests without the header pass.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

// Middleware enforces idempotency semantics for write endpoints.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(idempotencyHeader)
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		if len(header) > maxIdempotencyKey {
			JSONError(w, http.StatusBadRequest, "INVALID_IDEMPOTENCY_KEY", "idempotency key too long", map[string]any{"max_length": maxIdempotencyKey})
			return
		}
		key := idempotencyKey(r, header)
		claimed, err := i.R.SetNX(r.Context(), key, idempotencyPending, i.ttl()).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", nil)
			return
		}
		if !claimed {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", nil)
			return
		}

		rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			// a panic or server error must not burn the key
			if p := recover(); p != nil {
				_ = i.R.Del(context.Background(), key).Err()
				panic(p)
			}
			if rec.status >= http.StatusInternalServerError {
				_ = i.R.Del(context.Background(), key).Err()
			}
		}()
		next.ServeHTTP(rec, r)
	})
}

func (i Idem) ttl() time.Duration {
	if i.TTL > 0 {
		return i.TTL
	}
	return defaultIdemTTL
}

// idempotencyKey scopes the client key to method, path and caller.
func idempotencyKey(r *http.Request, key string) string {
	return "idem:" + Sha256Hex(r.Method+" "+r.URL.Path+" "+ClientIP(r)+" "+key)
}

// Sha256Hex returns the SHA-256 digest of the input encoded as lowercase hex.
func Sha256Hex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusWriter) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Write(p []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(p)
}
