package security

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/noah-isme/glassworks/internal/common"
)

// BodyLimit caps request bodies. Overrides maps a path prefix to its own cap, so the
// contact form can stay far below the admin payload size. The longest matching prefix wins.
type BodyLimit struct {
	Max       int64
	Overrides map[string]int64
}

// Middleware buffers the body up to the applicable cap and answers 413 beyond it, so
// handlers never see a truncated payload.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := b.limitFor(r.URL.Path)
		if limit <= 0 || r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > limit {
			tooLarge(w, limit)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
		_ = r.Body.Close()
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				tooLarge(w, limit)
				return
			}
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		r.ContentLength = int64(len(body))
		next.ServeHTTP(w, r)
	})
}

func (b BodyLimit) limitFor(path string) int64 {
	limit, matched := b.Max, 0
	for prefix, n := range b.Overrides {
		if strings.HasPrefix(path, prefix) && len(prefix) > matched {
			limit, matched = n, len(prefix)
		}
	}
	return limit
}

func tooLarge(w http.ResponseWriter, limit int64) {
	common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request entity too large", map[string]any{"limit_bytes": limit})
}
