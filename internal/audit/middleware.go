package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HTTPRecorder records admin mutations after they have been handled.
type HTTPRecorder struct {
	Service Service
	OnError func(error)
}

var idParams = []string{"id", "code", "slug"}

// Middleware records every non-read request passing through it.
func (r HTTPRecorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, req)
			return
		}
		if !r.Service.Enabled {
			next.ServeHTTP(w, req)
			return
		}

		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, req)

		var route, resourceID string
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			route = rctx.RoutePattern()
			for _, name := range idParams {
				if v := rctx.URLParam(name); v != "" {
					resourceID = v
					break
				}
			}
		}
		if err := r.Service.Record(req.Context(), req, route, "", resourceID, recorder.Status()); err != nil && r.OnError != nil {
			r.OnError(err)
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Status() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}
