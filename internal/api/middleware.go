package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/dunamismax/trackprep/internal/id"
)

type requestIDKey struct{}

const maxRequestIDLength = 128

// withRequestContext tags every response with a request id and the CORS
// origin header.
func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = id.New()
		}
		w.Header().Set("X-Request-ID", requestID)

		if origin, ok := allowOrigin(r.Header.Get("Origin"), s.allowedOrigins); ok {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			if origin != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// allowOrigin returns "*" when no allow-list is configured (or it contains
// "*"), the request origin when it is listed, and false otherwise.
func allowOrigin(origin string, allowed []string) (string, bool) {
	if len(allowed) == 0 {
		return "*", true
	}
	for _, a := range allowed {
		a = strings.TrimSpace(a)
		if a == "*" {
			return "*", true
		}
		if origin != "" && a == origin {
			return origin, true
		}
	}
	return "", false
}

func requestIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}
