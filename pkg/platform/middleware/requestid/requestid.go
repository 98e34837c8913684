// Package requestid tags each request with a correlation ID.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"timevault/pkg/requestcontext"
)

// Header carries the request ID on responses and may supply one on requests.
const Header = "X-Request-Id"

// Middleware reuses the caller's request ID or generates one, reflects it on
// the response, and injects it into the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(Header)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		w.Header().Set(Header, reqID)
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
