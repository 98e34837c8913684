package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"timevault/pkg/domain"
	"timevault/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns the signer identity.
type TokenValidator interface {
	ValidateToken(tokenString string) (domain.Address, error)
}

// RequireSigner rejects requests without a valid bearer token and injects the
// proven signer identity into the request context.
func RequireSigner(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const bearerPrefix = "Bearer "
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, bearerPrefix) {
				writeAuthError(w, "missing bearer token")
				return
			}

			signer, err := validator.ValidateToken(strings.TrimPrefix(authHeader, bearerPrefix))
			if err != nil {
				logger.Debug("token validation failed", "error", err)
				writeAuthError(w, "invalid bearer token")
				return
			}

			ctx := requestcontext.WithSigner(r.Context(), signer)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, desc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"UNAUTHENTICATED","error_description":"` + desc + `"}`))
}
