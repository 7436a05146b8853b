package middleware

import (
	"net/http"
	"strings"

	"repochat/internal/auth"
	"repochat/internal/httputil"
)

// AuthMiddleware verifies the bearer token on every request and places the
// authenticated user ID and display identity into the request context.
// Health checks pass through unauthenticated; OPTIONS is left alone so
// CORS pre-flight requests work.
//
// SSE connections cannot set headers from EventSource, so a token is also
// accepted via the access_token query parameter.
func AuthMiddleware(verifier auth.JWTVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				httputil.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			r = httputil.WithUserID(r, claims.GetUserID())
			r = httputil.WithIdentity(r, claims.DisplayIdentity())
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("access_token")
}
