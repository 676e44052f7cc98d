package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// RequireAuth guards the trigger endpoints with a bearer JWT signed with the
// shared service key (HS256). Triggers are invoked by the scheduler or
// operators, not end users, so a single shared credential is sufficient.
func RequireAuth(signingKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	key := []byte(signingKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				unauthorized(w, "Missing or invalid Authorization header")
				return
			}

			_, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return key, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized trigger call", "error", err)
				unauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
