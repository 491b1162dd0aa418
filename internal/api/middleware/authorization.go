package middleware

import (
	"chat-widget-backend/internal/jwt"
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type claimsKey struct{}

// BearerToken returns the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("Bearer "):])
}

// RequireAgent rejects requests without a valid agent token and stores the
// parsed claims on the request context.
func RequireAgent(tokens *jwt.Manager) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				unauthorized(w, "Unauthorized")
				return
			}

			claims, err := tokens.ParseToken(token)
			if err != nil {
				unauthorized(w, "Invalid or expired token")
				return
			}

			next(w, r.WithContext(WithClaims(r.Context(), claims)))
		}
	}
}

// OptionalAgent parses a bearer token when one is present. Invalid tokens are
// still rejected.
func OptionalAgent(tokens *jwt.Manager) Middleware {
	required := RequireAgent(tokens)
	return func(next http.HandlerFunc) http.HandlerFunc {
		guarded := required(next)
		return func(w http.ResponseWriter, r *http.Request) {
			if BearerToken(r) == "" {
				next(w, r)
				return
			}
			guarded(w, r)
		}
	}
}

func WithClaims(ctx context.Context, claims jwt.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

func ClaimsFromContext(ctx context.Context) (jwt.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(jwt.Claims)
	return claims, ok
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
