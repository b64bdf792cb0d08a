// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a type for context keys.
type ContextKey string

// UserIDKey is the context key for user ID.
const UserIDKey ContextKey = "user_id"

var errMissingToken = errors.New("missing authorization header")

// Auth creates JWT authentication middleware that rejects anonymous requests.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return authenticate(jwtSecret, false)
}

// OptionalAuth links the user when a valid token is present. A present but invalid token
// is still rejected.
func OptionalAuth(jwtSecret string) func(http.Handler) http.Handler {
	return authenticate(jwtSecret, true)
}

func authenticate(jwtSecret string, optional bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := parseToken(r.Header.Get("Authorization"), jwtSecret)
			switch {
			case errors.Is(err, errMissingToken) && optional:
				next.ServeHTTP(w, r)
				return
			case err != nil:
				writeUnauthorized(w, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// parseToken verifies an HMAC signed bearer token. The subject is the user id.
func parseToken(authHeader, jwtSecret string) (*jwt.RegisteredClaims, error) {
	if authHeader == "" {
		return nil, errMissingToken
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, errors.New("invalid authorization header format")
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func writeUnauthorized(w http.ResponseWriter, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"success":false,"errors":[{"code":"unauthorized","message":"` + reason + `"}]}`))
}

// GetUserID gets user ID from context.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}
