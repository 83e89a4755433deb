package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"tessera/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator.
type JWTClaims struct {
	UserID string
	Role   string
}

// RoleAdmin marks tokens issued to back-office operators.
const RoleAdmin = "admin"

type contextKeyUserID struct{}

// GetUserID retrieves the authenticated user ID from the context.
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(contextKeyUserID{}).(string)
	if !ok {
		return ""
	}
	return userID
}

// WithUserID injects an authenticated user ID into a context. Useful for
// handler tests that skip the middleware chain.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKeyUserID{}, userID)
}

// RequireAuth validates the bearer token and stores the user ID in context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := bearerClaims(w, r, validator, logger)
			if !ok {
				return
			}
			ctx := context.WithValue(r.Context(), contextKeyUserID{}, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin validates the bearer token and additionally requires the admin
// role. The admin ID is stored in the request context so services can record
// who performed the change.
func RequireAdmin(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := bearerClaims(w, r, validator, logger)
			if !ok {
				return
			}
			if claims.Role != RoleAdmin {
				logger.WarnContext(r.Context(), "forbidden - admin role required",
					"request_id", GetRequestID(r.Context()),
				)
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"admin role required"}`))
				return
			}
			ctx := requestcontext.WithAdminID(r.Context(), claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerClaims(w http.ResponseWriter, r *http.Request, validator JWTValidator, logger *slog.Logger) (*JWTClaims, bool) {
	const bearerPrefix = "Bearer "
	authHeader := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(authHeader, bearerPrefix)
	if !ok {
		logger.WarnContext(r.Context(), "unauthorized access - missing token",
			"request_id", GetRequestID(r.Context()),
		)
		writeUnauthorized(w, "Missing or invalid Authorization header")
		return nil, false
	}

	claims, err := validator.ValidateToken(token)
	if err != nil {
		logger.WarnContext(r.Context(), "unauthorized access - invalid token",
			"error", err,
			"request_id", GetRequestID(r.Context()),
		)
		writeUnauthorized(w, "Invalid or expired token")
		return nil, false
	}
	return claims, true
}

func writeUnauthorized(w http.ResponseWriter, desc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + desc + `"}`))
}
