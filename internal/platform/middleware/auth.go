package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"agora/internal/platform/jwt"
	id "agora/pkg/domain"
	"agora/pkg/requestcontext"
)

// JWTValidator verifies bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*jwt.Claims, error)
}

type contextKeyGroups struct{}

// Groups returns the authenticated caller's groups.
func Groups(ctx context.Context) []string {
	groups, _ := ctx.Value(contextKeyGroups{}).([]string)
	return groups
}

// InGroup reports whether the authenticated caller belongs to a group.
func InGroup(ctx context.Context, group string) bool {
	return slices.Contains(Groups(ctx), group)
}

// RequireAuth validates the bearer token and loads the caller's identity
// into the request context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access, missing token",
					"request_id", requestcontext.RequestID(ctx))
				unauthorized(w, "missing or invalid Authorization header")
				return
			}
			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access, invalid token",
					"request_id", requestcontext.RequestID(ctx), "error", err)
				unauthorized(w, "invalid or expired token")
				return
			}
			userID, err := id.ParseUserID(claims.UserID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access, malformed subject",
					"request_id", requestcontext.RequestID(ctx), "error", err)
				unauthorized(w, "invalid token subject")
				return
			}
			ctx = requestcontext.WithActorID(ctx, userID)
			if claims.OrgID != "" {
				if orgID, err := id.ParseOrgID(claims.OrgID); err == nil {
					ctx = requestcontext.WithOrgID(ctx, orgID)
				}
			}
			ctx = context.WithValue(ctx, contextKeyGroups{}, claims.Groups)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireGroup refuses callers outside the given group. Must run after
// RequireAuth.
func RequireGroup(group string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if !InGroup(ctx, group) {
				logger.WarnContext(ctx, "forbidden access, wrong group",
					"request_id", requestcontext.RequestID(ctx),
					"required_group", group)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden"}`))
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
