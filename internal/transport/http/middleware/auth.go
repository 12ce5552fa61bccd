package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"coreops/internal/domain/auth"
	"coreops/internal/transport/http/api"
)

type ctxKey string

const ctxKeyUser ctxKey = "actor"

// PermissionResolver loads the grants of a role. When nil, Auth falls back to
// the built-in role table.
type PermissionResolver interface {
	PermissionsForRole(ctx context.Context, role string) (auth.Set, error)
}

// Auth attaches the actor named by a valid bearer token. Requests without one
// pass through anonymous; RequireAuth rejects them.
func Auth(secret string, resolver PermissionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ParseToken(secret, parts[1])
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			perms := auth.SetForRole(claims.Role)
			if resolver != nil {
				perms, err = resolver.PermissionsForRole(r.Context(), claims.Role)
				if err != nil {
					slog.ErrorContext(r.Context(), "resolve permissions failed", "role", claims.Role, "err", err)
					api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", GetRequestID(r.Context()))
					return
				}
			}

			ctx := WithUser(r.Context(), auth.Actor{
				UserID:      claims.UserID,
				EmployeeID:  claims.EmployeeID,
				Role:        claims.Role,
				Permissions: perms,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithUser(ctx context.Context, actor auth.Actor) context.Context {
	return context.WithValue(ctx, ctxKeyUser, actor)
}

func GetUser(ctx context.Context) (auth.Actor, bool) {
	user, ok := ctx.Value(ctxKeyUser).(auth.Actor)
	return user, ok
}
