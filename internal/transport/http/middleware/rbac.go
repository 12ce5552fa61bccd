package middleware

import (
	"net/http"

	"coreops/internal/domain/apperr"
	"coreops/internal/domain/auth"
	"coreops/internal/transport/http/api"
)

// RequirePermission admits actors holding any of perms. Services repeat the
// finer ownership and level checks.
func RequirePermission(perms ...auth.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUser(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
				return
			}
			if !user.HasAny(perms...) {
				api.WriteError(w, r, apperr.PermissionDenied(string(perms[0])), GetRequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
