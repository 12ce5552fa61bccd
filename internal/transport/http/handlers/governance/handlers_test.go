package governancehandler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"coreops/internal/domain/auth"
	"coreops/internal/domain/governance"
	"coreops/internal/platform/clock"
	"coreops/internal/transport/http/middleware"
)

func routerFor(role string) http.Handler {
	r := chi.NewRouter()
	actor := auth.Actor{UserID: "u1", Role: role, Permissions: auth.SetForRole(role)}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), actor)))
		})
	})
	svc := &governance.Service{Clock: clock.Fixed(time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))}
	NewHandler(svc, nil).RegisterRoutes(r)
	return r
}

func TestOnlySuperAdminClosesMonths(t *testing.T) {
	for _, role := range []string{auth.RoleEmployee, auth.RoleManager, auth.RoleHR} {
		req := httptest.NewRequest(http.MethodPost, "/governance/month-close/close", strings.NewReader(`{"month":"2026-02","reason":"payroll","confirmation":"CLOSE 2026-02"}`))
		rec := httptest.NewRecorder()
		routerFor(role).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code, role)
	}
}

func TestEmployeeCannotListMonths(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/governance/month-close?year=2026", nil)
	rec := httptest.NewRecorder()
	routerFor(auth.RoleEmployee).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCloseRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/governance/month-close/close", strings.NewReader(`{"month":"2026-02","force":true}`))
	rec := httptest.NewRecorder()
	routerFor(auth.RoleSuperAdmin).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRejectsBadYear(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/governance/month-close?year=twenty", nil)
	rec := httptest.NewRecorder()
	routerFor(auth.RoleManager).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
