package leavehandler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coreops/internal/domain/auth"
	"coreops/internal/domain/leave"
	"coreops/internal/transport/http/middleware"
)

type envelope struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newRouter(actor *auth.Actor) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if actor != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), *actor)))
			})
		})
	}
	NewHandler(&leave.Service{}, nil).RegisterRoutes(r)
	return r
}

func actorFor(role string) *auth.Actor {
	return &auth.Actor{UserID: "u-" + role, EmployeeID: "e-" + role, Role: role, Permissions: auth.SetForRole(role)}
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestRoutesRequireAuthentication(t *testing.T) {
	rec, env := do(t, newRouter(nil), http.MethodGet, "/leave/requests", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", env.Error.Code)
}

func TestEmployeeCannotGrantOrApprove(t *testing.T) {
	router := newRouter(actorFor(auth.RoleEmployee))

	rec, env := do(t, router, http.MethodPost, "/leave/balances/grant", `{}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "permission_denied", env.Error.Code)

	rec, _ = do(t, router, http.MethodPost, "/leave/requests/r1/approve", `{}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = do(t, router, http.MethodPost, "/leave/types", `{}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSubmitValidatesPayload(t *testing.T) {
	router := newRouter(actorFor(auth.RoleEmployee))

	rec, env := do(t, router, http.MethodPost, "/leave/requests", `{"leaveTypeId":"t1","startDate":"2026-03-12","endDate":"2026-03-10","unit":"WEEK"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", env.Error.Code)
	fields, ok := env.Error.Details["fields"].([]any)
	require.True(t, ok)
	assert.Len(t, fields, 3)
}

func TestSubmitRejectsUnknownFields(t *testing.T) {
	rec, env := do(t, newRouter(actorFor(auth.RoleEmployee)), http.MethodPost, "/leave/requests", `{"leaveTypeId":"t1","days":3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_payload", env.Error.Code)
}

func TestGrantRequiresEmployeeAndYear(t *testing.T) {
	rec, env := do(t, newRouter(actorFor(auth.RoleHR)), http.MethodPost, "/leave/balances/grant", `{"grantAmount":"2"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", env.Error.Code)
}

func TestUpdateTypeRequiresVersion(t *testing.T) {
	rec, env := do(t, newRouter(actorFor(auth.RoleHR)), http.MethodPut, "/leave/types/t1", `{"code":"ANNUAL","name":"Annual"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", env.Error.Code)
}

func TestListBalancesRejectsBadYear(t *testing.T) {
	rec, _ := do(t, newRouter(actorFor(auth.RoleEmployee)), http.MethodGet, "/leave/balances?year=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
