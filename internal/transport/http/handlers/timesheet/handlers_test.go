package timesheethandler

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
	"coreops/internal/domain/timesheet"
	"coreops/internal/transport/http/middleware"
)

func serve(t *testing.T, role, method, path, body string) (int, string) {
	t.Helper()
	r := chi.NewRouter()
	if role != "" {
		actor := auth.Actor{UserID: "u1", EmployeeID: "e1", Role: role, Permissions: auth.SetForRole(role)}
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), actor)))
			})
		})
	}
	NewHandler(&timesheet.Service{}, nil).RegisterRoutes(r)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env.Error.Code
}

func TestTimesheetRoutesRequirePermissions(t *testing.T) {
	cases := []struct {
		name   string
		role   string
		method string
		path   string
		status int
	}{
		{"anonymous worklog", "", http.MethodPost, "/timesheets/worklog", http.StatusUnauthorized},
		{"employee approves", auth.RoleEmployee, http.MethodPost, "/timesheets/t1/approve", http.StatusForbidden},
		{"employee rejects", auth.RoleEmployee, http.MethodPost, "/timesheets/t1/reject", http.StatusForbidden},
		{"employee revision", auth.RoleEmployee, http.MethodPost, "/timesheets/t1/request-revision", http.StatusForbidden},
		{"employee queue", auth.RoleEmployee, http.MethodGet, "/timesheets/approval-queue", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := serve(t, tc.role, tc.method, tc.path, `{}`)
			assert.Equal(t, tc.status, status)
		})
	}
}

func TestWorklogValidatesPayload(t *testing.T) {
	status, code := serve(t, auth.RoleEmployee, http.MethodPost, "/timesheets/worklog", `{"workDate":"yesterday","hours":"4"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_failed", code)
}

func TestWorklogRejectsMalformedJSON(t *testing.T) {
	status, code := serve(t, auth.RoleEmployee, http.MethodPost, "/timesheets/worklog", `{"workDate":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_payload", code)
}
