package timesheethandler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"coreops/internal/domain/auth"
	"coreops/internal/domain/timesheet"
	"coreops/internal/platform/metrics"
	"coreops/internal/transport/http/api"
	"coreops/internal/transport/http/middleware"
	"coreops/internal/transport/http/shared"
)

type Handler struct {
	Service *timesheet.Service
	Metrics *metrics.Collector
}

func NewHandler(service *timesheet.Service, collector *metrics.Collector) *Handler {
	return &Handler{Service: service, Metrics: collector}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/timesheets", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermTimesheetWorklogWrite)).Post("/worklog", h.handleUpsertWorklog)
		r.With(middleware.RequirePermission(auth.PermTimesheetApprovalQueue)).Get("/approval-queue", h.handleApprovalQueue)
		r.With(middleware.RequirePermission(auth.PermTimesheetRead, auth.PermTimesheetReadAny)).Get("/{timesheetID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermTimesheetSubmit)).Post("/{timesheetID}/submit", h.handleSubmit)
		r.With(middleware.RequirePermission(auth.PermTimesheetApproveL1, auth.PermTimesheetApproveL2)).Post("/{timesheetID}/approve", h.handleApprove)
		r.With(middleware.RequirePermission(auth.PermTimesheetApproveL1)).Post("/{timesheetID}/reject", h.handleReject)
		r.With(middleware.RequirePermission(auth.PermTimesheetApproveL1)).Post("/{timesheetID}/request-revision", h.handleRequestRevision)
	})
}

type worklogPayload struct {
	TimesheetID    string          `json:"timesheetId"`
	WorkDate       string          `json:"workDate"`
	Task           string          `json:"task"`
	Hours          decimal.Decimal `json:"hours"`
	Description    string          `json:"description"`
	OverrideReason string          `json:"overrideReason"`
}

type decisionPayload struct {
	Reason         string `json:"reason"`
	OverrideReason string `json:"overrideReason"`
}

func (h *Handler) handleUpsertWorklog(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	var payload worklogPayload
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	workDate, _ := v.Date("workDate", payload.WorkDate)
	v.Required("task", payload.Task, "is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	entry, err := h.Service.UpsertWorklog(r.Context(), user, timesheet.WorklogInput{
		TimesheetID:    strings.TrimSpace(payload.TimesheetID),
		WorkDate:       workDate,
		Task:           payload.Task,
		Hours:          payload.Hours,
		Description:    payload.Description,
		OverrideReason: payload.OverrideReason,
	})
	if err != nil {
		shared.RespondError(w, r, h.Metrics, err)
		return
	}
	api.Success(w, entry, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	ts, err := h.Service.Get(r.Context(), user, chi.URLParam(r, "timesheetID"))
	if err != nil {
		shared.RespondError(w, r, h.Metrics, err)
		return
	}
	api.Success(w, ts, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApprovalQueue(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	page := shared.ParsePagination(r, 50, 200)
	queue, err := h.Service.ApprovalQueue(r.Context(), user, page.Limit, page.Offset)
	if err != nil {
		shared.RespondError(w, r, h.Metrics, err)
		return
	}
	shared.SetTotalCount(w, queue.Total)
	api.Success(w, queue, middleware.GetRequestID(r.Context()))
}

type transitionFunc func(r *http.Request, user auth.Actor, id string, in timesheet.DecisionInput) (timesheet.Timesheet, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	user, _ := middleware.GetUser(r.Context())
	var payload decisionPayload
	if r.ContentLength != 0 && !shared.DecodeJSON(w, r, &payload) {
		return
	}
	ts, err := fn(r, user, chi.URLParam(r, "timesheetID"), timesheet.DecisionInput{
		Reason:         payload.Reason,
		OverrideReason: payload.OverrideReason,
	})
	if err != nil {
		shared.RespondError(w, r, h.Metrics, err)
		return
	}
	api.Success(w, ts, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(r *http.Request, user auth.Actor, id string, in timesheet.DecisionInput) (timesheet.Timesheet, error) {
		return h.Service.Submit(r.Context(), user, id, in)
	})
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(r *http.Request, user auth.Actor, id string, in timesheet.DecisionInput) (timesheet.Timesheet, error) {
		return h.Service.Approve(r.Context(), user, id, in)
	})
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(r *http.Request, user auth.Actor, id string, in timesheet.DecisionInput) (timesheet.Timesheet, error) {
		return h.Service.Reject(r.Context(), user, id, in)
	})
}

func (h *Handler) handleRequestRevision(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(r *http.Request, user auth.Actor, id string, in timesheet.DecisionInput) (timesheet.Timesheet, error) {
		return h.Service.RequestRevision(r.Context(), user, id, in)
	})
}
