package leavehandler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"coreops/internal/domain/auth"
	"coreops/internal/domain/leave"
	"coreops/internal/platform/metrics"
	"coreops/internal/transport/http/api"
	"coreops/internal/transport/http/middleware"
	"coreops/internal/transport/http/shared"
)

type Handler struct {
	Service *leave.Service
	Metrics *metrics.Collector
}

func NewHandler(service *leave.Service, collector *metrics.Collector) *Handler {
	return &Handler{Service: service, Metrics: collector}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/leave", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermLeaveTypeRead, auth.PermLeaveTypeWrite)).Get("/types", h.handleListTypes)
		r.With(middleware.RequirePermission(auth.PermLeaveTypeWrite)).Post("/types", h.handleCreateType)
		r.With(middleware.RequirePermission(auth.PermLeaveTypeWrite)).Put("/types/{typeID}", h.handleUpdateType)
		r.With(middleware.RequirePermission(auth.PermLeaveBalanceRead, auth.PermLeaveBalanceGrant)).Get("/balances", h.handleListBalances)
		r.With(middleware.RequirePermission(auth.PermLeaveBalanceGrant)).Post("/balances/grant", h.handleGrant)
		r.With(middleware.RequirePermission(auth.PermLeaveRequestRead, auth.PermLeaveRequestReadAny)).Get("/requests", h.handleListRequests)
		r.With(middleware.RequirePermission(auth.PermLeaveRequestCreate, auth.PermLeaveRequestCreateAny)).Post("/requests", h.handleSubmit)
		r.With(middleware.RequirePermission(auth.PermLeaveRequestRead, auth.PermLeaveRequestReadAny)).Get("/requests/{requestID}", h.handleGetRequest)
		r.With(middleware.RequirePermission(auth.PermLeaveRequestRead, auth.PermLeaveRequestReadAny)).Get("/requests/{requestID}/timeline", h.handleTimeline)
		r.With(middleware.RequirePermission(auth.PermLeaveApproveL1, auth.PermLeaveApproveL2)).Post("/requests/{requestID}/approve", h.handleApprove)
		r.With(middleware.RequirePermission(auth.PermLeaveApproveL1, auth.PermLeaveApproveL2)).Post("/requests/{requestID}/reject", h.handleReject)
		r.With(middleware.RequirePermission(auth.PermLeaveRequestCreate, auth.PermLeaveRequestCancelAny)).Post("/requests/{requestID}/cancel", h.handleCancel)
	})
}

type submitPayload struct {
	EmployeeID     string `json:"employeeId"`
	LeaveTypeID    string `json:"leaveTypeId"`
	StartDate      string `json:"startDate"`
	EndDate        string `json:"endDate"`
	Unit           string `json:"unit"`
	HalfDayPart    string `json:"halfDayPart"`
	Reason         string `json:"reason"`
	OverrideReason string `json:"overrideReason"`
}

type decisionPayload struct {
	Reason         string `json:"reason"`
	OverrideReason string `json:"overrideReason"`
}

type grantPayload struct {
	EmployeeID     string           `json:"employeeId"`
	LeaveTypeID    string           `json:"leaveTypeId"`
	Year           int              `json:"year"`
	OpeningBalance *decimal.Decimal `json:"openingBalance"`
	GrantAmount    decimal.Decimal  `json:"grantAmount"`
	Reason         string           `json:"reason"`
}

type typePayload struct {
	Code            string `json:"code"`
	Name            string `json:"name"`
	IsPaid          bool   `json:"isPaid"`
	SupportsHalfDay bool   `json:"supportsHalfDay"`
	AffectsPayroll  bool   `json:"affectsPayroll"`
	DeductionRule   string `json:"deductionRule"`
	IsActive        *bool  `json:"isActive"`
	Version         int    `json:"version"`
}

func (p typePayload) input() leave.TypeInput {
	active := true
	if p.IsActive != nil {
		active = *p.IsActive
	}
	return leave.TypeInput{
		Code:            p.Code,
		Name:            p.Name,
		IsPaid:          p.IsPaid,
		SupportsHalfDay: p.SupportsHalfDay,
		AffectsPayroll:  p.AffectsPayroll,
		DeductionRule:   p.DeductionRule,
		IsActive:        active,
		Version:         p.Version,
	}
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	var payload submitPayload
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}

	v := shared.NewValidator()
	v.Required("leaveTypeId", payload.LeaveTypeID, "is required")
	start, _ := v.Date("startDate", payload.StartDate)
	end, _ := v.Date("endDate", payload.EndDate)
	v.DateOrder("startDate", start, "endDate", end)
	v.OneOf("unit", payload.Unit, []string{string(leave.UnitFullDay), string(leave.UnitHalfDay)}, "must be FULL_DAY or HALF_DAY")
	v.OneOf("halfDayPart", payload.HalfDayPart, []string{string(leave.HalfDayAM), string(leave.HalfDayPM)}, "must be AM or PM")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	unit := leave.Unit(strings.ToUpper(strings.TrimSpace(payload.Unit)))
	if unit == "" {
		unit = leave.UnitFullDay
	}
	req, err := h.Service.Submit(r.Context(), user, leave.SubmitInput{
		EmployeeID:     strings.TrimSpace(payload.EmployeeID),
		LeaveTypeID:    strings.TrimSpace(payload.LeaveTypeID),
		StartDate:      start,
		EndDate:        end,
		Unit:           unit,
		HalfDayPart:    leave.HalfDayPart(strings.ToUpper(strings.TrimSpace(payload.HalfDayPart))),
		Reason:         payload.Reason,
		OverrideReason: payload.OverrideReason,
	})
	if err != nil {
		shared.RespondError(w, r, h.Metrics, err)
		return
	}
	api.Created(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	query := r.URL.Query()

	v := shared.NewValidator()
	var filter leave.ListFilter
	filter.EmployeeID = strings.TrimSpace(query.Get("employeeId"))
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		v.OneOf("status", raw, []string{
			string(leave.StatusDraft), string(leave.StatusSubmitted), string(leave.StatusApproved),
			string(leave.StatusRejected), string(leave.StatusCancelled),
		}, "is not a known status")
		filter.Status = leave.Status(strings.ToUpper(raw))
	}
	if raw := query.Get("from"); raw != "" {
		filter.From, _ = v.Date("from", raw)
	}
	if raw := query.Get("to"); raw != "" {
		filter.To, _ = v.Date("to", raw)
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	page := shared.ParsePagination(r, 50, 200)
	list, err := h.Service.List(r.Context(), user, filter, page.Limit, page.Offset)
	if err != nil {
		shared.RespondError(w, r, h.Metrics, err)
		return
	}
	shared.SetTotalCount(w, list.Total)
	api.Success(w, list, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	req, err := h.Service.Get(r.Context(), user, chi.URLParam(r, "requestID"))
	if err != nil {
		shared.RespondError(w, r, h.Metrics, err)
		return
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	req, err := h.Service.Get(r.Context(), user, chi.URLParam(r, "requestID"))
	if err != nil {
		shared.RespondError(w, r, h.Metrics, err)
		return
	}
	api.Success(w, map[string]any{
		"id":       req.ID,
		"status":   req.Status,
		"timeline": req.Timeline(),
		"history":  req.History,
	}, middleware.GetRequestID(r.Context()))
}

type decisionFunc func(r *http.Request, user auth.Actor, id string, in leave.DecisionInput) (leave.Request, error)

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, fn decisionFunc) {
	user, _ := middleware.GetUser(r.Context())
	var payload decisionPayload
	if r.ContentLength != 0 && !shared.DecodeJSON(w, r, &payload) {
		return
	}
	req, err := fn(r, user, chi.URLParam(r, "requestID"), leave.DecisionInput{
		Reason:         payload.Reason,
		OverrideReason: payload.OverrideReason,
	})
	if err != nil {
		shared.RespondError(w, r, h.Metrics, err)
		return
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, func(r *http.Request, user auth.Actor, id string, in leave.DecisionInput) (leave.Request, error) {
		return h.Service.Approve(r.Context(), user, id, in)
	})
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, func(r *http.Request, user auth.Actor, id string, in leave.DecisionInput) (leave.Request, error) {
		return h.Service.Reject(r.Context(), user, id, in)
	})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, func(r *http.Request, user auth.Actor, id string, in leave.DecisionInput) (leave.Request, error) {
		return h.Service.Cancel(r.Context(), user, id, in)
	})
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	var payload grantPayload
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	v.Required("employeeId", payload.EmployeeID, "is required")
	v.Required("leaveTypeId", payload.LeaveTypeID, "is required")
	v.Year("year", payload.Year)
	v.Amount("grantAmount", payload.GrantAmount, 2, leave.MaxBalanceAmount)
	if payload.OpeningBalance != nil {
		v.Amount("openingBalance", *payload.OpeningBalance, 2, leave.MaxBalanceAmount)
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	bal, err := h.Service.Grant(r.Context(), user, leave.GrantInput{
		EmployeeID:     strings.TrimSpace(payload.EmployeeID),
		LeaveTypeID:    strings.TrimSpace(payload.LeaveTypeID),
		Year:           payload.Year,
		OpeningBalance: payload.OpeningBalance,
		GrantAmount:    payload.GrantAmount,
		Reason:         payload.Reason,
	})
	if err != nil {
		shared.RespondError(w, r, h.Metrics, err)
		return
	}
	api.Success(w, bal, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListBalances(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	year, ok := shared.QueryInt(r, "year", 0)
	if !ok {
		shared.FailField(w, middleware.GetRequestID(r.Context()), "year", "must be a number")
		return
	}
	balances, err := h.Service.ListBalances(r.Context(), user, strings.TrimSpace(r.URL.Query().Get("employeeId")), year)
	if err != nil {
		shared.RespondError(w, r, h.Metrics, err)
		return
	}
	api.Success(w, balances, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListTypes(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	types, err := h.Service.ListTypes(r.Context(), user)
	if err != nil {
		shared.RespondError(w, r, h.Metrics, err)
		return
	}
	api.Success(w, types, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateType(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	var payload typePayload
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	lt, err := h.Service.CreateType(r.Context(), user, payload.input())
	if err != nil {
		shared.RespondError(w, r, h.Metrics, err)
		return
	}
	api.Created(w, lt, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateType(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	var payload typePayload
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	if payload.Version <= 0 {
		shared.FailField(w, middleware.GetRequestID(r.Context()), "version", "is required")
		return
	}
	lt, err := h.Service.UpdateType(r.Context(), user, chi.URLParam(r, "typeID"), payload.input())
	if err != nil {
		shared.RespondError(w, r, h.Metrics, err)
		return
	}
	api.Success(w, lt, middleware.GetRequestID(r.Context()))
}
