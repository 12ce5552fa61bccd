package governancehandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"coreops/internal/domain/auth"
	"coreops/internal/domain/governance"
	"coreops/internal/platform/metrics"
	"coreops/internal/transport/http/api"
	"coreops/internal/transport/http/middleware"
	"coreops/internal/transport/http/shared"
)

type Handler struct {
	Service *governance.Service
	Metrics *metrics.Collector
}

func NewHandler(service *governance.Service, collector *metrics.Collector) *Handler {
	return &Handler{Service: service, Metrics: collector}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/governance/month-close", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermMonthCloseRead, auth.PermMonthCloseExecute)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermMonthCloseExecute)).Post("/close", h.handleClose)
	})
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	var payload governance.CloseInput
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	rec, err := h.Service.CloseMonth(r.Context(), user, payload)
	if err != nil {
		shared.RespondError(w, r, h.Metrics, err)
		return
	}
	api.Success(w, rec, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	year, ok := shared.QueryInt(r, "year", 0)
	if !ok {
		shared.FailField(w, middleware.GetRequestID(r.Context()), "year", "must be a number")
		return
	}
	if year == 0 {
		year = h.Service.Clock.Now().UTC().Year()
	}
	months, err := h.Service.List(r.Context(), user, year)
	if err != nil {
		shared.RespondError(w, r, h.Metrics, err)
		return
	}
	if months == nil {
		months = []governance.MonthClose{}
	}
	api.Success(w, months, middleware.GetRequestID(r.Context()))
}
