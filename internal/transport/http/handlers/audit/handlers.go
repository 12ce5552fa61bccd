package audithandler

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"coreops/internal/domain/apperr"
	"coreops/internal/domain/audit"
	"coreops/internal/domain/auth"
	"coreops/internal/platform/metrics"
	"coreops/internal/transport/http/api"
	"coreops/internal/transport/http/middleware"
	"coreops/internal/transport/http/shared"
)

type Handler struct {
	Service      *audit.Service
	Metrics      *metrics.Collector
	VerifyWindow time.Duration
}

func NewHandler(service *audit.Service, collector *metrics.Collector, verifyWindow time.Duration) *Handler {
	if verifyWindow <= 0 {
		verifyWindow = 24 * time.Hour
	}
	return &Handler{Service: service, Metrics: collector, VerifyWindow: verifyWindow}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/governance/audit", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermAuditRead)).Get("/", h.handleListEvents)
		r.With(middleware.RequirePermission(auth.PermAuditVerify)).Post("/verify", h.handleVerify)
		r.With(middleware.RequirePermission(auth.PermAuditRead)).Get("/{entityType}/{entityID}", h.handleTimeline)
		r.With(middleware.RequirePermission(auth.PermAuditExport)).Get("/{entityType}/{entityID}/pdf", h.handleExportPDF)
	})
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := audit.Filter{
		EntityType: strings.TrimSpace(query.Get("entityType")),
		EntityID:   strings.TrimSpace(query.Get("entityId")),
		ActorID:    strings.TrimSpace(query.Get("actorId")),
		Action:     strings.TrimSpace(query.Get("action")),
	}
	v := shared.NewValidator()
	if raw := query.Get("startDate"); raw != "" {
		filter.From, _ = v.Date("startDate", raw)
	}
	var end time.Time
	if raw := query.Get("endDate"); raw != "" {
		end, _ = v.Date("endDate", raw)
	}
	v.DateOrder("startDate", filter.From, "endDate", end)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	// endDate is inclusive; the filter bound is exclusive.
	if !end.IsZero() {
		filter.To = end.AddDate(0, 0, 1)
	}

	page := shared.ParsePagination(r, 100, 500)
	total, err := h.Service.Count(r.Context(), filter)
	if err != nil {
		shared.RespondError(w, r, h.Metrics, err)
		return
	}
	events, err := h.Service.List(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		shared.RespondError(w, r, h.Metrics, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}

	shared.SetTotalCount(w, total)
	api.Success(w, map[string]any{"items": events, "total": total}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	events, err := h.Service.Timeline(r.Context(), chi.URLParam(r, "entityType"), chi.URLParam(r, "entityID"))
	if err != nil {
		shared.RespondError(w, r, h.Metrics, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	api.Success(w, events, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	entityType, entityID := chi.URLParam(r, "entityType"), chi.URLParam(r, "entityID")
	events, err := h.Service.Timeline(r.Context(), entityType, entityID)
	if err != nil {
		shared.RespondError(w, r, h.Metrics, err)
		return
	}
	if len(events) == 0 {
		shared.RespondError(w, r, h.Metrics, apperr.NotFound("audit trail", entityType+"/"+entityID))
		return
	}

	var buf bytes.Buffer
	if err := audit.WriteTrailPDF(&buf, entityType, entityID, events, h.Service.Clock.Now()); err != nil {
		shared.RespondError(w, r, h.Metrics, fmt.Errorf("render audit pdf: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=audit-%s-%s.pdf", entityType, entityID))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		slog.WarnContext(r.Context(), "audit pdf write failed", "err", err)
	}
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	window := h.VerifyWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			shared.FailField(w, middleware.GetRequestID(r.Context()), "window", "must be a positive duration")
			return
		}
		window = parsed
	}
	report, err := h.Service.VerifyRecent(r.Context(), h.Service.Clock.Now().Add(-window))
	if err != nil {
		shared.RespondError(w, r, h.Metrics, err)
		return
	}
	if !report.OK() {
		slog.ErrorContext(r.Context(), "audit chain verification found breaks", "breaks", len(report.Breaks))
	}
	api.Success(w, report, middleware.GetRequestID(r.Context()))
}
